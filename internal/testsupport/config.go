package testsupport

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"coursecast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The transcoder and ffprobe point at names that never resolve so host
// installations cannot leak into tests; use WithFakeTranscoder or
// WithFakeFFprobe to provide them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.SourceDir = filepath.Join(base, "uploads")
	cfgVal.Paths.StorageDir = filepath.Join(base, "storage")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Transcoder.Binary = "coursecast-test-missing-ffmpeg"
	cfgVal.Transcoder.FFprobeBinary = "coursecast-test-missing-ffprobe"
	cfgVal.Transcoder.SearchPaths = nil
	cfgVal.Transcoder.Timeout = 30
	cfgVal.Workers.PollInterval = 1
	cfgVal.Workers.HeartbeatInterval = 1
	cfgVal.Workers.HeartbeatTimeout = 5
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithSubprocessDisabled turns off external process execution.
func WithSubprocessDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcoder.AllowSubprocess = false
	}
}

// WithFakeTranscoder installs a shell script that answers -version and writes
// a one-segment HLS playlist to the output path given as its last argument.
func WithFakeTranscoder() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcoder.Binary = writeScript(b, "ffmpeg", fakeTranscoderScript)
	}
}

// WithFailingTranscoder installs a transcoder that reports its version but
// fails every conversion with stderr output.
func WithFailingTranscoder() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcoder.Binary = writeScript(b, "ffmpeg", failingTranscoderScript)
	}
}

// WithSlowTranscoder installs a transcoder that sleeps before producing output.
func WithSlowTranscoder(seconds int) ConfigOption {
	return func(b *configBuilder) {
		script := "#!/bin/sh\nif [ \"$1\" = \"-version\" ]; then\n  echo \"ffmpeg version 6.1-slow\"\n  exit 0\nfi\nexec sleep " +
			strconv.Itoa(seconds) + "\nexit 0\n"
		b.cfg.Transcoder.Binary = writeScript(b, "ffmpeg", script)
	}
}

// WithFakeFFprobe installs an ffprobe stub printing the given JSON document.
func WithFakeFFprobe(output string) ConfigOption {
	return func(b *configBuilder) {
		script := "#!/bin/sh\ncat <<'JSON'\n" + output + "\nJSON\n"
		b.cfg.Transcoder.FFprobeBinary = writeScript(b, "ffprobe", script)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "path-bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

func writeScript(b *configBuilder, name, body string) string {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(body), 0o755); err != nil {
		b.t.Fatalf("write script %s: %v", name, err)
	}
	return target
}

const fakeTranscoderScript = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffmpeg version 6.1-fake Copyright (c) 2000-2024 the FFmpeg developers"
  echo "built with fake toolchain"
  exit 0
fi
last=""
for arg in "$@"; do
  last="$arg"
done
dir=$(dirname "$last")
mkdir -p "$dir"
printf 'segment' > "$dir/segment_00000.ts"
printf '#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n#EXT-X-PLAYLIST-TYPE:VOD\n#EXTINF:10.0,\nsegment_00000.ts\n#EXT-X-ENDLIST\n' > "$last"
exit 0
`

const failingTranscoderScript = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffmpeg version 6.1-fake"
  exit 0
fi
echo "Invalid data found when processing input" >&2
exit 1
`
