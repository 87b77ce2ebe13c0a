package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrBinaryNotFound reports that no candidate location held an executable.
var ErrBinaryNotFound = errors.New("binary not found")

// Resolution records how a binary was located.
type Resolution struct {
	Command string
	Path    string
	// Source is "configured", "path" or "search_path".
	Source string
}

// ResolveBinary locates command, checking an explicit path first, then PATH,
// then each of searchPaths in order.
func ResolveBinary(command string, searchPaths []string) (Resolution, error) {
	cmd := strings.TrimSpace(command)
	result := Resolution{Command: cmd}
	if cmd == "" {
		return result, fmt.Errorf("%w: command not configured", ErrBinaryNotFound)
	}

	if strings.ContainsRune(cmd, os.PathSeparator) {
		if executableFile(cmd) {
			result.Path = cmd
			result.Source = "configured"
			return result, nil
		}
	} else if resolved, err := exec.LookPath(cmd); err == nil {
		result.Path = resolved
		result.Source = "path"
		return result, nil
	}

	for _, candidate := range searchPaths {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if executableFile(candidate) {
			result.Path = candidate
			result.Source = "search_path"
			return result, nil
		}
	}
	return result, fmt.Errorf("%w: %q", ErrBinaryNotFound, cmd)
}

func executableFile(path string) bool {
	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return false
	}
	return isExecutable(info)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
