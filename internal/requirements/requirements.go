package requirements

import (
	"context"
	"fmt"
	"strings"

	"coursecast/internal/capability"
	"coursecast/internal/config"
	"coursecast/internal/database"
)

// Requirement reports the outcome of a single host check.
type Requirement struct {
	Name    string
	Passed  bool
	Message string
	// Impact describes what stops working when the requirement fails.
	Impact string
}

// Report groups core and optional requirements.
type Report struct {
	Core     []Requirement
	Optional []Requirement
	// Capability is the probe snapshot the optional checks were derived from.
	Capability capability.Snapshot
}

// Summary counts requirement outcomes.
type Summary struct {
	CorePassed     int
	CoreFailed     int
	OptionalPassed int
	OptionalFailed int
	// Ready is true when every core requirement passed.
	Ready bool
}

// Options wires the collaborators an Auditor inspects.
type Options struct {
	Config      *config.Config
	ConfigPath  string
	ConfigFound bool
	DB          *database.DB
	Probe       *capability.Probe
}

// Auditor runs the one-shot requirements diagnostic.
type Auditor struct {
	opts Options
}

// NewAuditor builds an auditor from opts.
func NewAuditor(opts Options) *Auditor {
	return &Auditor{opts: opts}
}

// Check evaluates every requirement. It never fails; problems are reported in
// the returned Report.
func (a *Auditor) Check(ctx context.Context) Report {
	var report Report
	report.Core = append(report.Core, a.checkConfiguration())
	report.Core = append(report.Core, a.checkDatabase(ctx))

	cfg := a.opts.Config
	if cfg != nil {
		report.Core = append(report.Core,
			CheckDirectoryAccess("Data directory", cfg.Paths.DataDir, AccessWrite),
			CheckDirectoryAccess("HLS storage directory", cfg.Paths.StorageDir, AccessWrite),
			CheckDirectoryAccess("Upload directory", cfg.Paths.SourceDir, AccessRead),
			CheckDirectoryAccess("Log directory", cfg.Paths.LogDir, AccessWrite),
		)
	}

	if a.opts.Probe != nil {
		report.Capability = a.opts.Probe.Check(ctx)
		report.Optional = optionalFromSnapshot(report.Capability)
	} else {
		report.Optional = []Requirement{
			{Name: "Subprocess execution", Message: "capability probe not configured", Impact: subprocessImpact},
			{Name: "Transcoder binary", Message: "capability probe not configured", Impact: transcoderImpact},
		}
	}
	return report
}

func (a *Auditor) checkConfiguration() Requirement {
	const name = "Configuration"
	if a.opts.Config == nil {
		return Requirement{Name: name, Message: "configuration not loaded", Impact: "nothing can run"}
	}
	if err := a.opts.Config.Validate(); err != nil {
		return Requirement{Name: name, Message: err.Error(), Impact: "nothing can run"}
	}
	if a.opts.ConfigFound {
		return Requirement{Name: name, Passed: true, Message: "loaded from " + a.opts.ConfigPath}
	}
	return Requirement{Name: name, Passed: true, Message: "using defaults (no file at " + a.opts.ConfigPath + ")"}
}

func (a *Auditor) checkDatabase(ctx context.Context) Requirement {
	const name = "Database"
	const impact = "asset state and the job queue are unavailable"
	if a.opts.DB == nil {
		return Requirement{Name: name, Message: "database not opened", Impact: impact}
	}
	health, err := a.opts.DB.CheckHealth(ctx)
	if err != nil {
		return Requirement{Name: name, Message: fmt.Sprintf("%s (error: %v)", health.Path, err), Impact: impact}
	}
	switch {
	case !health.Exists:
		return Requirement{Name: name, Message: health.Path + " (error: does not exist)", Impact: impact}
	case len(health.MissingTables) > 0:
		return Requirement{Name: name, Message: fmt.Sprintf("%s (error: missing tables %s)", health.Path, strings.Join(health.MissingTables, ", ")), Impact: impact}
	case !health.IntegrityCheck:
		return Requirement{Name: name, Message: health.Path + " (error: integrity check failed)", Impact: impact}
	case !health.OK():
		return Requirement{Name: name, Message: health.Path + " (error: unreadable)", Impact: impact}
	}
	return Requirement{Name: name, Passed: true, Message: health.Path + " (integrity ok)"}
}

const (
	subprocessImpact = "HLS conversion jobs fail; videos are served as raw files"
	transcoderImpact = "HLS conversion jobs fail; videos are served as raw files"
)

func optionalFromSnapshot(snapshot capability.Snapshot) []Requirement {
	subprocess := Requirement{Name: "Subprocess execution", Passed: snapshot.SubprocessAvailable, Impact: subprocessImpact}
	if snapshot.SubprocessAvailable {
		subprocess.Message = "enabled"
	} else {
		subprocess.Message = "disabled (transcoder.allow_subprocess = false)"
	}

	transcoder := Requirement{Name: "Transcoder binary", Impact: transcoderImpact}
	switch {
	case snapshot.BinaryPath != "" && snapshot.Version != "":
		transcoder.Passed = true
		transcoder.Message = snapshot.BinaryPath + " (" + snapshot.Version + ")"
	case snapshot.BinaryPath != "" && !snapshot.SubprocessAvailable:
		transcoder.Message = snapshot.BinaryPath + " (version not checked: subprocess execution disabled)"
	case snapshot.BinaryPath != "":
		transcoder.Message = snapshot.BinaryPath + " (did not report a version)"
	default:
		transcoder.Message = "not found on PATH or in known install locations"
	}
	return []Requirement{subprocess, transcoder}
}

// Summarize counts passes and failures in report.
func Summarize(report Report) Summary {
	var summary Summary
	for _, req := range report.Core {
		if req.Passed {
			summary.CorePassed++
		} else {
			summary.CoreFailed++
		}
	}
	for _, req := range report.Optional {
		if req.Passed {
			summary.OptionalPassed++
		} else {
			summary.OptionalFailed++
		}
	}
	summary.Ready = summary.CoreFailed == 0
	return summary
}
