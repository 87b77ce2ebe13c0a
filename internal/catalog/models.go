package catalog

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Kind distinguishes uploaded files from externally hosted videos.
type Kind string

const (
	KindFile     Kind = "file"
	KindExternal Kind = "external"
)

// HLSStatus represents the encoding lifecycle of a video asset.
type HLSStatus string

const (
	// StatusNone is persisted as NULL: no conversion was ever requested.
	StatusNone       HLSStatus = ""
	StatusPending    HLSStatus = "pending"
	StatusProcessing HLSStatus = "processing"
	StatusCompleted  HLSStatus = "completed"
	StatusFailed     HLSStatus = "failed"
)

// Label returns a printable status name.
func (s HLSStatus) Label() string {
	if s == StatusNone {
		return "none"
	}
	return string(s)
}

// ErrInvalidTransition is returned when a state change is not permitted from
// the asset's current status.
var ErrInvalidTransition = errors.New("invalid hls status transition")

var transitions = map[HLSStatus][]HLSStatus{
	StatusNone:       {StatusPending},
	StatusPending:    {StatusPending, StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusPending},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether from -> to is a legal move. Leaving completed
// requires force.
func CanTransition(from, to HLSStatus, force bool) bool {
	if from == StatusCompleted && to == StatusPending && !force {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var videoExtensions = map[string]struct{}{
	"mp4":  {},
	"avi":  {},
	"mov":  {},
	"webm": {},
	"mkv":  {},
	"flv":  {},
	"wmv":  {},
}

// IsVideoExtension reports whether ext (with or without a leading dot) is in
// the conversion allow-list. Matching is case-insensitive.
func IsVideoExtension(ext string) bool {
	_, ok := videoExtensions[normalizeExtension(ext)]
	return ok
}

// VideoExtensions returns the allow-list in sorted order.
func VideoExtensions() []string {
	out := make([]string, 0, len(videoExtensions))
	for ext := range videoExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ExtensionFromPath derives the stored extension for a source path.
func ExtensionFromPath(path string) string {
	return normalizeExtension(filepath.Ext(path))
}

// VideoAsset is a lecture video tracked by the catalog.
type VideoAsset struct {
	ID              int64
	Title           string
	Kind            Kind
	SourcePath      string
	SourceExtension string
	ExternalURL     string
	HLSStatus       HLSStatus
	HLSManifestPath string
	HLSErrorMessage string
	HLSEncodedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasHLS reports whether a finished stream is available.
func (a *VideoAsset) HasHLS() bool {
	return a != nil && a.HLSStatus == StatusCompleted && a.HLSManifestPath != ""
}

// NeedsEncoding reports whether a conversion request should proceed. Without
// force only assets never converted or still waiting qualify; force adds
// finished and failed assets. Processing assets never qualify.
func (a *VideoAsset) NeedsEncoding(force bool) bool {
	if a == nil {
		return false
	}
	switch a.HLSStatus {
	case StatusNone, StatusPending:
		return true
	case StatusCompleted, StatusFailed:
		return force
	default:
		return false
	}
}

// IneligibleReason explains why the asset cannot be converted, or returns ""
// when it can.
func (a *VideoAsset) IneligibleReason() string {
	switch {
	case a == nil:
		return "asset not found"
	case a.Kind != KindFile:
		return "asset is not an uploaded file"
	case strings.TrimSpace(a.SourcePath) == "":
		return "asset has no source file"
	case strings.TrimSpace(a.SourceExtension) == "":
		return "asset has no file extension"
	case !IsVideoExtension(a.SourceExtension):
		return "extension " + a.SourceExtension + " is not a supported video format"
	default:
		return ""
	}
}

// Summary aggregates conversion status counts over file-kind assets.
type Summary struct {
	Total      int
	NotStarted int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// AwaitingQueue reports whether assets remain that a bulk run would pick up.
func (s Summary) AwaitingQueue() int {
	return s.NotStarted + s.Pending
}

// NewAsset describes an asset registered through the catalog seam.
type NewAsset struct {
	Title       string
	Kind        Kind
	SourcePath  string
	ExternalURL string
}
