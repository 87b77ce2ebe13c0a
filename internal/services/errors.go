package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCapabilityUnavailable = errors.New("transcoder capability unavailable")
	ErrIneligibleAsset       = errors.New("asset not eligible for conversion")
	ErrTranscodeFailure      = errors.New("transcode failed")
	ErrConfiguration         = errors.New("configuration error")
	ErrNotFound              = errors.New("not found")
	ErrTimeout               = errors.New("timeout")
)

// MaxFailureMessageLength bounds failure text persisted on an asset.
const MaxFailureMessageLength = 2000

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTranscodeFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to a short label used for metrics and log fields.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCapabilityUnavailable):
		return "capability"
	case errors.Is(err, ErrIneligibleAsset):
		return "ineligible"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTranscodeFailure):
		return "transcode"
	default:
		return "other"
	}
}

// FailureMessage renders err as text suitable for persisting on an asset.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "conversion failed"
	}
	if len(msg) > MaxFailureMessageLength {
		msg = msg[:MaxFailureMessageLength-3] + "..."
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
