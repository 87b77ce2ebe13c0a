package database

import (
	"errors"
	"time"
)

// NullableString maps empty strings to SQL NULL.
func NullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in the storage format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Now returns the current time in the storage format.
func Now() string {
	return FormatTime(time.Now())
}

// ParseTime parses a stored timestamp.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// ParseTimePtr parses a nullable stored timestamp; invalid values yield nil.
func ParseTimePtr(value string, valid bool) *time.Time {
	if !valid {
		return nil
	}
	t, err := ParseTime(value)
	if err != nil {
		return nil
	}
	return &t
}

// Placeholders returns "?,?,..." with count entries.
func Placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	buf := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '?')
	}
	return string(buf)
}
