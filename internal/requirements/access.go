package requirements

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Access is the permission level a directory check requires.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
)

// CheckDirectoryAccess verifies that path exists, is a directory and grants
// the requested access to the current process.
func CheckDirectoryAccess(name, path string, access Access) Requirement {
	impact := "conversions cannot read uploads"
	if access == AccessWrite {
		impact = "conversions cannot write output"
	}
	if path == "" {
		return Requirement{Name: name, Message: "not configured", Impact: impact}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Requirement{Name: name, Message: fmt.Sprintf("%s (error: does not exist)", path), Impact: impact}
		}
		return Requirement{Name: name, Message: fmt.Sprintf("%s (error: stat: %v)", path, err), Impact: impact}
	}
	if !info.IsDir() {
		return Requirement{Name: name, Message: fmt.Sprintf("%s (error: is not a directory)", path), Impact: impact}
	}
	mode := uint32(unix.R_OK | unix.X_OK)
	label := "read ok"
	if access == AccessWrite {
		mode |= unix.W_OK
		label = "read/write ok"
	}
	if err := unix.Access(path, mode); err != nil {
		return Requirement{Name: name, Message: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err), Impact: impact}
	}
	return Requirement{Name: name, Passed: true, Message: fmt.Sprintf("%s (%s)", path, label)}
}
