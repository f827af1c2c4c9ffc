package supervisor

import (
	"errors"
	"os/exec"
)

// exitCode extracts the process exit code from a child's wait error and
// reports whether the process actually died from a delivered signal rather
// than a voluntary exit (§4.7 case b). A nil err means exit code 0.
//
// exec.ExitError.ExitCode() documents -1 for a signal-terminated process, so
// the signal number itself can only be recovered from the platform-specific
// Sys() value — signaledExit (child_unix.go/child_windows.go) does that.
func exitCode(err error) (code int, signaled bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, false
	}
	if sig, ok := signaledExit(exitErr); ok {
		return 128 + int(sig), true
	}
	return exitErr.ExitCode(), false
}
