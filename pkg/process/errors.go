package process

import "errors"

// Sentinel errors for service group operations, checked with errors.Is
var (
	// ErrNotRunning indicates no pid file exists
	ErrNotRunning = errors.New("no processes running")

	// ErrProcessNotFound indicates the recorded process no longer exists
	ErrProcessNotFound = errors.New("process not found")

	// ErrInvalidPID indicates the pid file does not hold a positive integer
	ErrInvalidPID = errors.New("invalid pid file")
)
