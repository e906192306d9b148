package daemon

import "errors"

var (
	// ErrCorruptState is returned when the PID file exists but does not hold a single positive integer.
	ErrCorruptState = errors.New("corrupt PID file")

	// ErrPermissionDenied is returned when the process exists but the caller may not signal it.
	ErrPermissionDenied = errors.New("permission denied signalling process")

	// ErrShutdownTimeout is returned when the process does not exit within the stop timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

	// ErrSpawnFailure is returned when the spawn routine does not yield a usable PID.
	ErrSpawnFailure = errors.New("spawn failed")
)
