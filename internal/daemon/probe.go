package daemon

import "os"

// Probe checks process liveness and delivers signals.
// Implementations must not affect the process when checking liveness.
type Probe interface {
	// Alive reports whether pid exists. It returns ErrPermissionDenied when the
	// process exists but belongs to another principal.
	Alive(pid int) (bool, error)
	// Signal sends sig to pid. It returns os.ErrProcessDone when the process no
	// longer exists.
	Signal(pid int, sig os.Signal) error
}
