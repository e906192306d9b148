package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Default timings for Stop.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStopTimeout  = 30 * time.Second
)

// State is the derived lifecycle state of a daemon.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Status is the observable state of a daemon. PID is zero when Stopped.
type Status struct {
	State State
	PID   int
}

// Running reports whether the daemon is running.
func (s Status) Running() bool { return s.State == Running }

func (s Status) String() string {
	if s.State == Running {
		return fmt.Sprintf("running (pid %d)", s.PID)
	}
	return "stopped"
}

// SpawnFunc launches the daemon detached from the caller and returns its PID.
// It must not return before the PID is known.
type SpawnFunc func() (int, error)

// EventKind names a lifecycle transition reported to an Observer.
type EventKind string

const (
	EventStarted        EventKind = "started"
	EventAlreadyRunning EventKind = "already_running"
	EventStopped        EventKind = "stopped"
	EventStale          EventKind = "stale"
	EventStopTimeout    EventKind = "stop_timeout"
)

// Event describes a transition observed by a Controller.
type Event struct {
	Kind EventKind
	PID  int
}

// Observer receives lifecycle events. It is called synchronously.
type Observer func(Event)

// Controller manages one daemon identified by its PID file.
// A Controller is not safe for concurrent use, and two controllers must not
// manage the same PID file at the same time.
type Controller struct {
	store    PIDStore
	probe    Probe
	interval time.Duration
	observer Observer
	logger   *slog.Logger
	sleep    func(time.Duration)
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval sets how often Stop rechecks liveness.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithObserver registers fn to receive lifecycle events.
func WithObserver(fn Observer) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithLogger sets the logger used for lifecycle transitions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController returns a Controller backed by store and probe.
func NewController(store PIDStore, probe Probe, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		probe:    probe,
		interval: DefaultPollInterval,
		logger:   slog.Default(),
		sleep:    time.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForPIDFile returns a Controller for the PID file at path using the OS probe.
func ForPIDFile(path string, opts ...Option) *Controller {
	return NewController(NewPIDFile(path), OSProbe{}, opts...)
}

// Status reads the PID file and probes the recorded process. A PID file that
// refers to a dead process is removed and reported as Stopped.
func (c *Controller) Status() (Status, error) {
	pid, ok, err := c.store.Read()
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{State: Stopped}, nil
	}
	alive, err := c.probe.Alive(pid)
	if err != nil {
		return Status{}, err
	}
	if alive {
		return Status{State: Running, PID: pid}, nil
	}
	if err := c.store.Clear(); err != nil {
		return Status{}, err
	}
	c.logger.Info("removed stale PID file", "pid", pid)
	c.emit(EventStale, pid)
	return Status{State: Stopped}, nil
}

// Start launches the daemon with spawn unless it is already running.
func (c *Controller) Start(spawn SpawnFunc) (Status, error) {
	st, err := c.Status()
	if err != nil {
		return Status{}, err
	}
	if st.Running() {
		c.emit(EventAlreadyRunning, st.PID)
		return st, nil
	}

	pid, err := spawn()
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}
	if pid <= 0 {
		return Status{}, fmt.Errorf("%w: invalid pid %d", ErrSpawnFailure, pid)
	}
	if err := c.store.WritePID(pid); err != nil {
		return Status{}, err
	}
	c.logger.Info("daemon started", "pid", pid)
	c.emit(EventStarted, pid)
	return Status{State: Running, PID: pid}, nil
}

// Stop sends sig to a running daemon and waits up to timeout for it to exit.
// On timeout the PID file is kept and ErrShutdownTimeout is returned.
// A non-positive timeout means DefaultStopTimeout.
func (c *Controller) Stop(sig os.Signal, timeout time.Duration) error {
	st, err := c.Status()
	if err != nil {
		return err
	}
	if !st.Running() {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	pid := st.PID
	c.logger.Info("stopping daemon", "pid", pid, "signal", sig.String(), "timeout", timeout)
	if err := c.probe.Signal(pid, sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	if err := c.waitForExit(pid, timeout); err != nil {
		c.logger.Warn("daemon did not exit", "pid", pid, "timeout", timeout)
		c.emit(EventStopTimeout, pid)
		return err
	}
	if err := c.store.Clear(); err != nil {
		return err
	}
	c.logger.Info("daemon stopped", "pid", pid)
	c.emit(EventStopped, pid)
	return nil
}

func (c *Controller) waitForExit(pid int, timeout time.Duration) error {
	deadline := c.now().Add(timeout)
	for {
		alive, err := c.probe.Alive(pid)
		if err != nil {
			return err
		}
		if !alive {
			return nil
		}
		if !c.now().Before(deadline) {
			return fmt.Errorf("%w: pid %d still running after %s", ErrShutdownTimeout, pid, timeout)
		}
		c.sleep(c.interval)
	}
}

func (c *Controller) emit(kind EventKind, pid int) {
	if c.observer != nil {
		c.observer(Event{Kind: kind, PID: pid})
	}
}
