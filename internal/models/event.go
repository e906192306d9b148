package models

import "time"

// EventKind identifies a lifecycle transition.
type EventKind string

const (
	EventStarted        EventKind = "started"
	EventAlreadyRunning EventKind = "already_running"
	EventStopped        EventKind = "stopped"
	EventStale          EventKind = "stale"
	EventStopTimeout    EventKind = "stop_timeout"
	EventRemoved        EventKind = "removed"
)

// Event is one recorded lifecycle transition of a managed daemon or container.
type Event struct {
	ID        string
	Daemon    string
	Kind      EventKind
	PID       int
	Detail    string
	CreatedAt time.Time
}
