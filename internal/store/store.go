package store

import (
	"context"

	"github.com/joescharf/pyt/internal/models"
)

// EventFilter specifies filters for listing events.
type EventFilter struct {
	Daemon string
	Kind   models.EventKind
	Limit  int
}

// Store defines the persistence interface for pyt.
type Store interface {
	// Events
	RecordEvent(ctx context.Context, e *models.Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]*models.Event, error)
	PruneEvents(ctx context.Context, keep int) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
