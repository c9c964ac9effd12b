package history

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when an entry ID is unknown.
	ErrNotFound = errors.New("history entry not found")
	// ErrInvalidEntry is returned for entries missing required fields.
	ErrInvalidEntry = errors.New("invalid history entry")
)

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	// Save writes e, replacing any entry with the same ID.
	Save(ctx context.Context, e *Entry) error

	// LoadAll returns every stored entry in no particular order. Records that
	// cannot be decoded are skipped.
	LoadAll(ctx context.Context) ([]*Entry, error)

	// Delete removes the entry with the given ID. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error
}
