package generation

import (
	"context"
	"errors"
)

// Static errors for record store operations.
var (
	// ErrRecordNotFound is returned when a record cannot be found by id.
	ErrRecordNotFound = errors.New("generation: record not found")
	// ErrRecordTerminal is returned when an update targets a record that has
	// already reached a terminal status.
	ErrRecordTerminal = errors.New("generation: record is terminal")
	// ErrInvariantViolation is returned when a patch would break a record
	// invariant (for example an audio URL without a completed status).
	ErrInvariantViolation = errors.New("generation: record invariant violation")
)

// CreateInput contains the fields set when a record is created.
type CreateInput struct {
	UserID   string
	VideoID  string
	Prompt   string
	Status   Status
	VideoURL string
	Params   Params
}

// Patch describes a partial update to a record. Nil fields are left unchanged.
type Patch struct {
	Status       *Status
	Prompt       *string
	VideoID      *string
	AudioURL     *string
	ErrorMessage *string
}

// EventType distinguishes change notifications.
type EventType string

const (
	// EventCreated is emitted when a record is inserted.
	EventCreated EventType = "created"
	// EventUpdated is emitted when a record is updated.
	EventUpdated EventType = "updated"
)

// Event is a change notification carrying a snapshot of the record.
type Event struct {
	Type   EventType
	Record *Record
}

// Store defines the interface for generation record persistence with change
// notifications. Delivery to subscribers is at-least-once and ordered per
// record id; ordering across distinct ids is not guaranteed.
type Store interface {
	// Create inserts a new record and returns it with id and timestamps set.
	Create(ctx context.Context, input CreateInput) (*Record, error)

	// Update applies a patch to the record with the given id and returns the
	// updated record. Status changes are validated against the transition
	// table; updates to terminal records fail with ErrRecordTerminal.
	Update(ctx context.Context, id string, patch Patch) (*Record, error)

	// Get retrieves a record by id. Returns ErrRecordNotFound if absent.
	Get(ctx context.Context, id string) (*Record, error)

	// ListByUser returns all records owned by userID.
	ListByUser(ctx context.Context, userID string) ([]*Record, error)

	// Subscribe registers fn for every insert/update event, regardless of
	// owner. It returns an unsubscribe function that stops delivery; after it
	// returns no further calls to fn are made.
	Subscribe(fn func(Event)) (unsubscribe func())
}
