package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// subscriberBuffer bounds how far a subscriber may fall behind the publisher
// before publishes start blocking on it.
const subscriberBuffer = 64

// subscriber owns a buffered event channel drained by its own goroutine.
type subscriber struct {
	ch   chan Event
	done chan struct{}
}

// MemoryStore is an in-memory implementation of Store.
// It uses a map with RWMutex for thread-safe access and fans change events out
// to subscribers on per-subscriber channels. Publishes are serialized, so each
// subscriber observes events in commit order, which implies per-id ordering.
// Suitable for development and testing; swap for persistent storage in production.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record

	subMu  sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

// NewMemoryStore creates a new in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		subs:    make(map[int]*subscriber),
	}
}

// Create inserts a new record with a generated id.
func (s *MemoryStore) Create(_ context.Context, input CreateInput) (*Record, error) {
	now := time.Now()
	rec := &Record{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		VideoID:   input.VideoID,
		Prompt:    input.Prompt,
		Status:    input.Status,
		VideoURL:  input.VideoURL,
		Params:    input.Params,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()

	s.publish(Event{Type: EventCreated, Record: rec.Clone()})
	return rec.Clone(), nil
}

// Update applies a patch to an existing record.
func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (*Record, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrRecordNotFound
	}

	if err := validatePatch(rec, patch); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.Prompt != nil {
		rec.Prompt = *patch.Prompt
	}
	if patch.VideoID != nil {
		rec.VideoID = *patch.VideoID
	}
	if patch.AudioURL != nil {
		rec.AudioURL = *patch.AudioURL
	}
	if patch.ErrorMessage != nil {
		rec.ErrorMessage = *patch.ErrorMessage
	}
	rec.UpdatedAt = time.Now()

	snapshot := rec.Clone()
	s.mu.Unlock()

	s.publish(Event{Type: EventUpdated, Record: snapshot.Clone()})
	return snapshot, nil
}

// validatePatch enforces the transition table and record invariants.
// Must be called with the write lock held.
func validatePatch(rec *Record, patch Patch) error {
	if rec.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrRecordTerminal, rec.ID, rec.Status)
	}

	next := rec.Status
	if patch.Status != nil {
		next = *patch.Status
		if next != rec.Status && !CanTransition(rec.Status, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, next)
		}
	}

	if patch.AudioURL != nil && *patch.AudioURL != "" && next != StatusCompleted {
		return fmt.Errorf("%w: audio URL requires completed status", ErrInvariantViolation)
	}
	if patch.ErrorMessage != nil && *patch.ErrorMessage != "" && next != StatusError {
		return fmt.Errorf("%w: error message requires error status", ErrInvariantViolation)
	}
	if next == StatusCompleted && patch.AudioURL == nil && rec.AudioURL == "" {
		return fmt.Errorf("%w: completed status requires an audio URL", ErrInvariantViolation)
	}
	if next == StatusError && patch.ErrorMessage == nil {
		return fmt.Errorf("%w: error status requires an error message", ErrInvariantViolation)
	}

	return nil
}

// Get retrieves a record by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// ListByUser returns all records owned by userID.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Record, 0)
	for _, rec := range s.records {
		if rec.UserID == userID {
			result = append(result, rec.Clone())
		}
	}
	return result, nil
}

// Subscribe registers fn for all change events.
func (s *MemoryStore) Subscribe(fn func(Event)) func() {
	sub := &subscriber{
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.subMu.Unlock()

	go func() {
		defer close(sub.done)
		for ev := range sub.ch {
			fn(ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(sub.ch)
			<-sub.done
		})
	}
}

// publish delivers an event to every subscriber. Holding subMu for the whole
// fan-out serializes publishes, preserving commit order per subscriber.
func (s *MemoryStore) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		sub.ch <- ev
	}
}
