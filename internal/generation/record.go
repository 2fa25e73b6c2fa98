// Package generation provides the GenerationRecord aggregate and its store.
// A record is the durable representation of one generation job's progress:
// its status field is the state machine the UI observes, so it survives the
// session that started the job.
package generation

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a generation record.
type Status string

const (
	// StatusAnalyzing indicates an analysis-only job is in flight.
	StatusAnalyzing Status = "analyzing"
	// StatusAnalyzed indicates an analysis-only job finished and produced a caption.
	StatusAnalyzed Status = "analyzed"
	// StatusProcessing indicates a full generation job is in flight.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the job finished and the output audio is durable.
	StatusCompleted Status = "completed"
	// StatusError indicates the job failed; ErrorMessage carries the reason.
	StatusError Status = "error"
)

// ErrInvalidTransition is returned when an update attempts a status change the
// transition table does not allow.
var ErrInvalidTransition = errors.New("generation: invalid status transition")

// validTransitions defines which status transitions are allowed.
// Transitions are append-only: terminal states have no successors.
var validTransitions = map[Status][]Status{
	StatusAnalyzing:  {StatusAnalyzed, StatusError},
	StatusProcessing: {StatusCompleted, StatusError},
	StatusAnalyzed:   {},
	StatusCompleted:  {},
	StatusError:      {},
}

// CanTransition checks if a status change from one state to another is valid.
func CanTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAnalyzed, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

// Params is the immutable snapshot of the request that produced a record.
type Params struct {
	// Seed is the random seed, -1 for random.
	Seed int
	// Duration is the requested output duration in seconds.
	Duration int
	// NumSteps is the number of diffusion steps.
	NumSteps int
	// CfgStrength is the classifier-free guidance strength.
	CfgStrength float64
	// NegativePrompt lists sounds to avoid; empty means none.
	NegativePrompt string
}

// Record represents one generation job's persisted state.
type Record struct {
	// ID is the opaque unique identifier, assigned at creation.
	ID string
	// UserID is the owner reference, immutable after creation.
	UserID string
	// VideoID references the associated video entity; empty until one exists.
	VideoID string
	// Prompt is the user-supplied or auto-analyzed description.
	Prompt string
	// Status is the current lifecycle state.
	Status Status
	// VideoURL is the durable source video URL, populated at creation.
	VideoURL string
	// AudioURL is the durable output URL, non-empty iff Status is completed.
	AudioURL string
	// ErrorMessage is non-empty iff Status is error.
	ErrorMessage string
	// Params is the immutable request snapshot.
	Params Params
	// CreatedAt is when the record was created.
	CreatedAt time.Time
	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time
}

// Clone returns a copy of the record for safe reads.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
