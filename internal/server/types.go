// Package server provides the HTTP server for the Foley API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/foleylab/foley-api/internal/generation"
)

// CreateGenerationRequest is the HTTP request body for starting a generation.
// Exactly one of VideoURL and VideoBase64 must be set.
type CreateGenerationRequest struct {
	// UserID is the owner of the generation.
	UserID string `json:"user_id" validate:"required"`
	// VideoID optionally links the generation to an existing video entity.
	VideoID string `json:"video_id"`
	// VideoURL is a remote source video to re-fetch.
	VideoURL string `json:"video_url" validate:"omitempty,url"`
	// VideoBase64 is an inline base64-encoded source video.
	VideoBase64 string `json:"video_base64" validate:"omitempty,base64"`
	// Filename is a name hint for inline uploads; its extension is kept.
	Filename string `json:"filename"`
	// Prompt describes the desired sound; empty means auto.
	Prompt string `json:"prompt"`
	// OutputKind is "audio" (default) or "caption".
	OutputKind string `json:"output_kind" validate:"omitempty,oneof=audio caption"`
	// Seed is the random seed; omitted means random.
	Seed *int `json:"seed"`
	// Duration is the output duration in seconds.
	Duration int `json:"duration" validate:"omitempty,min=1,max=60"`
	// NumSteps is the number of diffusion steps.
	NumSteps int `json:"num_steps" validate:"omitempty,min=1,max=200"`
	// CfgStrength is the classifier-free guidance strength.
	CfgStrength float64 `json:"cfg_strength" validate:"omitempty,min=0,max=20"`
	// NegativePrompt lists sounds to avoid.
	NegativePrompt string `json:"negative_prompt"`
}

// CreateGenerationResponse is the HTTP response after starting a generation.
type CreateGenerationResponse struct {
	// ID is the unique identifier of the created generation record.
	ID string `json:"id"`
	// Status is the initial record status.
	Status string `json:"status"`
}

// GenerationResponse is the HTTP representation of a generation record.
type GenerationResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	VideoID        string    `json:"video_id,omitempty"`
	Prompt         string    `json:"prompt,omitempty"`
	Status         string    `json:"status"`
	VideoURL       string    `json:"video_url,omitempty"`
	AudioURL       string    `json:"audio_url,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Seed           int       `json:"seed"`
	Duration       int       `json:"duration"`
	NumSteps       int       `json:"num_steps"`
	CfgStrength    float64   `json:"cfg_strength"`
	NegativePrompt string    `json:"negative_prompt,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// toGenerationResponse maps a record to its HTTP representation.
func toGenerationResponse(rec *generation.Record) GenerationResponse {
	return GenerationResponse{
		ID:             rec.ID,
		UserID:         rec.UserID,
		VideoID:        rec.VideoID,
		Prompt:         rec.Prompt,
		Status:         string(rec.Status),
		VideoURL:       rec.VideoURL,
		AudioURL:       rec.AudioURL,
		ErrorMessage:   rec.ErrorMessage,
		Seed:           rec.Params.Seed,
		Duration:       rec.Params.Duration,
		NumSteps:       rec.Params.NumSteps,
		CfgStrength:    rec.Params.CfgStrength,
		NegativePrompt: rec.Params.NegativePrompt,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// GenerationEvent is one server-sent event on the activity feed.
type GenerationEvent struct {
	// Type is "created" or "updated".
	Type string `json:"type"`
	// Generation is the record snapshot after the change.
	Generation GenerationResponse `json:"generation"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
