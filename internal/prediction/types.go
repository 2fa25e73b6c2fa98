// Package prediction provides an HTTP client for the external sound-effect
// inference API. A submitted prediction runs asynchronously; callers poll it
// by id until it reaches a terminal status.
package prediction

// Status represents the status of a remote prediction.
type Status string

// Prediction statuses as reported by the inference API.
const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// Input contains the parameters for submitting a prediction.
type Input struct {
	VideoURL       string  // Durable URL of the source video
	Prompt         string  // Text description of the desired sound
	NegativePrompt string  // Sounds to avoid (omitted from the request when empty)
	Seed           int     // Random seed, -1 for random
	Duration       int     // Output duration in seconds
	NumSteps       int     // Diffusion steps
	CfgStrength    float64 // Classifier-free guidance strength
}

// DefaultInput returns the default submission parameters.
func DefaultInput() Input {
	return Input{
		Prompt:      "ambient sound matching the video content",
		Seed:        -1,
		Duration:    10,
		NumSteps:    25,
		CfgStrength: 4.5,
	}
}

// submitRequest represents the request body for the /predictions endpoint.
type submitRequest struct {
	Input submitInput `json:"input"`
}

// submitInput represents the input field in a submit request.
type submitInput struct {
	Video          string  `json:"video"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Seed           int     `json:"seed"`
	Duration       int     `json:"duration"`
	NumSteps       int     `json:"num_steps"`
	CfgStrength    float64 `json:"cfg_strength"`
}

// submitResponse represents the response from the /predictions endpoint.
type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusResponse represents the response from the /predictions/{id} endpoint.
type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PollResult contains the result of polling a prediction's status.
type PollResult struct {
	Status Status
	Output string // Output URL for audio jobs, caption text for analysis jobs (set when succeeded)
	Error  string // Error message (set when failed)
}
