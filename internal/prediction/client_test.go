package prediction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// setTestEnv sets the PREDICTION_API_KEY env var and returns a cleanup function.
func setTestEnv(t *testing.T) {
	t.Helper()
	if err := os.Setenv("PREDICTION_API_KEY", "test-key"); err != nil {
		t.Fatalf("failed to set env: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("PREDICTION_API_KEY")
	})
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusStarting, false},
		{StatusProcessing, false},
		{StatusSucceeded, true},
		{StatusFailed, true},
		{Status("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("Status(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestDefaultInput(t *testing.T) {
	in := DefaultInput()

	if in.Prompt != "ambient sound matching the video content" {
		t.Errorf("expected default prompt, got %q", in.Prompt)
	}
	if in.Seed != -1 {
		t.Errorf("expected Seed -1, got %d", in.Seed)
	}
	if in.Duration == 0 {
		t.Error("expected non-zero Duration")
	}
	if in.NumSteps == 0 {
		t.Error("expected non-zero NumSteps")
	}
	if in.CfgStrength == 0 {
		t.Error("expected non-zero CfgStrength")
	}
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	_ = os.Unsetenv("PREDICTION_API_KEY")

	_, err := NewClient()
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClient_WithAPIKeyOption(t *testing.T) {
	_ = os.Unsetenv("PREDICTION_API_KEY")

	client, err := NewClient(WithAPIKey("explicit-api-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.apiKey != "explicit-api-key" {
		t.Errorf("expected apiKey to be 'explicit-api-key', got '%s'", client.apiKey)
	}
}

func TestSubmit_Success(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.Input.Video != "https://cdn/clip.mp4" {
			t.Errorf("expected video url, got %s", req.Input.Video)
		}
		if req.Input.Prompt != "rain on a tin roof" {
			t.Errorf("unexpected prompt %q", req.Input.Prompt)
		}

		_ = json.NewEncoder(w).Encode(submitResponse{ID: "pred-123"})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	in := DefaultInput()
	in.VideoURL = "https://cdn/clip.mp4"
	in.Prompt = "rain on a tin roof"

	jobID, err := client.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "pred-123" {
		t.Errorf("expected pred-123, got %s", jobID)
	}
}

func TestSubmit_EmptyPromptUsesFallback(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Input.Prompt != "ambient sound matching the video content" {
			t.Errorf("expected fallback prompt, got %q", req.Input.Prompt)
		}
		_ = json.NewEncoder(w).Encode(submitResponse{ID: "pred-1"})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	in := DefaultInput()
	in.VideoURL = "https://cdn/clip.mp4"
	in.Prompt = ""

	if _, err := client.Submit(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmit_EmptyNegativePromptOmitted(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]map[string]any
		_ = json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["input"]["negative_prompt"]; ok {
			t.Error("expected negative_prompt to be omitted when empty")
		}
		_ = json.NewEncoder(w).Encode(submitResponse{ID: "pred-1"})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	in := DefaultInput()
	in.VideoURL = "https://cdn/clip.mp4"

	if _, err := client.Submit(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmit_Error(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(submitResponse{Error: "quota exceeded"})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	_, err := client.Submit(context.Background(), DefaultInput())
	if err == nil {
		t.Error("expected error")
	}
}

func TestSubmit_ContextCancelled(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Submit(ctx, DefaultInput())
	if err == nil {
		t.Error("expected error due to context cancellation")
	}
}

func TestPoll_AllStatuses(t *testing.T) {
	setTestEnv(t)

	tests := []struct {
		name           string
		response       statusResponse
		expectedStatus Status
		expectedOutput string
		expectedError  string
	}{
		{
			name:           "starting",
			response:       statusResponse{ID: "pred-1", Status: "starting"},
			expectedStatus: StatusStarting,
		},
		{
			name:           "processing",
			response:       statusResponse{ID: "pred-1", Status: "processing"},
			expectedStatus: StatusProcessing,
		},
		{
			name: "succeeded",
			response: statusResponse{
				ID:     "pred-1",
				Status: "succeeded",
				Output: "https://cdn/x.mp3",
			},
			expectedStatus: StatusSucceeded,
			expectedOutput: "https://cdn/x.mp3",
		},
		{
			name: "failed",
			response: statusResponse{
				ID:     "pred-1",
				Status: "failed",
				Error:  "OOM",
			},
			expectedStatus: StatusFailed,
			expectedError:  "OOM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client, _ := NewClient(WithBaseURL(server.URL))

			result, err := client.Poll(context.Background(), "pred-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, result.Status)
			}
			if result.Output != tt.expectedOutput {
				t.Errorf("expected output %q, got %q", tt.expectedOutput, result.Output)
			}
			if result.Error != tt.expectedError {
				t.Errorf("expected error %q, got %q", tt.expectedError, result.Error)
			}
		})
	}
}

func TestPoll_MissingJobID(t *testing.T) {
	setTestEnv(t)

	client, _ := NewClient()
	_, err := client.Poll(context.Background(), "")
	if err == nil {
		t.Error("expected error for missing prediction id")
	}
}

func TestPoll_TerminalIsIdempotent(t *testing.T) {
	setTestEnv(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(statusResponse{
			ID:     "pred-1",
			Status: "succeeded",
			Output: "https://cdn/x.mp3",
		})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	for i := 0; i < 3; i++ {
		result, err := client.Poll(context.Background(), "pred-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Status != StatusSucceeded || result.Output != "https://cdn/x.mp3" {
			t.Errorf("poll %d: expected stable terminal result, got %+v", i, result)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 status calls, got %d", calls.Load())
	}
}

func TestDoRequestWithRetry_RetriesOn500(t *testing.T) {
	setTestEnv(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(submitResponse{ID: "pred-1"})
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithBaseBackoff(time.Millisecond),
	)

	jobID, err := client.Submit(context.Background(), DefaultInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "pred-1" {
		t.Errorf("expected pred-1, got %s", jobID)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestDoRequestWithRetry_NoRetryOn400(t *testing.T) {
	setTestEnv(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithBaseBackoff(time.Millisecond),
	)

	_, err := client.Submit(context.Background(), DefaultInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call (no retry), got %d", calls.Load())
	}
}
