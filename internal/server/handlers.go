package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/foleylab/foley-api/internal/generation"
	"github.com/foleylab/foley-api/internal/lifecycle"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	coordinator        *lifecycle.Coordinator
	records            generation.Store
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateGeneration only persists the source and creates the
// record; the submit/poll/finalize tail is not started. Tests use this to
// drive the pipeline deterministically.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(coordinator *lifecycle.Coordinator, records generation.Store, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		coordinator:        coordinator,
		records:            records,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateGeneration handles POST /generations requests.
func (h *Handlers) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req CreateGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if (req.VideoURL == "") == (req.VideoBase64 == "") {
		writeError(w, http.StatusBadRequest, "exactly one of video_url and video_base64 is required", "VALIDATION_ERROR")
		return
	}

	jobReq, err := h.buildRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	// Persist the source and create the record synchronously so the caller
	// always gets an observable record id.
	rec, err := h.coordinator.Begin(r.Context(), jobReq)
	if err != nil {
		h.logger.Error("failed to start generation",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start generation", "GENERATION_START_FAILED")
		return
	}

	// Continue in the background with a detached context: the record store is
	// the source of truth for progress, so the pipeline must outlive this
	// request.
	if h.enableAsyncProcess {
		go func(ctx context.Context, rec *generation.Record, jobReq lifecycle.Request) {
			if _, processErr := h.coordinator.Process(ctx, rec, jobReq); processErr != nil {
				h.logger.Error("background generation failed",
					slog.String("generation_id", rec.ID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), rec, jobReq)
	}

	writeJSON(w, http.StatusAccepted, CreateGenerationResponse{
		ID:     rec.ID,
		Status: string(rec.Status),
	})
}

// buildRequest maps the HTTP request to a lifecycle request, applying the
// generation parameter defaults.
func (h *Handlers) buildRequest(req CreateGenerationRequest) (lifecycle.Request, error) {
	params := generation.Params{
		Seed:           -1,
		Duration:       10,
		NumSteps:       25,
		CfgStrength:    4.5,
		NegativePrompt: req.NegativePrompt,
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}
	if req.Duration != 0 {
		params.Duration = req.Duration
	}
	if req.NumSteps != 0 {
		params.NumSteps = req.NumSteps
	}
	if req.CfgStrength != 0 {
		params.CfgStrength = req.CfgStrength
	}

	kind := lifecycle.OutputAudio
	if req.OutputKind == string(lifecycle.OutputCaption) {
		kind = lifecycle.OutputCaption
	}

	var source lifecycle.Source
	if req.VideoURL != "" {
		source = lifecycle.Source{URL: req.VideoURL}
	} else {
		data, err := base64.StdEncoding.DecodeString(req.VideoBase64)
		if err != nil {
			return lifecycle.Request{}, fmt.Errorf("invalid video_base64: %w", err)
		}
		filename := req.Filename
		if filename == "" {
			filename = "upload.mp4"
		}
		source = lifecycle.Source{Reader: bytes.NewReader(data), Filename: filename}
	}

	return lifecycle.Request{
		UserID:  req.UserID,
		VideoID: req.VideoID,
		Source:  source,
		Prompt:  req.Prompt,
		Params:  params,
		Kind:    kind,
	}, nil
}

// GetGeneration handles GET /generations/{id} requests.
func (h *Handlers) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "generation id is required", "MISSING_GENERATION_ID")
		return
	}

	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, generation.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "generation not found", "GENERATION_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get generation",
			slog.String("generation_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get generation", "GENERATION_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toGenerationResponse(rec))
}

// ListGenerations handles GET /generations?user_id= requests.
func (h *Handlers) ListGenerations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required", "MISSING_USER_ID")
		return
	}

	records, err := h.records.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list generations",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list generations", "GENERATION_LIST_FAILED")
		return
	}

	result := make([]GenerationResponse, 0, len(records))
	for _, rec := range records {
		result = append(result, toGenerationResponse(rec))
	}
	writeJSON(w, http.StatusOK, result)
}

// WatchGenerations handles GET /generations/events requests by streaming
// record change events as server-sent events. The subscription is torn down
// when the request context ends.
func (h *Handlers) WatchGenerations(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "STREAMING_UNSUPPORTED")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The store is the source of truth; a consumer that falls behind misses
	// intermediate events and should re-read the records it cares about.
	events := make(chan generation.Event, 64)
	unsubscribe := h.records.Subscribe(func(ev generation.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			payload, err := json.Marshal(GenerationEvent{
				Type:       string(ev.Type),
				Generation: toGenerationResponse(ev.Record),
			})
			if err != nil {
				h.logger.Error("failed to marshal event", slog.String("error", err.Error()))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
