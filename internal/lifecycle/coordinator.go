// Package lifecycle provides the Coordinator use case orchestrating one
// generation job: persist the source video, create the generation record,
// submit the prediction, poll it to a terminal state, persist the output, and
// write the terminal record update. The record's status field is the durable
// state machine; the UI observes it through the record store's subscription
// rather than through the coordinator's return value.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/foleylab/foley-api/internal/generation"
	"github.com/foleylab/foley-api/internal/mediastore"
	"github.com/foleylab/foley-api/internal/prediction"
)

// Static errors for lifecycle operations.
var (
	// ErrTimeout is returned when the poll attempt budget is exhausted before
	// the prediction reaches a terminal status.
	ErrTimeout = errors.New("lifecycle: timeout")
	// ErrPredictionFailed is returned when the remote prediction reports failure.
	ErrPredictionFailed = errors.New("lifecycle: prediction failed")
	// ErrSourceRequired is returned when a request carries neither a source
	// reader nor a source URL.
	ErrSourceRequired = errors.New("lifecycle: source video is required")
)

// FinalizeError reports that the final completed update failed after the
// output media was already made durable. The caller may retry the record
// update with OutputURL without re-running the pipeline.
type FinalizeError struct {
	OutputURL string
	Err       error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("lifecycle: finalize record update failed (output already durable at %s): %v", e.OutputURL, e.Err)
}

func (e *FinalizeError) Unwrap() error {
	return e.Err
}

// OutputKind selects which pipeline a job runs: full generation producing
// audio, or analysis only producing a caption. Both share the same
// upload/submit/poll/finalize shape and differ in terminal record fields.
type OutputKind string

const (
	// OutputAudio produces a sound-effect track; terminal fields are
	// status=completed and audioUrl.
	OutputAudio OutputKind = "audio"
	// OutputCaption produces a text caption; terminal fields are
	// status=analyzed and prompt.
	OutputCaption OutputKind = "caption"
)

// Source identifies the input video: either an in-memory blob with a filename
// hint, or a remote URL to re-fetch. Exactly one must be set.
type Source struct {
	Reader   io.Reader
	Filename string
	URL      string
}

// Request contains the input for one generation job.
type Request struct {
	UserID  string
	VideoID string
	Source  Source
	Prompt  string
	Params  generation.Params
	Kind    OutputKind
}

// Outcome contains the in-process result of a finished job. The record store
// is the source of truth for anything that outlives the initiating call.
type Outcome struct {
	Record   *generation.Record
	AudioURL string // Set for audio jobs
	Caption  string // Set for caption jobs
}

// SleepFunc waits for the given duration or until the context is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// defaultSleep waits on the wall clock.
func defaultSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Coordinator orchestrates the generation job pipeline. One job runs as a
// strictly ordered sequence; concurrent jobs share no mutable state, so a
// single Coordinator serves any number of them.
type Coordinator struct {
	media       mediastore.Store
	predictions prediction.Client
	records     generation.Store
	logger      *slog.Logger

	pollInterval    time.Duration
	maxPollAttempts int
	defaultPrompt   string
	outputMediaKind mediastore.Kind
	sleep           SleepFunc
}

// Option is a function that configures a Coordinator.
type Option func(*Coordinator)

// WithPollInterval sets the delay between poll attempts.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxPollAttempts sets the poll attempt budget.
func WithMaxPollAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxPollAttempts = n
		}
	}
}

// WithDefaultPrompt sets the prompt used when a request's prompt is empty.
func WithDefaultPrompt(p string) Option {
	return func(c *Coordinator) {
		if p != "" {
			c.defaultPrompt = p
		}
	}
}

// WithOutputMediaKind sets the media kind (and therefore bucket and content
// type) used for persisted audio-job outputs. Some deployments store processed
// video instead of a bare audio track.
func WithOutputMediaKind(kind mediastore.Kind) Option {
	return func(c *Coordinator) {
		c.outputMediaKind = kind
	}
}

// WithSleep replaces the inter-poll delay, letting tests run without
// wall-clock waits.
func WithSleep(fn SleepFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(media mediastore.Store, predictions prediction.Client, records generation.Store, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		media:           media,
		predictions:     predictions,
		records:         records,
		logger:          logger,
		pollInterval:    1500 * time.Millisecond,
		maxPollAttempts: 180,
		defaultPrompt:   "ambient sound matching the video content",
		outputMediaKind: mediastore.KindAudio,
		sleep:           defaultSleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the complete pipeline: Begin followed by Process.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Outcome, error) {
	rec, err := c.Begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Process(ctx, rec, req)
}

// Begin persists the source video and creates the generation record. On a
// media failure no record exists; on a record-store failure the video blob is
// already durable and stays orphaned (not retried automatically).
func (c *Coordinator) Begin(ctx context.Context, req Request) (*generation.Record, error) {
	if req.Kind == "" {
		req.Kind = OutputAudio
	}

	videoURL, err := c.persistSource(ctx, req)
	if err != nil {
		return nil, err
	}

	status := generation.StatusProcessing
	if req.Kind == OutputCaption {
		status = generation.StatusAnalyzing
	}

	rec, err := c.records.Create(ctx, generation.CreateInput{
		UserID:   req.UserID,
		VideoID:  req.VideoID,
		Prompt:   req.Prompt,
		Status:   status,
		VideoURL: videoURL,
		Params:   req.Params,
	})
	if err != nil {
		c.logger.Error("record creation failed, source blob orphaned",
			slog.String("user_id", req.UserID),
			slog.String("video_url", videoURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("lifecycle: create record: %w", err)
	}

	c.logger.Info("generation started",
		slog.String("generation_id", rec.ID),
		slog.String("user_id", req.UserID),
		slog.String("kind", string(req.Kind)),
		slog.String("video_url", videoURL),
	)

	return rec, nil
}

// persistSource stores the request's source video durably and returns its URL.
func (c *Coordinator) persistSource(ctx context.Context, req Request) (string, error) {
	switch {
	case req.Source.Reader != nil:
		url, err := c.media.Save(ctx, req.UserID, mediastore.KindVideo, req.Source.Filename, req.Source.Reader)
		if err != nil {
			return "", fmt.Errorf("lifecycle: persist source: %w", err)
		}
		return url, nil
	case req.Source.URL != "":
		url, err := c.media.Mirror(ctx, req.UserID, mediastore.KindVideo, req.Source.URL)
		if err != nil {
			return "", fmt.Errorf("lifecycle: persist source: %w", err)
		}
		return url, nil
	default:
		return "", ErrSourceRequired
	}
}

// Process runs the remainder of the pipeline for an already-created record:
// submit, poll to terminal, persist output, terminal record update.
func (c *Coordinator) Process(ctx context.Context, rec *generation.Record, req Request) (*Outcome, error) {
	if req.Kind == "" {
		req.Kind = OutputAudio
	}

	jobID, err := c.submit(ctx, rec, req)
	if err != nil {
		return nil, err
	}

	result, err := c.pollUntilTerminal(ctx, rec, jobID)
	if err != nil {
		return nil, err
	}

	if result.Status == prediction.StatusFailed {
		msg := result.Error
		if msg == "" {
			msg = "prediction failed"
		}
		c.failRecord(ctx, rec.ID, msg)
		return nil, fmt.Errorf("%w: %s", ErrPredictionFailed, msg)
	}

	return c.finalize(ctx, rec, req, result)
}

// submit assembles the prediction input and submits it. If submission fails
// the record is marked error before the failure surfaces to the caller; it
// must never be left in a non-terminal status with no job behind it.
func (c *Coordinator) submit(ctx context.Context, rec *generation.Record, req Request) (string, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = c.defaultPrompt
	}

	jobID, err := c.predictions.Submit(ctx, prediction.Input{
		VideoURL:       rec.VideoURL,
		Prompt:         prompt,
		NegativePrompt: req.Params.NegativePrompt,
		Seed:           req.Params.Seed,
		Duration:       req.Params.Duration,
		NumSteps:       req.Params.NumSteps,
		CfgStrength:    req.Params.CfgStrength,
	})
	if err != nil {
		c.failRecord(ctx, rec.ID, err.Error())
		return "", fmt.Errorf("lifecycle: submit: %w", err)
	}

	c.logger.Info("prediction submitted",
		slog.String("generation_id", rec.ID),
		slog.String("prediction_id", jobID),
	)

	return jobID, nil
}

// pollUntilTerminal polls the prediction until it reaches a terminal status or
// the attempt budget runs out. Cancellation stops polling and store updates,
// leaving the record in whatever status was last durably written; the remote
// prediction is not cancelled.
func (c *Coordinator) pollUntilTerminal(ctx context.Context, rec *generation.Record, jobID string) (prediction.PollResult, error) {
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.pollInterval); err != nil {
				c.logger.Info("polling cancelled",
					slog.String("generation_id", rec.ID),
					slog.String("prediction_id", jobID),
					slog.Int("attempt", attempt),
				)
				return prediction.PollResult{}, fmt.Errorf("lifecycle: polling cancelled: %w", err)
			}
		}

		result, err := c.predictions.Poll(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return prediction.PollResult{}, fmt.Errorf("lifecycle: polling cancelled: %w", ctx.Err())
			}
			c.failRecord(ctx, rec.ID, err.Error())
			return prediction.PollResult{}, fmt.Errorf("lifecycle: poll: %w", err)
		}

		if result.Status.IsTerminal() {
			return result, nil
		}
	}

	c.failRecord(ctx, rec.ID, "timeout")
	return prediction.PollResult{}, fmt.Errorf("%w: no terminal status after %d attempts", ErrTimeout, c.maxPollAttempts)
}

// finalize persists the output and writes the terminal record update.
func (c *Coordinator) finalize(ctx context.Context, rec *generation.Record, req Request, result prediction.PollResult) (*Outcome, error) {
	if req.Kind == OutputCaption {
		status := generation.StatusAnalyzed
		updated, err := c.records.Update(ctx, rec.ID, generation.Patch{
			Status: &status,
			Prompt: &result.Output,
		})
		if err != nil {
			return nil, fmt.Errorf("lifecycle: finalize caption: %w", err)
		}
		c.logger.Info("analysis completed",
			slog.String("generation_id", rec.ID),
		)
		return &Outcome{Record: updated, Caption: result.Output}, nil
	}

	outputURL, err := c.media.Mirror(ctx, req.UserID, c.outputMediaKind, result.Output)
	if err != nil {
		c.failRecord(ctx, rec.ID, err.Error())
		return nil, fmt.Errorf("lifecycle: persist output: %w", err)
	}

	status := generation.StatusCompleted
	updated, err := c.records.Update(ctx, rec.ID, generation.Patch{
		Status:   &status,
		AudioURL: &outputURL,
	})
	if err != nil {
		// The output is already durable; surface the URL so the caller can
		// retry the record update without re-running the pipeline.
		c.logger.Error("final record update failed after durable output",
			slog.String("generation_id", rec.ID),
			slog.String("output_url", outputURL),
			slog.String("error", err.Error()),
		)
		return nil, &FinalizeError{OutputURL: outputURL, Err: err}
	}

	c.logger.Info("generation completed",
		slog.String("generation_id", rec.ID),
		slog.String("audio_url", outputURL),
	)

	return &Outcome{Record: updated, AudioURL: outputURL}, nil
}

// failRecord writes a terminal error status to the record. A failure here is
// logged but does not mask the error that caused it.
func (c *Coordinator) failRecord(ctx context.Context, id, msg string) {
	status := generation.StatusError
	if _, err := c.records.Update(ctx, id, generation.Patch{
		Status:       &status,
		ErrorMessage: &msg,
	}); err != nil {
		c.logger.Error("failed to mark record as error",
			slog.String("generation_id", id),
			slog.String("cause", msg),
			slog.String("error", err.Error()),
		)
		return
	}

	c.logger.Warn("generation failed",
		slog.String("generation_id", id),
		slog.String("error", msg),
	)
}
