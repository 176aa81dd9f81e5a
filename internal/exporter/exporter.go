// Package exporter orchestrates one export: it probes the source, maps the
// edited timeline onto output frames, drives the renderer and encoder with
// backpressure, and finalizes the container. The exporter owns every pipeline
// component for the duration of a single Export call and tears all of them
// down before returning, success or not.
package exporter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/framecast/framecast-agent/internal/encode"
	"github.com/framecast/framecast-agent/internal/media"
	"github.com/framecast/framecast-agent/internal/project"
)

// ErrCancelled reports an export stopped by the caller.
var ErrCancelled = errors.New("exporter: export cancelled")

// WarningAudioUnavailable flags a requested audio track that the source does
// not have. The export still succeeds, video only.
const WarningAudioUnavailable = "audio-track-unavailable"

// State is the orchestrator lifecycle.
type State string

const (
	StateIdle             State = "idle"
	StateDecodingMetadata State = "decoding-metadata"
	StateRendering        State = "rendering"
	StateFinalizing       State = "finalizing"
	StateDone             State = "done"
	StateCancelled        State = "cancelled"
	StateFailed           State = "failed"
)

// Phase is the coarse progress phase reported to callers.
type Phase string

const (
	PhaseRendering  Phase = "rendering"
	PhaseFinalizing Phase = "finalizing"
)

// Progress is one progress emission. Instances are created per frame or
// heartbeat tick and never persisted.
type Progress struct {
	CurrentFrame           int64
	TotalFrames            int64
	Percentage             float64
	EstimatedTimeRemaining time.Duration
	Phase                  Phase
	PhaseDetailKey         string
	UpdatedAtMs            int64
	ElapsedMs              int64
	ActivityTick           int64
	IsHeartbeat            bool
}

// Result is the outcome of one export.
type Result struct {
	Success  bool
	Blob     []byte
	Err      error
	Warnings []string
}

// Config describes one export request.
type Config struct {
	Project    *project.Project
	OnProgress func(Progress)
	OnState    func(State)
}

// finalizeStepTimeout bounds each finalize step.
const finalizeStepTimeout = 120 * time.Second

// heartbeatInterval paces progress emissions while a finalize step runs.
const heartbeatInterval = time.Second

// Exporter builds export sessions. The decoder and encoder factory are
// injected so tests can run the whole pipeline without ffmpeg.
type Exporter struct {
	decoder    media.Decoder
	newEncoder func() encode.VideoEncoder
	logger     *slog.Logger
}

// New returns an Exporter using the given media decoder and encoder factory.
func New(decoder media.Decoder, newEncoder func() encode.VideoEncoder, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{decoder: decoder, newEncoder: newEncoder, logger: logger}
}

// Export runs one export to completion. Cancellation of ctx is honored
// between frames and inside capacity waits; in-flight operations are never
// interrupted.
func (e *Exporter) Export(ctx context.Context, cfg Config) Result {
	if cfg.Project == nil {
		return Result{Err: errors.New("exporter: nil project")}
	}

	s := newSession(e, cfg)
	s.setState(StateIdle)

	result := s.run(ctx)
	s.teardown()

	switch {
	case result.Success:
		s.setState(StateDone)
	case errors.Is(result.Err, ErrCancelled):
		s.setState(StateCancelled)
	default:
		s.setState(StateFailed)
	}
	return result
}
