package exporter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"time"

	"github.com/framecast/framecast-agent/internal/cursor"
	"github.com/framecast/framecast-agent/internal/media"
	"github.com/framecast/framecast-agent/internal/project"
	"github.com/framecast/framecast-agent/internal/render"
	"github.com/framecast/framecast-agent/internal/timeline"
)

// session carries the state of one export run.
type session struct {
	exp    *Exporter
	cfg    Config
	proj   *project.Project
	logger *slog.Logger

	startedAt    time.Time
	activityTick int64
	warnings     map[string]struct{}

	probe    *media.ProbeResult
	source   media.FrameSource
	renderer *render.Renderer
	sink     frameSink

	outW, outH int
	fps        float64
	frameDurMs int64
	// sourceFrameDurMs is the cadence of the decoder's frames, used as the
	// playback-sampling match tolerance.
	sourceFrameDurMs int64
	totalFrames      int64
	mergedTrims []timeline.TrimRegion
	keptRanges  []timeline.Range
	effectiveMs int64

	// nextFrame is the next output frame index to produce; producers advance
	// it so a fallback strategy picks up exactly where its predecessor left.
	nextFrame int64
	lastFrame *image.RGBA
}

func newSession(e *Exporter, cfg Config) *session {
	return &session{
		exp:       e,
		cfg:       cfg,
		proj:      cfg.Project,
		logger:    e.logger.With("component", "exporter"),
		startedAt: time.Now(),
		warnings:  map[string]struct{}{},
	}
}

func (s *session) setState(st State) {
	if s.cfg.OnState != nil {
		s.cfg.OnState(st)
	}
}

func (s *session) run(ctx context.Context) Result {
	if err := s.prepare(ctx); err != nil {
		return s.fail(err)
	}

	s.setState(StateRendering)
	if err := s.produceFrames(ctx); err != nil {
		return s.fail(err)
	}

	s.setState(StateFinalizing)
	blob, err := s.sink.finalize(ctx, s)
	if err != nil {
		return s.fail(err)
	}

	s.logger.Info("export complete",
		"frames", s.totalFrames,
		"elapsed_ms", time.Since(s.startedAt).Milliseconds(),
		"bytes", len(blob))
	return Result{Success: true, Blob: blob, Warnings: s.warningList()}
}

func (s *session) prepare(ctx context.Context) error {
	s.setState(StateDecodingMetadata)

	probe, err := s.exp.decoder.Probe(ctx, s.proj.SourcePath)
	if err != nil {
		return fmt.Errorf("probe source: %w", err)
	}
	s.probe = probe

	out := s.proj.Output
	s.fps = out.FrameRate
	if out.Format == project.FormatGIF && out.GIFFrameRate > 0 {
		s.fps = out.GIFFrameRate
	}
	if s.fps <= 0 {
		s.fps = probe.FrameRate
	}
	s.fps = timeline.NormalizeFrameRate(s.fps)
	s.frameDurMs = int64(1000/s.fps + 0.5)
	if s.frameDurMs < 1 {
		s.frameDurMs = 1
	}
	s.sourceFrameDurMs = s.frameDurMs
	if probe.FrameRate > 0 {
		s.sourceFrameDurMs = int64(1000/probe.FrameRate + 0.5)
		if s.sourceFrameDurMs < 1 {
			s.sourceFrameDurMs = 1
		}
	}

	s.outW, s.outH = out.Width, out.Height
	if s.outW <= 0 || s.outH <= 0 {
		s.outW, s.outH = probe.Width, probe.Height
	}
	// H.264 4:2:0 needs even dimensions.
	s.outW &^= 1
	s.outH &^= 1
	if s.outW < 2 || s.outH < 2 {
		return fmt.Errorf("output dimensions %dx%d too small", s.outW, s.outH)
	}

	s.mergedTrims = timeline.MergeTrims(s.proj.Timeline.Trims, probe.DurationMs)
	s.effectiveMs = timeline.EffectiveDurationMs(probe.DurationMs, s.mergedTrims)
	s.keptRanges = timeline.BuildKeptRanges(probe.DurationMs, s.proj.Timeline.Trims)
	s.totalFrames = timeline.FrameCount(s.effectiveMs, s.fps)
	if s.totalFrames == 0 {
		return fmt.Errorf("timeline is empty after trims")
	}

	crop := timeline.FullCrop()
	if s.proj.Timeline.Crop != nil {
		crop = *s.proj.Timeline.Crop
	}
	ropts := render.Options{
		Width:       s.outW,
		Height:      s.outH,
		Style:       s.proj.Style,
		Crop:        crop,
		Zooms:       s.proj.Timeline.Zooms,
		Annotations: s.proj.Timeline.Annotations,
		Subtitles:   s.proj.Timeline.Subtitles,
		CursorScale: s.proj.Cursor.Scale,
		EraseCursor: s.proj.Cursor.Erase,
	}
	if s.hasCursorTrack() {
		ropts.Cursor = cursor.Prepare(s.proj.Cursor.Track, s.proj.Cursor.Options)
	}
	renderer, err := render.New(ropts, s.logger)
	if err != nil {
		return fmt.Errorf("build renderer: %w", err)
	}
	s.renderer = renderer

	sink, err := s.newSink()
	if err != nil {
		return err
	}
	s.sink = sink
	if err := sink.begin(ctx, s); err != nil {
		return err
	}

	source, err := s.exp.decoder.OpenSource(ctx, s.proj.SourcePath, probe)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	s.source = source
	return nil
}

func (s *session) hasCursorTrack() bool {
	return s.proj.Cursor.Track != nil && len(s.proj.Cursor.Track.Samples) > 0
}

// produceFrames walks the strategy chain. Playback sampling that cannot keep
// up hands the remainder to seek sampling.
func (s *session) produceFrames(ctx context.Context) error {
	var producers []frameProducer
	if s.hasCursorTrack() {
		producers = []frameProducer{seekProducer{}}
	} else {
		producers = []frameProducer{&playbackProducer{}, seekProducer{}}
	}

	for _, p := range producers {
		if s.nextFrame >= s.totalFrames {
			break
		}
		err := p.produce(ctx, s)
		if err == errPlaybackLagging {
			s.logger.Warn("playback sampling cannot keep up, switching to seek sampling",
				"frame", s.nextFrame, "total", s.totalFrames)
			continue
		}
		if err != nil {
			return err
		}
	}
	if s.nextFrame < s.totalFrames {
		return fmt.Errorf("frame production stopped at %d of %d", s.nextFrame, s.totalFrames)
	}
	return nil
}

// frameTarget maps an output frame index to its effective and source times.
func (s *session) frameTarget(i int64) (effMs, srcMs int64) {
	effMs = timeline.TimestampUs(i, s.fps) / 1000
	srcMs = timeline.MapEffectiveToSource(effMs, s.mergedTrims)
	return effMs, srcMs
}

func (s *session) checkCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

// renderEncode composites one output frame and hands it to the sink, waiting
// for capacity first.
func (s *session) renderEncode(ctx context.Context, src *image.RGBA, i int64) error {
	effMs, srcMs := s.frameTarget(i)
	out := s.renderer.RenderFrame(src, srcMs*1000, effMs)

	if err := s.sink.waitCapacity(ctx); err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return err
	}
	if err := s.sink.submit(out, timeline.TimestampUs(i, s.fps), timeline.DurationUs(i, s.fps)); err != nil {
		return err
	}
	s.emitFrameProgress(i + 1)
	return nil
}

func (s *session) emitFrameProgress(done int64) {
	if s.cfg.OnProgress == nil {
		return
	}
	now := time.Now()
	elapsed := now.Sub(s.startedAt)

	var eta time.Duration
	if done > 0 && done < s.totalFrames {
		perFrame := elapsed / time.Duration(done)
		eta = perFrame * time.Duration(s.totalFrames-done)
	}
	s.activityTick++
	s.cfg.OnProgress(Progress{
		CurrentFrame:           done,
		TotalFrames:            s.totalFrames,
		Percentage:             float64(done) / float64(s.totalFrames) * 100,
		EstimatedTimeRemaining: eta,
		Phase:                  PhaseRendering,
		UpdatedAtMs:            now.UnixMilli(),
		ElapsedMs:              elapsed.Milliseconds(),
		ActivityTick:           s.activityTick,
	})
}

func (s *session) emitHeartbeat(detailKey string) {
	if s.cfg.OnProgress == nil {
		return
	}
	now := time.Now()
	s.activityTick++
	s.cfg.OnProgress(Progress{
		CurrentFrame:   s.nextFrame,
		TotalFrames:    s.totalFrames,
		Percentage:     100,
		Phase:          PhaseFinalizing,
		PhaseDetailKey: detailKey,
		UpdatedAtMs:    now.UnixMilli(),
		ElapsedMs:      now.Sub(s.startedAt).Milliseconds(),
		ActivityTick:   s.activityTick,
		IsHeartbeat:    true,
	})
}

// runStep executes one finalize step with a hard time box, emitting heartbeat
// progress while it runs.
func (s *session) runStep(ctx context.Context, detailKey string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, finalizeStepTimeout)
	defer cancel()

	s.emitHeartbeat(detailKey)
	done := make(chan error, 1)
	go func() { done <- fn(stepCtx) }()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				if ctx.Err() != nil {
					return ErrCancelled
				}
				return fmt.Errorf("%s: %w", detailKey, err)
			}
			return nil
		case <-ticker.C:
			s.emitHeartbeat(detailKey)
		}
	}
}

func (s *session) warn(key string) {
	s.warnings[key] = struct{}{}
}

func (s *session) warningList() []string {
	if len(s.warnings) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.warnings))
	for k := range s.warnings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *session) fail(err error) Result {
	if !errors.Is(err, ErrCancelled) {
		s.logger.Error("export failed", "error", err)
	}
	return Result{Err: err, Warnings: s.warningList()}
}

// teardown releases every pipeline component. Safe on partially prepared
// sessions.
func (s *session) teardown() {
	if s.source != nil {
		_ = s.source.Close()
	}
	if s.sink != nil {
		s.sink.close()
	}
	if s.renderer != nil {
		s.renderer.Close()
	}
}
