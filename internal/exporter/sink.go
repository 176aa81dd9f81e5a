package exporter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/framecast/framecast-agent/internal/audio"
	"github.com/framecast/framecast-agent/internal/encode"
	"github.com/framecast/framecast-agent/internal/media"
	"github.com/framecast/framecast-agent/internal/mux"
	"github.com/framecast/framecast-agent/internal/project"
)

// frameSink abstracts the container half of the pipeline so MP4 and GIF
// exports share one orchestration path.
type frameSink interface {
	begin(ctx context.Context, s *session) error
	waitCapacity(ctx context.Context) error
	submit(img *image.RGBA, timestampUs, durationUs int64) error
	finalize(ctx context.Context, s *session) ([]byte, error)
	close()
}

func (s *session) newSink() (frameSink, error) {
	switch s.proj.Output.Format {
	case project.FormatGIF:
		m, err := mux.NewGIFMuxer(mux.GIFOptions{
			FrameRate:  s.fps,
			Loop:       s.proj.Output.GIFLoop,
			SizePreset: s.proj.Output.GIFSize,
		})
		if err != nil {
			return nil, err
		}
		return &gifSink{muxer: m}, nil
	default:
		muxer := mux.NewMP4Muxer()
		queue := &muxQueue{muxer: muxer}
		enc := s.exp.newEncoder()
		return &mp4Sink{
			enc:   enc,
			ctrl:  encode.NewController(enc, queue.push),
			queue: queue,
			muxer: muxer,
		}, nil
	}
}

// muxQueue is the ordered hand-off between the encoder's chunk stream and the
// container. The first error latches; later chunks and errors are dropped.
type muxQueue struct {
	muxer *mux.MP4Muxer

	mu      sync.Mutex
	pending []encode.Chunk
	err     error
}

func (q *muxQueue) push(c encode.Chunk) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return
	}
	q.pending = append(q.pending, c)
}

// drain writes queued chunks through in arrival order.
func (q *muxQueue) drain() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) > 0 {
		c := q.pending[0]
		q.pending = q.pending[1:]
		if err := q.muxer.WriteVideoChunk(c); err != nil {
			if q.err == nil {
				q.err = err
			}
			q.pending = nil
			break
		}
	}
	return q.err
}

func (q *muxQueue) latched() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// ensureConfig retro-attaches a decoder configuration that the encoder only
// produced at flush time, after its first chunk was already queued.
func (q *muxQueue) ensureConfig(cfg *encode.DecoderConfig) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cfg != nil && len(q.pending) > 0 && q.pending[0].Config == nil {
		q.pending[0].Config = cfg
	}
}

// mp4Sink drives the H.264 encoder behind the backpressure controller and
// muxes into an MP4.
type mp4Sink struct {
	enc   encode.VideoEncoder
	ctrl  *encode.Controller
	queue *muxQueue
	muxer *mux.MP4Muxer
}

func (k *mp4Sink) begin(ctx context.Context, s *session) error {
	settings := encode.Settings{
		Width:       s.outW,
		Height:      s.outH,
		FrameRate:   s.fps,
		BitrateKbps: bitrateKbps(s.proj.Output, s.outW, s.outH, s.fps),
	}
	if err := k.ctrl.Configure(ctx, settings); err != nil {
		return fmt.Errorf("configure encoder: %w", err)
	}
	return nil
}

func (k *mp4Sink) waitCapacity(ctx context.Context) error {
	if err := k.queue.latched(); err != nil {
		return fmt.Errorf("mux: %w", err)
	}
	return k.ctrl.WaitCapacity(ctx)
}

func (k *mp4Sink) submit(img *image.RGBA, timestampUs, durationUs int64) error {
	return k.ctrl.Encode(encode.Frame{
		Image:       img,
		TimestampUs: timestampUs,
		DurationUs:  durationUs,
	})
}

func (k *mp4Sink) finalize(ctx context.Context, s *session) ([]byte, error) {
	if err := s.runStep(ctx, "flush-encoder", func(stepCtx context.Context) error {
		cfg, err := k.ctrl.Flush(stepCtx)
		if err != nil {
			return err
		}
		k.queue.ensureConfig(cfg)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.runStep(ctx, "drain-mux-queue", func(context.Context) error {
		return k.queue.drain()
	}); err != nil {
		return nil, err
	}

	if s.proj.Output.IncludeAudio {
		if err := s.runStep(ctx, "mux-audio", func(stepCtx context.Context) error {
			return k.muxAudio(stepCtx, s)
		}); err != nil {
			return nil, err
		}
	}

	var blob []byte
	if err := s.runStep(ctx, "finalize-container", func(context.Context) error {
		var err error
		blob, err = k.muxer.Finalize()
		return err
	}); err != nil {
		return nil, err
	}
	return blob, nil
}

// muxAudio extracts, cuts and gain-automates the source audio. A source with
// no audio track downgrades to a warning; everything else is fatal.
func (k *mp4Sink) muxAudio(ctx context.Context, s *session) error {
	if !s.probe.HasAudio {
		s.warn(WarningAudioUnavailable)
		return nil
	}
	rate, channels := s.probe.SampleRate, s.probe.Channels
	if rate <= 0 {
		rate = 48000
	}
	if channels <= 0 {
		channels = 2
	}
	pcm, err := s.exp.decoder.ExtractPCM(ctx, s.proj.SourcePath, rate, channels)
	if err != nil {
		if errors.Is(err, media.ErrNoAudioTrack) {
			s.warn(WarningAudioUnavailable)
			return nil
		}
		return err
	}
	cut := audio.SliceKept(pcm, s.keptRanges, s.proj.Output.AudioGain, s.proj.Timeline.AudioEdits)
	return k.muxer.WriteAudio(cut.Samples, cut.SampleRate, cut.Channels)
}

func (k *mp4Sink) close() {
	_ = k.ctrl.Close()
}

// bitrateKbps resolves an explicit bitrate or derives one from the quality
// tier in bits per pixel per frame.
func bitrateKbps(out project.Output, w, h int, fps float64) int {
	if out.BitrateKbps > 0 {
		return out.BitrateKbps
	}
	bpp := 0.12
	switch out.Quality {
	case project.QualityMedium:
		bpp = 0.07
	case project.QualitySource:
		bpp = 0.2
	}
	return int(float64(w) * float64(h) * fps * bpp / 1000)
}

// gifSink quantizes frames straight into the GIF muxer. There is no encoder
// stage, so capacity waits are a no-op.
type gifSink struct {
	muxer *mux.GIFMuxer
}

func (k *gifSink) begin(context.Context, *session) error { return nil }

func (k *gifSink) waitCapacity(context.Context) error { return nil }

func (k *gifSink) submit(img *image.RGBA, _, _ int64) error {
	return k.muxer.AddFrame(img)
}

func (k *gifSink) finalize(ctx context.Context, s *session) ([]byte, error) {
	var blob []byte
	if err := s.runStep(ctx, "finalize-container", func(context.Context) error {
		var err error
		blob, err = k.muxer.Finalize()
		return err
	}); err != nil {
		return nil, err
	}
	return blob, nil
}

func (k *gifSink) close() {}
