package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// errPlaybackLagging signals that playback sampling gave up; the remainder of
// the export falls to seek sampling.
var errPlaybackLagging = errors.New("exporter: playback sampling lagging")

// frameProducer fills output frames from s.nextFrame onward.
type frameProducer interface {
	produce(ctx context.Context, s *session) error
}

// seekProducer positions the source for every output frame. Slow but exact,
// and the strategy of record when frame-accurate cursor alignment matters.
type seekProducer struct{}

func (seekProducer) produce(ctx context.Context, s *session) error {
	for s.nextFrame < s.totalFrames {
		if err := s.checkCancelled(ctx); err != nil {
			return err
		}
		_, srcMs := s.frameTarget(s.nextFrame)
		if err := s.source.Seek(ctx, srcMs); err != nil {
			return fmt.Errorf("seek to %dms: %w", srcMs, err)
		}
		frame, err := s.source.ReadFrame(ctx)
		switch {
		case err == nil:
			s.lastFrame = frame.Image
		case errors.Is(err, io.EOF):
			// Ran off the end of the source; repeat the last decoded frame so
			// the output still reaches its full duration.
			if s.lastFrame == nil {
				return fmt.Errorf("source ended before first frame at %dms", srcMs)
			}
		default:
			return fmt.Errorf("read frame at %dms: %w", srcMs, err)
		}
		if err := s.renderEncode(ctx, s.lastFrame, s.nextFrame); err != nil {
			return err
		}
		s.nextFrame++
	}
	return nil
}

// playback tuning.
const (
	// playbackDriftFloorMs is the minimum drift that forces a hard reseek.
	playbackDriftFloorMs = 450
	// playbackStallLimit is how many reads without media-time progress are
	// tolerated before reseeking.
	playbackStallLimit = 3
	// playbackMaxHardSeeks is how many recovery seeks playback sampling may
	// spend before conceding to seek sampling.
	playbackMaxHardSeeks = 3
)

// playbackProducer reads the source sequentially and emits an output frame
// whenever the decoder's media time reaches the frame's target, within one
// frame duration. Drift beyond max(450ms, 4 frame durations), or repeated
// stalls, trigger a hard reseek; too many of those abort the strategy.
type playbackProducer struct {
	cur         *mediaFrame
	lastMediaMs int64
	stalls      int
	hardSeeks   int
}

type mediaFrame struct {
	timeMs int64
}

func (p *playbackProducer) produce(ctx context.Context, s *session) error {
	driftLimitMs := int64(playbackDriftFloorMs)
	if four := 4 * s.frameDurMs; four > driftLimitMs {
		driftLimitMs = four
	}
	tolMs := s.sourceFrameDurMs
	p.lastMediaMs = -1

	for s.nextFrame < s.totalFrames {
		if err := s.checkCancelled(ctx); err != nil {
			return err
		}
		_, srcMs := s.frameTarget(s.nextFrame)

		if s.lastFrame == nil || p.cur == nil {
			if err := p.readNext(ctx, s, srcMs); err != nil {
				return err
			}
			continue
		}

		drift := srcMs - p.cur.timeMs
		if drift > driftLimitMs || -drift > driftLimitMs {
			// A target far ahead is a timeline skip over a trim, not a
			// decoder falling behind; it does not count against the strategy.
			if err := p.reseek(ctx, s, srcMs, drift < 0); err != nil {
				return err
			}
			continue
		}

		if p.cur.timeMs+tolMs >= srcMs {
			if err := s.renderEncode(ctx, s.lastFrame, s.nextFrame); err != nil {
				return err
			}
			s.nextFrame++
			continue
		}

		// Behind the target by less than the drift limit: keep playing.
		p.cur = nil
	}
	return nil
}

func (p *playbackProducer) readNext(ctx context.Context, s *session, srcMs int64) error {
	frame, err := s.source.ReadFrame(ctx)
	if errors.Is(err, io.EOF) {
		return errPlaybackLagging
	}
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}

	if frame.TimeMs <= p.lastMediaMs {
		p.stalls++
		if p.stalls >= playbackStallLimit {
			p.stalls = 0
			return p.reseek(ctx, s, srcMs, true)
		}
	} else {
		p.stalls = 0
		p.lastMediaMs = frame.TimeMs
	}
	s.lastFrame = frame.Image
	p.cur = &mediaFrame{timeMs: frame.TimeMs}
	return nil
}

func (p *playbackProducer) reseek(ctx context.Context, s *session, srcMs int64, penalize bool) error {
	if penalize {
		p.hardSeeks++
		if p.hardSeeks > playbackMaxHardSeeks {
			return errPlaybackLagging
		}
	}
	if err := s.source.Seek(ctx, srcMs); err != nil {
		return fmt.Errorf("recovery seek to %dms: %w", srcMs, err)
	}
	p.cur = nil
	p.lastMediaMs = -1
	return nil
}
