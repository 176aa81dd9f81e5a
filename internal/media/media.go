// Package media wraps ffmpeg/ffprobe subprocesses behind narrow interfaces:
// metadata probing, a streaming rawvideo frame source with seek support, and
// PCM audio extraction.
package media

import (
	"context"
	"errors"
	"image"

	"github.com/framecast/framecast-agent/internal/audio"
)

// ErrNoAudioTrack is returned when audio extraction is requested for a
// source without an audio stream.
var ErrNoAudioTrack = errors.New("media: source has no audio track")

// ProbeResult is the metadata of a source file.
type ProbeResult struct {
	DurationMs int64
	Width      int
	Height     int
	FrameRate  float64
	VideoCodec string
	HasAudio   bool
	SampleRate int
	Channels   int
}

// Frame is one decoded video frame with its media time.
type Frame struct {
	Image  *image.RGBA
	TimeMs int64
}

// FrameSource yields decoded frames. ReadFrame returns io.EOF when the
// stream ends; Seek repositions the source so the next ReadFrame lands at or
// just after targetMs.
type FrameSource interface {
	ReadFrame(ctx context.Context) (*Frame, error)
	Seek(ctx context.Context, targetMs int64) error
	Close() error
}

// Prober inspects source metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// Decoder opens sources for frame reading and audio extraction.
type Decoder interface {
	Prober
	OpenSource(ctx context.Context, path string, probe *ProbeResult) (FrameSource, error)
	ExtractPCM(ctx context.Context, path string, sampleRate, channels int) (*audio.PCM, error)
}
