// Package encode produces compressed video chunks from rendered frames. The
// production encoder drives an ffmpeg subprocess; a Controller bounds how many
// frames may be in flight between submission and chunk arrival.
package encode

import (
	"context"
	"errors"
	"image"
)

// ErrUnsupportedEncoder is returned when neither a hardware encoder nor the
// software fallback can be configured on this machine.
var ErrUnsupportedEncoder = errors.New("encode: no usable h264 encoder")

// Settings configures an encode session.
type Settings struct {
	Width     int
	Height    int
	FrameRate float64
	// BitrateKbps of 0 lets the encoder pick a quality-based default.
	BitrateKbps int
	// OnChunk, when set, receives chunks as they are parsed from the encoder
	// output. When nil, chunks accumulate and are returned by Flush.
	OnChunk func(Chunk)
}

// Frame is one rendered frame submitted for encoding.
type Frame struct {
	Image       *image.RGBA
	TimestampUs int64
	DurationUs  int64
}

// Chunk is one encoded access unit in AVCC framing (4-byte length prefixes).
type Chunk struct {
	Data        []byte
	TimestampUs int64
	DurationUs  int64
	Keyframe    bool
	// Config is attached to the first chunk once parameter sets are known.
	Config *DecoderConfig
}

// DecoderConfig carries the information a container needs to describe the
// stream: the avcC configuration record and the RFC 6381 codec string.
type DecoderConfig struct {
	Record []byte
	Codec  string
	Width  int
	Height int
}

// VideoEncoder turns frames into chunks. Configure must be called once before
// Encode; Flush ends the stream and returns any chunks not yet delivered
// through OnChunk together with the final decoder configuration.
type VideoEncoder interface {
	Configure(ctx context.Context, s Settings) error
	Encode(f Frame) error
	Flush(ctx context.Context) ([]Chunk, *DecoderConfig, error)
	Close() error
}

// KeyframeInterval is the GOP length for a given frame rate, roughly one
// keyframe every 2.5 seconds.
func KeyframeInterval(fps float64) int {
	n := int(fps*2.5 + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}
