package mux

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"

	xdraw "golang.org/x/image/draw"
)

// SizePreset selects the output width of a GIF export. The source aspect
// ratio is preserved.
type SizePreset string

const (
	SizeOriginal SizePreset = ""
	SizeSmall    SizePreset = "small"
	SizeMedium   SizePreset = "medium"
	SizeLarge    SizePreset = "large"
)

var presetWidths = map[SizePreset]int{
	SizeSmall:  480,
	SizeMedium: 640,
	SizeLarge:  960,
}

// GIFOptions configures a GIF export.
type GIFOptions struct {
	FrameRate float64
	Loop      bool
	SizePreset SizePreset
}

// GIFMuxer quantizes frames as they arrive and assembles an animated GIF on
// Finalize.
type GIFMuxer struct {
	opts GIFOptions
	out  gif.GIF

	// delayErr carries the fractional centisecond left over by each frame so
	// long animations do not drift.
	delayErr  float64
	scaled    *image.RGBA
	finalized bool
}

// NewGIFMuxer validates options and returns an empty muxer.
func NewGIFMuxer(opts GIFOptions) (*GIFMuxer, error) {
	if opts.FrameRate <= 0 {
		return nil, fmt.Errorf("mux: gif frame rate %.2f", opts.FrameRate)
	}
	if _, ok := presetWidths[opts.SizePreset]; !ok && opts.SizePreset != SizeOriginal {
		return nil, fmt.Errorf("mux: unknown gif size preset %q", opts.SizePreset)
	}
	m := &GIFMuxer{opts: opts}
	if !opts.Loop {
		m.out.LoopCount = -1
	}
	return m, nil
}

// AddFrame quantizes one rendered frame onto the Plan9 palette with error
// diffusion and appends it.
func (m *GIFMuxer) AddFrame(frame *image.RGBA) error {
	if m.finalized {
		return fmt.Errorf("mux: add frame after finalize")
	}
	src := m.resize(frame)

	p := image.NewPaletted(src.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(p, src.Bounds(), src, src.Bounds().Min)

	m.delayErr += 100 / m.opts.FrameRate
	delay := int(m.delayErr)
	m.delayErr -= float64(delay)

	m.out.Image = append(m.out.Image, p)
	m.out.Delay = append(m.out.Delay, delay)
	m.out.Disposal = append(m.out.Disposal, gif.DisposalNone)
	return nil
}

func (m *GIFMuxer) resize(frame *image.RGBA) *image.RGBA {
	targetW, ok := presetWidths[m.opts.SizePreset]
	if !ok || frame.Bounds().Dx() <= targetW {
		return frame
	}
	targetH := frame.Bounds().Dy() * targetW / frame.Bounds().Dx()
	if m.scaled == nil || m.scaled.Bounds().Dx() != targetW || m.scaled.Bounds().Dy() != targetH {
		m.scaled = image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	}
	xdraw.ApproxBiLinear.Scale(m.scaled, m.scaled.Bounds(), frame, frame.Bounds(), xdraw.Src, nil)
	return m.scaled
}

// Finalize encodes the animation. It may be called once.
func (m *GIFMuxer) Finalize() ([]byte, error) {
	if m.finalized {
		return nil, fmt.Errorf("mux: already finalized")
	}
	if len(m.out.Image) == 0 {
		return nil, fmt.Errorf("mux: no frames added")
	}
	m.finalized = true

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, &m.out); err != nil {
		return nil, fmt.Errorf("mux: encode gif: %w", err)
	}
	return buf.Bytes(), nil
}
