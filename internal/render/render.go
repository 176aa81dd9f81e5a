// Package render composites output frames: background, cropped and zoomed
// source content, shadow and corner effects, annotation overlays, subtitle
// burn-in, cursor occlusion patching and the synthetic cursor glyph. The
// layer order is fixed; reordering it changes what ends up on top.
package render

import (
	"fmt"
	"image"
	"log/slog"
	"sort"

	"golang.org/x/image/draw"

	"github.com/framecast/framecast-agent/internal/cursor"
	"github.com/framecast/framecast-agent/internal/timeline"
)

// BackgroundKind selects how the area behind the content is filled.
type BackgroundKind string

const (
	BackgroundColor     BackgroundKind = "color"
	BackgroundGradient  BackgroundKind = "gradient"
	BackgroundWallpaper BackgroundKind = "wallpaper"
)

// Background describes the fill behind the video content. BlurRadius is
// expressed in preview pixels; the renderer scales it by the ratio of output
// width to preview width so the blur reads the same at any export resolution.
type Background struct {
	Kind         BackgroundKind `json:"kind"`
	Color        string         `json:"color,omitempty"`
	GradientFrom string         `json:"gradient_from,omitempty"`
	GradientTo   string         `json:"gradient_to,omitempty"`
	Wallpaper    string         `json:"wallpaper,omitempty"`
	BlurRadius   float64        `json:"blur_radius,omitempty"`
}

// Style is the visual treatment applied around the content.
type Style struct {
	Background      Background `json:"background"`
	PaddingPct      float64    `json:"padding_pct"`
	CornerRadiusPct float64    `json:"corner_radius_pct"`
	ShadowOpacity   float64    `json:"shadow_opacity"`
	ShadowSizePct   float64    `json:"shadow_size_pct"`
	PreviewWidth    int        `json:"preview_width"`
	MotionBlur      bool       `json:"motion_blur"`
}

// Options configures a Renderer for one export.
type Options struct {
	Width       int
	Height      int
	Style       Style
	Crop        timeline.CropRegion
	Zooms       []timeline.ZoomRegion
	Annotations []timeline.AnnotationRegion
	Subtitles   []timeline.SubtitleCue
	Cursor      *cursor.Prepared
	CursorScale float64
	EraseCursor bool
}

// Renderer owns the canvas and per-export caches (background, corner mask,
// shadow, decoded annotation images). It is single-owner for the lifetime of
// one export and is not safe for concurrent use.
type Renderer struct {
	opts    Options
	logger  *slog.Logger
	canvas  *image.RGBA
	content image.Rectangle

	background *image.RGBA
	cornerMask *image.Alpha
	shadow     *image.RGBA

	fonts      *fontSet
	imageCache map[string]image.Image

	prevZoom     timeline.ZoomState
	prevZoomOK   bool
	scratch      *image.RGBA
	prevContents *image.RGBA
}

// New validates the options and builds the per-export caches.
func New(opts Options, logger *slog.Logger) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("render: invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	if err := opts.Crop.Validate(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	for _, a := range opts.Annotations {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
	}
	if opts.CursorScale <= 0 {
		opts.CursorScale = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Renderer{
		opts:       opts,
		logger:     logger,
		canvas:     image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
		imageCache: make(map[string]image.Image),
	}
	r.content = r.contentRect()

	fonts, err := newFontSet(opts.Width)
	if err != nil {
		return nil, fmt.Errorf("render: load fonts: %w", err)
	}
	r.fonts = fonts

	if err := r.buildBackground(); err != nil {
		return nil, err
	}
	r.buildCornerMask()
	r.buildShadow()

	// Sort annotation overlays by z-order once.
	sort.SliceStable(r.opts.Annotations, func(i, j int) bool {
		return r.opts.Annotations[i].Z < r.opts.Annotations[j].Z
	})
	return r, nil
}

// Canvas exposes the renderer's surface; the returned image is reused
// between frames and must be copied or encoded before the next RenderFrame.
func (r *Renderer) Canvas() *image.RGBA {
	return r.canvas
}

// Close releases font resources.
func (r *Renderer) Close() error {
	if r.fonts != nil {
		return r.fonts.Close()
	}
	return nil
}

// contentRect insets the canvas by the configured padding.
func (r *Renderer) contentRect() image.Rectangle {
	pad := 0
	if p := r.opts.Style.PaddingPct; p > 0 {
		min := r.opts.Width
		if r.opts.Height < min {
			min = r.opts.Height
		}
		pad = int(float64(min) * p)
	}
	return image.Rect(pad, pad, r.opts.Width-pad, r.opts.Height-pad)
}

// RenderFrame composites one output frame. src is the decoded source frame;
// sourceTimestampUs positions the cursor track (recorded in source time) and
// effectiveMs positions zoom, annotation and subtitle regions (authored in
// post-trim time).
func (r *Renderer) RenderFrame(src *image.RGBA, sourceTimestampUs int64, effectiveMs int64) *image.RGBA {
	draw.Copy(r.canvas, image.Point{}, r.background, r.background.Bounds(), draw.Src, nil)

	zoom := timeline.DominantZoom(effectiveMs, r.opts.Zooms)
	xform := r.drawShadowAndContent(src, zoom)

	sourceMs := sourceTimestampUs / 1000
	r.drawAnnotations(effectiveMs)
	r.drawSubtitle(effectiveMs)
	r.eraseSourceCursor(sourceMs, xform)
	r.drawCursor(sourceMs, effectiveMs, xform)

	r.scratch, r.prevContents = r.prevContents, r.scratch
	r.prevZoom, r.prevZoomOK = zoom, true
	return r.canvas
}

// drawShadowAndContent paints the drop shadow, then the cropped, zoomed and
// panned source content clipped to the rounded-corner mask. It returns the
// source-to-canvas transform used by the cursor layers.
func (r *Renderer) drawShadowAndContent(src *image.RGBA, zoom timeline.ZoomState) frameTransform {
	if r.shadow != nil {
		draw.Draw(r.canvas, r.canvas.Bounds(), r.shadow, image.Point{}, draw.Over)
	}

	view := r.sourceView(src.Bounds(), zoom)
	if r.scratch == nil {
		r.scratch = image.NewRGBA(r.content)
		r.prevContents = image.NewRGBA(r.content)
	}
	// Compose the content into a scratch layer so motion blur and the corner
	// mask can be applied before it reaches the canvas.
	draw.BiLinear.Scale(r.scratch, r.content, src, view, draw.Src, nil)
	r.applyMotionBlur(zoom)

	if r.cornerMask != nil {
		draw.DrawMask(r.canvas, r.content, r.scratch, r.content.Min, r.cornerMask, r.content.Min, draw.Over)
	} else {
		draw.Draw(r.canvas, r.content, r.scratch, r.content.Min, draw.Over)
	}

	return frameTransform{
		view:    view,
		content: r.content,
		srcW:    src.Bounds().Dx(),
		srcH:    src.Bounds().Dy(),
	}
}

// sourceView computes which source rectangle fills the content area: the
// crop region shrunk by the blended zoom scale and centered on the blended
// focus, clamped so the view never leaves the crop.
func (r *Renderer) sourceView(bounds image.Rectangle, zoom timeline.ZoomState) image.Rectangle {
	srcW, srcH := float64(bounds.Dx()), float64(bounds.Dy())
	crop := r.opts.Crop

	cropX := crop.X * srcW
	cropY := crop.Y * srcH
	cropW := crop.Width * srcW
	cropH := crop.Height * srcH

	scale := zoom.Scale
	if scale < 1 {
		scale = 1
	}
	viewW := cropW / scale
	viewH := cropH / scale

	cx := cropX + zoom.FocusX*cropW
	cy := cropY + zoom.FocusY*cropH

	x0 := clampF(cx-viewW/2, cropX, cropX+cropW-viewW)
	y0 := clampF(cy-viewH/2, cropY, cropY+cropH-viewH)

	return image.Rect(int(x0), int(y0), int(x0+viewW), int(y0+viewH))
}

// applyMotionBlur softens fast pans by blending a fraction of the previous
// frame's content back into the scratch layer, proportional to focus
// velocity.
func (r *Renderer) applyMotionBlur(zoom timeline.ZoomState) {
	if !r.opts.Style.MotionBlur || !r.prevZoomOK {
		return
	}
	dx := zoom.FocusX - r.prevZoom.FocusX
	dy := zoom.FocusY - r.prevZoom.FocusY
	ds := zoom.Scale - r.prevZoom.Scale
	speed := dx*dx + dy*dy + ds*ds*0.25
	if speed < 1e-6 {
		return
	}
	weight := speed * 4000
	if weight > 0.35 {
		weight = 0.35
	}
	blendRegion(r.scratch, r.prevContents, r.content, weight)
}

func clampF(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
