package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/framecast/framecast-agent/internal/cursor"
	"github.com/framecast/framecast-agent/internal/timeline"
)

func testOptions() Options {
	return Options{
		Width:  320,
		Height: 180,
		Style: Style{
			Background: Background{Kind: BackgroundColor, Color: "#102030"},
		},
		Crop: timeline.FullCrop(),
	}
}

func sourceFrame(w, h int, c color.NRGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return img
}

func TestNewRejectsBadOptions(t *testing.T) {
	opts := testOptions()
	opts.Width = 0
	if _, err := New(opts, nil); err == nil {
		t.Fatal("expected error for zero width")
	}

	opts = testOptions()
	opts.Crop = timeline.CropRegion{X: 0.5, Y: 0, Width: 0.8, Height: 1}
	if _, err := New(opts, nil); err == nil {
		t.Fatal("expected error for out-of-bounds crop")
	}

	opts = testOptions()
	opts.Annotations = []timeline.AnnotationRegion{{ID: "a", Kind: timeline.AnnotationText}}
	if _, err := New(opts, nil); err == nil {
		t.Fatal("expected error for annotation without payload")
	}
}

func TestRenderFrameFillsContent(t *testing.T) {
	r, err := New(testOptions(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	src := sourceFrame(640, 360, color.NRGBA{R: 0xff})
	out := r.RenderFrame(src, 0, 0)

	if got := out.Bounds(); got.Dx() != 320 || got.Dy() != 180 {
		t.Fatalf("canvas bounds = %v, want 320x180", got)
	}
	center := out.RGBAAt(160, 90)
	if center.R < 0x80 {
		t.Fatalf("center pixel %v, want red source content", center)
	}
}

func TestPaddingShowsBackground(t *testing.T) {
	opts := testOptions()
	opts.Style.PaddingPct = 0.1
	r, err := New(opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	out := r.RenderFrame(sourceFrame(640, 360, color.NRGBA{R: 0xff}), 0, 0)

	corner := out.RGBAAt(2, 2)
	if corner.R > 0x40 {
		t.Fatalf("corner pixel %v should be background, not content", corner)
	}
	center := out.RGBAAt(160, 90)
	if center.R < 0x80 {
		t.Fatalf("center pixel %v should be content", center)
	}
}

func TestZoomMagnifiesContent(t *testing.T) {
	// Source: left half green, right half blue. Zoom onto the left half.
	src := image.NewRGBA(image.Rect(0, 0, 640, 360))
	for y := 0; y < 360; y++ {
		for x := 0; x < 640; x++ {
			if x < 320 {
				src.SetRGBA(x, y, color.RGBA{G: 0xff, A: 0xff})
			} else {
				src.SetRGBA(x, y, color.RGBA{B: 0xff, A: 0xff})
			}
		}
	}

	opts := testOptions()
	opts.Zooms = []timeline.ZoomRegion{
		{ID: "z", StartMs: 0, EndMs: 10000, Depth: 4, FocusX: 0.25, FocusY: 0.5},
	}
	r, err := New(opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	// Mid-region, where the zoom is at full strength.
	out := r.RenderFrame(src, 5_000_000, 5000)

	right := out.RGBAAt(310, 90)
	if right.B > right.G {
		t.Fatalf("right edge pixel %v: zoom on left half should push blue out of view", right)
	}
}

func TestSubtitleBurnIn(t *testing.T) {
	opts := testOptions()
	opts.Subtitles = []timeline.SubtitleCue{{StartMs: 0, EndMs: 1000, Text: "Hello"}}
	r, err := New(opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	src := sourceFrame(640, 360, color.NRGBA{R: 0xff})
	withCue := countDarkPixels(r.RenderFrame(src, 0, 500))
	withoutCue := countDarkPixels(r.RenderFrame(src, 0, 5000))

	if withCue <= withoutCue {
		t.Fatalf("expected subtitle pill to darken pixels: %d vs %d", withCue, withoutCue)
	}
}

func TestAnnotationTiming(t *testing.T) {
	opts := testOptions()
	opts.Annotations = []timeline.AnnotationRegion{{
		ID: "f", StartMs: 1000, EndMs: 2000,
		X: 0.1, Y: 0.1, Width: 0.3, Height: 0.3, Kind: timeline.AnnotationFigure,
		Figure: &timeline.FigureAnnotation{Shape: timeline.FigureRect, StrokeColor: "#00ff00", StrokeWidth: 3},
	}}
	r, err := New(opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	src := sourceFrame(640, 360, color.NRGBA{R: 0xff})

	before := r.RenderFrame(src, 0, 500)
	if hasGreen(before) {
		t.Fatal("annotation drawn before its start time")
	}
	during := r.RenderFrame(src, 0, 1500)
	if !hasGreen(during) {
		t.Fatal("annotation not drawn inside its active window")
	}
}

func TestCursorGlyphDrawn(t *testing.T) {
	opts := testOptions()
	opts.Cursor = cursor.Prepare(&cursor.Track{
		Samples: []cursor.Sample{{TimeMs: 0, X: 0.5, Y: 0.5}, {TimeMs: 1000, X: 0.5, Y: 0.5}},
	}, cursor.Options{Enabled: true})

	r, err := New(opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	src := sourceFrame(640, 360, color.NRGBA{R: 0xff})
	out := r.RenderFrame(src, 0, 0)

	// The white pointer fill should appear near the center of the canvas.
	found := false
	for y := 85; y < 120 && !found; y++ {
		for x := 155; x < 190 && !found; x++ {
			c := out.RGBAAt(x, y)
			if c.R > 0xe0 && c.G > 0xe0 && c.B > 0xe0 {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("cursor glyph not found near resolved position")
	}
}

func TestOcclusionPatchRuns(t *testing.T) {
	opts := testOptions()
	opts.EraseCursor = true
	opts.Cursor = cursor.Prepare(&cursor.Track{
		Samples: []cursor.Sample{{TimeMs: 0, X: 0.5, Y: 0.5}, {TimeMs: 1000, X: 0.6, Y: 0.6}},
	}, cursor.Options{Enabled: false}) // styling off, occlusion still applies

	r, err := New(opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	// Must not panic and must keep the canvas size.
	out := r.RenderFrame(sourceFrame(640, 360, color.NRGBA{R: 0x80, G: 0x80, B: 0x80}), 500_000, 500)
	if out.Bounds().Dx() != 320 {
		t.Fatalf("unexpected canvas bounds %v", out.Bounds())
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#ffffff", color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		{"#102030", color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}},
		{"#10203080", color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x80}},
		{"#fff", color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
	}
	fallback := color.NRGBA{R: 1, G: 2, B: 3, A: 4}
	for _, tt := range tests {
		if got := parseHexColor(tt.in, fallback); got != tt.want {
			t.Fatalf("parseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "red", "#12", "#zzzzzz"} {
		if got := parseHexColor(bad, fallback); got != fallback {
			t.Fatalf("parseHexColor(%q) = %v, want fallback", bad, got)
		}
	}
}

func countDarkPixels(img *image.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.R < 0xa0 && c.G < 0x50 && c.B < 0x50 {
				n++
			}
		}
	}
	return n
}

func hasGreen(img *image.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.G > 0xc0 && c.R < 0x40 && c.B < 0x40 {
				return true
			}
		}
	}
	return false
}
