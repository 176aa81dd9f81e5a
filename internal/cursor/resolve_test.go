package cursor

import (
	"math"
	"testing"

	"github.com/framecast/framecast-agent/internal/timeline"
)

func enabledOptions() Options {
	return Options{Enabled: true}
}

func TestResolveLinearInterpolation(t *testing.T) {
	track := &Track{Samples: []Sample{
		{TimeMs: 0, X: 0.1, Y: 0.1},
		{TimeMs: 100, X: 0.2, Y: 0.2},
		{TimeMs: 200, X: 0.4, Y: 0.4},
	}}
	p := Prepare(track, enabledOptions())

	st := p.Resolve(100)
	if math.Abs(st.X-0.2) > 1e-9 || math.Abs(st.Y-0.2) > 1e-9 {
		t.Fatalf("Resolve(100) = (%v,%v), want (0.2,0.2)", st.X, st.Y)
	}
	if !st.Visible {
		t.Fatal("expected visible cursor at sample time")
	}

	mid := p.Resolve(150)
	if math.Abs(mid.X-0.3) > 1e-9 {
		t.Fatalf("Resolve(150).X = %v, want 0.3", mid.X)
	}
}

func TestResolveClampsOutsideTrack(t *testing.T) {
	track := &Track{Samples: []Sample{
		{TimeMs: 100, X: 0.3, Y: 0.3},
		{TimeMs: 200, X: 0.7, Y: 0.7},
	}}
	p := Prepare(track, enabledOptions())

	if st := p.Resolve(0); st.X != 0.3 || st.Y != 0.3 {
		t.Fatalf("before-track resolve = (%v,%v), want first sample", st.X, st.Y)
	}
	if st := p.Resolve(900); st.X != 0.7 || st.Y != 0.7 {
		t.Fatalf("after-track resolve = (%v,%v), want last sample", st.X, st.Y)
	}
}

func TestResolveUnsortedSamples(t *testing.T) {
	track := &Track{Samples: []Sample{
		{TimeMs: 200, X: 0.4, Y: 0.4},
		{TimeMs: 0, X: 0.1, Y: 0.1},
		{TimeMs: 100, X: 0.2, Y: 0.2},
	}}
	p := Prepare(track, enabledOptions())

	if st := p.Resolve(100); math.Abs(st.X-0.2) > 1e-9 {
		t.Fatalf("unsorted track not normalized: Resolve(100).X = %v", st.X)
	}
}

func TestStaticHide(t *testing.T) {
	opts := Options{
		Enabled:           true,
		StaticHideDelayMs: 100,
		StaticHideFadeMs:  120,
	}
	track := &Track{Samples: []Sample{
		{TimeMs: 0, X: 0.5, Y: 0.5},
		{TimeMs: 120, X: 0.5, Y: 0.5},
	}}
	p := Prepare(track, opts)

	if st := p.Resolve(280); st.Visible {
		t.Fatalf("expected hidden cursor after fade, got %+v", st)
	} else if st.HighlightAlpha > 0.01 {
		t.Fatalf("expected near-zero highlight, got %v", st.HighlightAlpha)
	}

	for _, tm := range []int64{0, 50, 100} {
		if st := p.Resolve(tm); !st.Visible {
			t.Fatalf("cursor hidden at %dms, inside delay window", tm)
		}
	}
}

func TestStaticHideResetByMovement(t *testing.T) {
	opts := Options{
		Enabled:           true,
		StaticHideDelayMs: 100,
		StaticHideFadeMs:  120,
	}
	track := &Track{Samples: []Sample{
		{TimeMs: 0, X: 0.2, Y: 0.2},
		{TimeMs: 150, X: 0.6, Y: 0.6}, // real movement resets the idle clock
	}}
	p := Prepare(track, opts)

	if st := p.Resolve(220); !st.Visible {
		t.Fatal("movement at 150ms should keep the cursor visible at 220ms")
	}
}

func TestClickPulseDecay(t *testing.T) {
	track := &Track{
		Samples: []Sample{
			{TimeMs: 0, X: 0.5, Y: 0.5},
			{TimeMs: 1000, X: 0.5, Y: 0.5},
		},
		Events: []Event{{TimeMs: 500, Type: EventClick}},
	}
	p := Prepare(track, enabledOptions())

	at := p.Resolve(510)
	later := p.Resolve(800)
	done := p.Resolve(500 + clickPulseDecayMs + 1)

	if at.RippleAlpha <= later.RippleAlpha {
		t.Fatalf("ripple should decay: %v then %v", at.RippleAlpha, later.RippleAlpha)
	}
	if at.HighlightAlpha <= later.HighlightAlpha {
		t.Fatalf("highlight should decay: %v then %v", at.HighlightAlpha, later.HighlightAlpha)
	}
	if done.RippleAlpha != 0 {
		t.Fatalf("ripple should be gone after decay, got %v", done.RippleAlpha)
	}
}

func TestLoopBlendPullsTowardStart(t *testing.T) {
	opts := Options{Enabled: true, LoopBlendMs: 200}
	track := &Track{Samples: []Sample{
		{TimeMs: 0, X: 0.1, Y: 0.1},
		{TimeMs: 1000, X: 0.9, Y: 0.9},
	}}
	p := Prepare(track, opts)

	end := p.Resolve(1000)
	if math.Abs(end.X-0.1) > 1e-6 {
		t.Fatalf("at track end the position should equal the start: got %v", end.X)
	}
	mid := p.Resolve(900)
	if mid.X >= 0.82 || mid.X <= 0.1 {
		t.Fatalf("blend midpoint should sit between tail and start, got %v", mid.X)
	}
}

func TestGaussianSmoothingAveragesNoise(t *testing.T) {
	opts := Options{Enabled: true, SmoothingMs: 50}
	track := &Track{Samples: []Sample{
		{TimeMs: 0, X: 0.5, Y: 0.5},
		{TimeMs: 20, X: 0.52, Y: 0.48},
		{TimeMs: 40, X: 0.48, Y: 0.52},
		{TimeMs: 60, X: 0.5, Y: 0.5},
	}}
	p := Prepare(track, opts)

	st := p.Resolve(30)
	if math.Abs(st.X-0.5) > 0.01 || math.Abs(st.Y-0.5) > 0.01 {
		t.Fatalf("smoothed position = (%v,%v), want ~(0.5,0.5)", st.X, st.Y)
	}
}

func TestVisibilityORReduced(t *testing.T) {
	hidden := false
	track := &Track{Samples: []Sample{
		{TimeMs: 0, X: 0.5, Y: 0.5, Visible: &hidden},
		{TimeMs: 100, X: 0.5, Y: 0.5},
	}}
	p := Prepare(track, enabledOptions())

	if st := p.Resolve(50); !st.Visible {
		t.Fatal("visibility should OR across bracketing samples")
	}
}

func TestDisabledCursorNotVisible(t *testing.T) {
	track := &Track{Samples: []Sample{{TimeMs: 0, X: 0.5, Y: 0.5}}}
	p := Prepare(track, Options{Enabled: false})

	if st := p.Resolve(0); st.Visible {
		t.Fatal("disabled cursor must not be visible")
	}
	// Occlusion still sees the physical cursor.
	if occ := p.ResolveOcclusion(0); !occ.Present {
		t.Fatal("occlusion resolver must ignore the enabled toggle")
	}
}

func TestOcclusionIgnoresStaticHide(t *testing.T) {
	opts := Options{
		Enabled:           true,
		StaticHideDelayMs: 100,
		StaticHideFadeMs:  120,
	}
	track := &Track{Samples: []Sample{
		{TimeMs: 0, X: 0.4, Y: 0.4},
		{TimeMs: 120, X: 0.4, Y: 0.4},
	}}
	p := Prepare(track, opts)

	if st := p.Resolve(400); st.Visible {
		t.Fatal("styled cursor should be auto-hidden")
	}
	occ := p.ResolveOcclusion(400)
	if !occ.Present {
		t.Fatal("physical cursor is still present while auto-hidden")
	}
	if occ.X != 0.4 || occ.Y != 0.4 {
		t.Fatalf("occlusion position = (%v,%v), want (0.4,0.4)", occ.X, occ.Y)
	}
}

func TestFallbackState(t *testing.T) {
	zooms := []timeline.ZoomRegion{{ID: "z", StartMs: 0, EndMs: 1000, Depth: 2, FocusX: 0.3, FocusY: 0.7}}

	st := FallbackState(500, zooms)
	if st.Visible {
		t.Fatal("fallback cursor must be marked not visible")
	}
	if st.X != 0.3 || st.Y != 0.7 {
		t.Fatalf("fallback position = (%v,%v), want zoom focus", st.X, st.Y)
	}

	centered := FallbackState(5000, zooms)
	if centered.X != 0.5 || centered.Y != 0.5 {
		t.Fatalf("fallback without active zoom = (%v,%v), want center", centered.X, centered.Y)
	}
}

func TestEmptyTrack(t *testing.T) {
	p := Prepare(nil, enabledOptions())
	if !p.Empty() {
		t.Fatal("nil track should prepare empty")
	}
	if st := p.Resolve(100); st.Visible {
		t.Fatal("empty track resolves to absent cursor")
	}
}
