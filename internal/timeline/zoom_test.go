package timeline

import (
	"math"
	"testing"
)

func TestDominantZoomIdentityWhenNoRegions(t *testing.T) {
	st := DominantZoom(1000, nil)
	if st.Active {
		t.Fatalf("expected inactive state, got %+v", st)
	}
	if st.Scale != 1 || st.FocusX != 0.5 || st.FocusY != 0.5 {
		t.Fatalf("expected identity camera, got %+v", st)
	}
}

func TestDominantZoomFullStrengthMidRegion(t *testing.T) {
	regions := []ZoomRegion{{ID: "z1", StartMs: 1000, EndMs: 5000, Depth: 4, FocusX: 0.25, FocusY: 0.75}}

	st := DominantZoom(3000, regions)
	if !st.Active {
		t.Fatal("expected active state mid-region")
	}
	if math.Abs(st.Scale-2.0) > 1e-9 {
		t.Fatalf("depth 4 scale = %v, want 2.0", st.Scale)
	}
	if st.Strength < 0.999 {
		t.Fatalf("mid-region strength = %v, want ~1", st.Strength)
	}
	if math.Abs(st.FocusX-0.25) > 1e-9 || math.Abs(st.FocusY-0.75) > 1e-9 {
		t.Fatalf("focus = (%v,%v), want (0.25,0.75)", st.FocusX, st.FocusY)
	}
}

func TestDominantZoomRampsAtBoundary(t *testing.T) {
	regions := []ZoomRegion{{ID: "z1", StartMs: 1000, EndMs: 5000, Depth: 6, FocusX: 0.1, FocusY: 0.1}}

	// Just inside the region the camera should still be near identity.
	early := DominantZoom(1010, regions)
	if early.Scale > 1.2 {
		t.Fatalf("scale %v snapped near region start, want gradual ramp", early.Scale)
	}

	// Strictly increasing scale through the blend window.
	prev := 0.0
	for _, off := range []int64{0, 50, 100, 150, 200, 250, 299} {
		st := DominantZoom(1000+off, regions)
		if st.Scale < prev {
			t.Fatalf("scale decreased during ramp-in at +%dms: %v < %v", off, st.Scale, prev)
		}
		prev = st.Scale
	}
}

func TestDominantZoomCrossfadeBetweenAdjacentRegions(t *testing.T) {
	regions := []ZoomRegion{
		{ID: "a", StartMs: 0, EndMs: 2000, Depth: 2, FocusX: 0.2, FocusY: 0.2},
		{ID: "b", StartMs: 2000, EndMs: 4000, Depth: 2, FocusX: 0.8, FocusY: 0.8},
	}

	// At the seam both regions are weak; focus must sit between the two
	// targets rather than jumping to either.
	st := DominantZoom(2000, regions)
	if st.FocusX <= 0.2 || st.FocusX >= 0.8 {
		t.Fatalf("focus at seam = %v, want strictly between 0.2 and 0.8", st.FocusX)
	}
}

func TestDominantFocus(t *testing.T) {
	regions := []ZoomRegion{{ID: "z1", StartMs: 0, EndMs: 1000, Depth: 3, FocusX: 0.3, FocusY: 0.6}}

	x, y, ok := DominantFocus(500, regions)
	if !ok || x != 0.3 || y != 0.6 {
		t.Fatalf("DominantFocus = (%v,%v,%v), want (0.3,0.6,true)", x, y, ok)
	}
	if _, _, ok := DominantFocus(5000, regions); ok {
		t.Fatal("expected no dominant focus outside regions")
	}
}

func TestZoomScaleClampsDepth(t *testing.T) {
	if s := (ZoomRegion{Depth: 0}).Scale(); s != zoomScales[0] {
		t.Fatalf("depth 0 scale = %v, want %v", s, zoomScales[0])
	}
	if s := (ZoomRegion{Depth: 99}).Scale(); s != zoomScales[len(zoomScales)-1] {
		t.Fatalf("depth 99 scale = %v, want %v", s, zoomScales[len(zoomScales)-1])
	}
}
