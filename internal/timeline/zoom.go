package timeline

import "math"

// ZoomRegion is a pan/zoom instruction in effective time. Depth is a discrete
// level from 1 to 6 mapping to a fixed scale factor; Focus is the normalized
// center the camera pushes toward.
type ZoomRegion struct {
	ID      string  `json:"id"`
	StartMs int64   `json:"start_ms"`
	EndMs   int64   `json:"end_ms"`
	Depth   int     `json:"depth"`
	FocusX  float64 `json:"focus_x"`
	FocusY  float64 `json:"focus_y"`
}

// zoomScales maps Depth 1..6 to the content scale factor.
var zoomScales = [...]float64{1.25, 1.5, 1.75, 2.0, 2.5, 3.0}

// Scale returns the scale factor for the region's depth, clamping depths
// outside 1..6 to the nearest supported level.
func (z ZoomRegion) Scale() float64 {
	d := z.Depth
	if d < 1 {
		d = 1
	}
	if d > len(zoomScales) {
		d = len(zoomScales)
	}
	return zoomScales[d-1]
}

// ZoomBlendWindowMs is the crossfade window applied at region boundaries so
// temporally adjacent regions hand off smoothly instead of hard-cutting.
const ZoomBlendWindowMs = 300

// ZoomState is the blended camera state at one instant: the interpolated
// scale and normalized focus center, the strength of the dominant region in
// [0,1], and whether any region is influencing the frame at all.
type ZoomState struct {
	Scale    float64
	FocusX   float64
	FocusY   float64
	Strength float64
	Active   bool
}

// identityZoom is the camera at rest.
func identityZoom() ZoomState {
	return ZoomState{Scale: 1, FocusX: 0.5, FocusY: 0.5}
}

// regionStrength ramps a region's influence from zero to one over the blend
// window after its start and back down over the window before its end, with
// smoothstep easing. Outside the region the strength is zero.
func regionStrength(t int64, z ZoomRegion) float64 {
	if t < z.StartMs || t >= z.EndMs || z.EndMs <= z.StartMs {
		return 0
	}
	window := float64(ZoomBlendWindowMs)
	if half := float64(z.EndMs-z.StartMs) / 2; half < window {
		window = half
	}
	if window <= 0 {
		return 1
	}
	s := 1.0
	if in := float64(t - z.StartMs); in < window {
		s = in / window
	}
	if out := float64(z.EndMs - t); out < window {
		s = math.Min(s, out/window)
	}
	return s * s * (3 - 2*s)
}

// DominantZoom blends all regions influencing effectiveMs into a single
// camera state. Each region contributes by its eased strength; any remaining
// weight pulls toward the identity camera, so entering and leaving a region
// animates rather than snaps. Regions are expected not to overlap, but
// adjacent regions inside each other's blend windows crossfade by relative
// strength.
func DominantZoom(effectiveMs int64, regions []ZoomRegion) ZoomState {
	var (
		scale, fx, fy float64
		total, peak   float64
	)
	for _, z := range regions {
		w := regionStrength(effectiveMs, z)
		if w <= 0 {
			continue
		}
		scale += w * z.Scale()
		fx += w * clamp01(z.FocusX)
		fy += w * clamp01(z.FocusY)
		total += w
		if w > peak {
			peak = w
		}
	}
	if total <= 0 {
		return identityZoom()
	}
	if rest := 1 - total; rest > 0 {
		id := identityZoom()
		scale += rest * id.Scale
		fx += rest * id.FocusX
		fy += rest * id.FocusY
		total = 1
	}
	return ZoomState{
		Scale:    scale / total,
		FocusX:   fx / total,
		FocusY:   fy / total,
		Strength: math.Min(peak, 1),
		Active:   true,
	}
}

// DominantFocus returns the focus point of the strongest region at
// effectiveMs, used as the synthetic cursor fallback when no cursor track was
// recorded. ok is false when no region is active.
func DominantFocus(effectiveMs int64, regions []ZoomRegion) (x, y float64, ok bool) {
	best := -1.0
	for _, z := range regions {
		if w := regionStrength(effectiveMs, z); w > best && w > 0 {
			best = w
			x, y = clamp01(z.FocusX), clamp01(z.FocusY)
			ok = true
		}
	}
	return x, y, ok
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
