package cursor

import (
	"math"
	"sort"

	"github.com/framecast/framecast-agent/internal/timeline"
)

// Resolve returns the styled cursor state at timeMs. The time offset, loop
// wrap, smoothing window, loop blend, click pulses and static-hide fade are
// all applied here; callers draw exactly what comes back.
func (p *Prepared) Resolve(timeMs int64) State {
	if p.Empty() || !p.opts.Enabled {
		return State{Kind: KindArrow}
	}

	t := p.trackTime(timeMs, p.opts.Loop)
	st := p.resolveBase(t)

	if p.opts.LoopBlendMs > 0 && p.durationMs > 0 {
		p.applyLoopBlend(t, &st)
	}

	pulse := p.clickPulse(t)
	st.HighlightAlpha = 0.25 + 0.55*pulse
	if pulse > 0 {
		age := 1 - pulse
		st.RippleRadius = 0.012 + 0.05*age
		st.RippleAlpha = 0.6 * pulse
	}

	st.Alpha = p.staticHideAlpha(t)
	st.HighlightAlpha *= st.Alpha
	st.RippleAlpha *= st.Alpha
	if st.Alpha <= 0.01 {
		st.Visible = false
		st.Alpha = 0
	}
	return st
}

// ResolveOcclusion reports where the burned-in OS cursor sits in the source
// pixels at timeMs. Enabled, auto-hide and loop settings are presentation
// choices and do not change whether a cursor physically exists in the frame,
// so only the time offset and smoothing alignment apply.
func (p *Prepared) ResolveOcclusion(timeMs int64) OcclusionState {
	if p.Empty() {
		return OcclusionState{}
	}
	t := p.trackTime(timeMs, false)
	st := p.resolveBase(t)
	return OcclusionState{X: st.X, Y: st.Y, Present: st.Visible}
}

// FallbackState synthesizes a cursor when no track was recorded: the dominant
// zoom focus if one is active, a centered default otherwise. The cursor is
// reported not visible in this mode.
func FallbackState(effectiveMs int64, zooms []timeline.ZoomRegion) State {
	x, y, ok := timeline.DominantFocus(effectiveMs, zooms)
	if !ok {
		x, y = 0.5, 0.5
	}
	return State{X: x, Y: y, Visible: false, Kind: KindArrow}
}

// trackTime maps a query time onto the track, applying the configured offset
// and, when looping, wrapping past the last sample.
func (p *Prepared) trackTime(timeMs int64, loop bool) int64 {
	t := timeMs + p.opts.OffsetMs
	if loop && p.durationMs > 0 && t > p.durationMs {
		t %= p.durationMs
	}
	return t
}

// resolveBase computes position, visibility and kind at track time t, either
// by linear interpolation between the bracketing samples or by a
// Gaussian-weighted window when smoothing is configured. Visibility is
// OR-reduced across the contributing samples.
func (p *Prepared) resolveBase(t int64) State {
	if p.opts.SmoothingMs > 0 {
		return p.resolveSmoothed(t)
	}
	return p.resolveLinear(t)
}

func (p *Prepared) resolveLinear(t int64) State {
	i := sort.Search(len(p.samples), func(i int) bool { return p.samples[i].timeMs > t })
	switch {
	case i == 0:
		return stateFrom(p.samples[0])
	case i == len(p.samples):
		return stateFrom(p.samples[len(p.samples)-1])
	}
	s0, s1 := p.samples[i-1], p.samples[i]
	span := float64(s1.timeMs - s0.timeMs)
	f := 0.0
	if span > 0 {
		f = float64(t-s0.timeMs) / span
	}
	st := State{
		X:       s0.x + (s1.x-s0.x)*f,
		Y:       s0.y + (s1.y-s0.y)*f,
		Visible: s0.visible || s1.visible,
		Kind:    s0.kind,
	}
	if f > 0.5 {
		st.Kind = s1.kind
	}
	return st
}

func (p *Prepared) resolveSmoothed(t int64) State {
	sigma := p.opts.SmoothingMs
	window := int64(math.Ceil(3 * sigma))
	lo := sort.Search(len(p.samples), func(i int) bool { return p.samples[i].timeMs >= t-window })
	hi := sort.Search(len(p.samples), func(i int) bool { return p.samples[i].timeMs > t+window })
	if lo >= hi {
		return p.resolveLinear(t)
	}

	var (
		sumW, sumX, sumY float64
		visible          bool
		kind             = KindArrow
		kindW            float64
	)
	for _, s := range p.samples[lo:hi] {
		dt := float64(s.timeMs - t)
		w := math.Exp(-(dt * dt) / (2 * sigma * sigma))
		if w < 1e-6 {
			continue
		}
		sumW += w
		sumX += s.x * w
		sumY += s.y * w
		visible = visible || s.visible
		if w > kindW {
			kindW = w
			kind = s.kind
		}
	}
	if sumW <= 0 {
		return p.resolveLinear(t)
	}
	return State{X: sumX / sumW, Y: sumY / sumW, Visible: visible, Kind: kind}
}

// applyLoopBlend cross-fades the tail of the track back toward its first
// sample so a repeating timeline does not show a discontinuous jump.
func (p *Prepared) applyLoopBlend(t int64, st *State) {
	blendStart := p.durationMs - p.opts.LoopBlendMs
	if t <= blendStart || t > p.durationMs {
		return
	}
	b := float64(t-blendStart) / float64(p.opts.LoopBlendMs)
	b = b * b * (3 - 2*b)
	first := p.samples[0]
	st.X += (first.x - st.X) * b
	st.Y += (first.y - st.Y) * b
}

// clickPulse returns the decaying accent intensity of the most recent click
// at or before t, in [0,1].
func (p *Prepared) clickPulse(t int64) float64 {
	click, ok := lastAtOrBefore(p.clicks, t)
	if !ok {
		return 0
	}
	age := t - click
	if age >= clickPulseDecayMs {
		return 0
	}
	return 1 - float64(age)/clickPulseDecayMs
}

// staticHideAlpha fades the glyph out after StaticHideDelayMs without
// activity, easing over StaticHideFadeMs.
func (p *Prepared) staticHideAlpha(t int64) float64 {
	if p.opts.StaticHideDelayMs <= 0 {
		return 1
	}
	last, ok := lastAtOrBefore(p.activity, t)
	if !ok {
		// Before any recorded activity the glyph has not appeared yet.
		return 1
	}
	idle := t - last
	if idle <= p.opts.StaticHideDelayMs {
		return 1
	}
	if p.opts.StaticHideFadeMs <= 0 {
		return 0
	}
	f := float64(idle-p.opts.StaticHideDelayMs) / float64(p.opts.StaticHideFadeMs)
	if f >= 1 {
		return 0
	}
	// Cubic ease-out on the remaining opacity.
	inv := 1 - f
	return inv * inv * inv
}

func stateFrom(s sample) State {
	return State{X: s.x, Y: s.y, Visible: s.visible, Kind: s.kind}
}
