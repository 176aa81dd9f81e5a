// Package audio converts a base gain plus timed edit regions into
// piecewise-constant gain segments and applies them to PCM buffers for the
// muxed audio track.
package audio

import "sort"

// EditRegion overrides the gain multiplier over a span of source time.
// A Gain of zero mutes the span.
type EditRegion struct {
	StartMs int64   `json:"start_ms"`
	EndMs   int64   `json:"end_ms"`
	Gain    float64 `json:"gain"`
}

// GainSegment is one piecewise-constant gain interval. Segments produced by
// BuildGainSegments are contiguous, non-overlapping and boundary-aligned to
// the edit regions that shaped them.
type GainSegment struct {
	StartMs int64
	EndMs   int64
	Gain    float64
}

const (
	minBaseGain = 0.0
	maxBaseGain = 2.0
)

// MultiplierAt resolves the instantaneous edit multiplier at tMs by
// nearest-enclosing-region lookup: among regions covering t, the one starting
// latest wins. Without an enclosing region the multiplier is 1.
func MultiplierAt(tMs int64, edits []EditRegion) float64 {
	gain := 1.0
	bestStart := int64(-1)
	for _, e := range edits {
		if tMs < e.StartMs || tMs >= e.EndMs {
			continue
		}
		if e.StartMs > bestStart {
			bestStart = e.StartMs
			gain = e.Gain
		}
	}
	if gain < 0 {
		gain = 0
	}
	return gain
}

// BuildGainSegments splits [rangeStartMs, rangeEndMs) at every edit-region
// boundary inside it and evaluates the multiplier at each sub-interval's
// midpoint, scaled by the clamped base gain. Aligning segments to region
// boundaries keeps gain constant within each segment, so no discontinuity is
// averaged into an audible click.
func BuildGainSegments(rangeStartMs, rangeEndMs int64, baseGain float64, edits []EditRegion) []GainSegment {
	if rangeEndMs <= rangeStartMs {
		return nil
	}
	if baseGain < minBaseGain {
		baseGain = minBaseGain
	}
	if baseGain > maxBaseGain {
		baseGain = maxBaseGain
	}

	bounds := []int64{rangeStartMs, rangeEndMs}
	for _, e := range edits {
		for _, b := range []int64{e.StartMs, e.EndMs} {
			if b > rangeStartMs && b < rangeEndMs {
				bounds = append(bounds, b)
			}
		}
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })

	segments := make([]GainSegment, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		start, end := bounds[i], bounds[i+1]
		if end <= start {
			continue // duplicate boundary
		}
		mid := start + (end-start)/2
		segments = append(segments, GainSegment{
			StartMs: start,
			EndMs:   end,
			Gain:    MultiplierAt(mid, edits) * baseGain,
		})
	}
	return segments
}
