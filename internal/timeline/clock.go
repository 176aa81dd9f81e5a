// Package timeline implements the timing arithmetic for renders: the frame
// clock that maps frame indices to microsecond timestamps, trim-region
// merging, effective-to-source time mapping, and the zoom/crop/annotation
// region models consumed by the renderer.
package timeline

import "math"

const (
	// MinFrameRate and MaxFrameRate bound the accepted output frame rates.
	MinFrameRate = 1
	MaxFrameRate = 240

	// DefaultFrameRate is used when the requested rate is not a usable number.
	DefaultFrameRate = 60
)

// NormalizeFrameRate clamps fps to [MinFrameRate, MaxFrameRate], rounding to
// the nearest whole rate. NaN, infinities and non-positive values fall back
// to DefaultFrameRate.
func NormalizeFrameRate(fps float64) float64 {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return DefaultFrameRate
	}
	r := math.Round(fps)
	if r < MinFrameRate {
		r = MinFrameRate
	}
	if r > MaxFrameRate {
		r = MaxFrameRate
	}
	return r
}

// TimestampUs returns the presentation timestamp of frameIndex in integer
// microseconds. Each boundary is rounded independently from the ideal
// frameIndex/fps value, so no fractional remainder accumulates and the drift
// against the ideal timestamp stays within one microsecond for arbitrarily
// long exports.
func TimestampUs(frameIndex int64, fps float64) int64 {
	if frameIndex < 0 {
		frameIndex = 0
	}
	fps = NormalizeFrameRate(fps)
	return int64(math.Round(float64(frameIndex) * 1e6 / fps))
}

// DurationUs returns the display duration of frameIndex in microseconds,
// derived from adjacent timestamps so durations sum exactly to the clock.
// The result is always at least one microsecond.
func DurationUs(frameIndex int64, fps float64) int64 {
	d := TimestampUs(frameIndex+1, fps) - TimestampUs(frameIndex, fps)
	if d < 1 {
		d = 1
	}
	return d
}

// FrameCount returns the number of output frames needed to cover durationMs
// at fps, always at least one frame for a non-empty duration.
func FrameCount(durationMs int64, fps float64) int64 {
	if durationMs <= 0 {
		return 0
	}
	fps = NormalizeFrameRate(fps)
	n := int64(math.Ceil(float64(durationMs) * fps / 1000.0))
	if n < 1 {
		n = 1
	}
	return n
}
