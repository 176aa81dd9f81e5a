package audio

import (
	"github.com/framecast/framecast-agent/internal/timeline"
)

// PCM is interleaved 16-bit signed audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// DurationMs returns the buffer duration.
func (p *PCM) DurationMs() int64 {
	if p == nil || p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	frames := int64(len(p.Samples)) / int64(p.Channels)
	return frames * 1000 / int64(p.SampleRate)
}

// frameIndex converts a source-time millisecond offset into an interleaved
// sample index, clamped to the buffer.
func (p *PCM) frameIndex(ms int64) int {
	frames := ms * int64(p.SampleRate) / 1000
	idx := int(frames) * p.Channels
	if idx < 0 {
		return 0
	}
	if idx > len(p.Samples) {
		return len(p.Samples)
	}
	return idx
}

// SliceKept cuts the decoded source audio down to the kept ranges, applying
// the boundary-aligned gain segments of each range. The result is the
// contiguous audio of the effective timeline, sample-accurate against the
// trim set.
func SliceKept(src *PCM, kept []timeline.Range, baseGain float64, edits []EditRegion) *PCM {
	out := &PCM{SampleRate: src.SampleRate, Channels: src.Channels}
	for _, r := range kept {
		lo := src.frameIndex(r.StartMs)
		hi := src.frameIndex(r.EndMs)
		if hi <= lo {
			continue
		}
		segs := BuildGainSegments(r.StartMs, r.EndMs, baseGain, edits)
		chunk := make([]int16, hi-lo)
		copy(chunk, src.Samples[lo:hi])
		for _, seg := range segs {
			sLo := src.frameIndex(seg.StartMs) - lo
			sHi := src.frameIndex(seg.EndMs) - lo
			if sLo < 0 {
				sLo = 0
			}
			if sHi > len(chunk) {
				sHi = len(chunk)
			}
			applyGain(chunk[sLo:sHi], seg.Gain)
		}
		out.Samples = append(out.Samples, chunk...)
	}
	return out
}

// applyGain scales samples in place with saturation.
func applyGain(samples []int16, gain float64) {
	if gain == 1 {
		return
	}
	for i, s := range samples {
		v := float64(s) * gain
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		samples[i] = int16(v)
	}
}
