package timeline

import "sort"

// TrimRegion is a half-open span of source time removed from the effective
// timeline. EndMs must be greater than StartMs to have any effect.
type TrimRegion struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

func (t TrimRegion) lengthMs() int64 {
	return t.EndMs - t.StartMs
}

// Range is a half-open span of source time that survives trimming.
type Range struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// LengthMs returns the duration of the range.
func (r Range) LengthMs() int64 {
	return r.EndMs - r.StartMs
}

// MergeTrims sorts the regions, drops empty or inverted ones, clamps them to
// [0, totalMs] and merges overlapping or adjacent spans. totalMs <= 0 skips
// clamping so callers without a known duration can still merge.
func MergeTrims(trims []TrimRegion, totalMs int64) []TrimRegion {
	cleaned := make([]TrimRegion, 0, len(trims))
	for _, t := range trims {
		if t.StartMs < 0 {
			t.StartMs = 0
		}
		if totalMs > 0 && t.EndMs > totalMs {
			t.EndMs = totalMs
		}
		if t.EndMs <= t.StartMs {
			continue
		}
		cleaned = append(cleaned, t)
	}
	sort.Slice(cleaned, func(i, j int) bool {
		if cleaned[i].StartMs != cleaned[j].StartMs {
			return cleaned[i].StartMs < cleaned[j].StartMs
		}
		return cleaned[i].EndMs < cleaned[j].EndMs
	})

	merged := make([]TrimRegion, 0, len(cleaned))
	for _, t := range cleaned {
		if n := len(merged); n > 0 && t.StartMs <= merged[n-1].EndMs {
			if t.EndMs > merged[n-1].EndMs {
				merged[n-1].EndMs = t.EndMs
			}
			continue
		}
		merged = append(merged, t)
	}
	return merged
}

// EffectiveDurationMs returns the timeline duration after the merged trims
// are removed, never below zero.
func EffectiveDurationMs(totalMs int64, merged []TrimRegion) int64 {
	d := totalMs
	for _, t := range merged {
		d -= t.lengthMs()
	}
	if d < 0 {
		d = 0
	}
	return d
}

// MapEffectiveToSource translates a post-trim timeline time into original
// recording time by skipping over every merged trim region whose start the
// running value has reached. merged must be sorted and non-overlapping, as
// produced by MergeTrims. The mapping is monotonic non-decreasing.
func MapEffectiveToSource(effectiveMs int64, merged []TrimRegion) int64 {
	if effectiveMs < 0 {
		effectiveMs = 0
	}
	sourceMs := effectiveMs
	for _, t := range merged {
		if t.StartMs > sourceMs {
			break
		}
		sourceMs += t.lengthMs()
	}
	return sourceMs
}

// BuildKeptRanges returns the gaps between merged trim regions within
// [0, totalMs]. With no trims the single full-duration range is returned.
// The union of the result and the merged trims reconstructs [0, totalMs]
// exactly, with no gaps or overlaps.
func BuildKeptRanges(totalMs int64, trims []TrimRegion) []Range {
	if totalMs <= 0 {
		return nil
	}
	merged := MergeTrims(trims, totalMs)
	kept := make([]Range, 0, len(merged)+1)
	cursor := int64(0)
	for _, t := range merged {
		if t.StartMs > cursor {
			kept = append(kept, Range{StartMs: cursor, EndMs: t.StartMs})
		}
		cursor = t.EndMs
	}
	if cursor < totalMs {
		kept = append(kept, Range{StartMs: cursor, EndMs: totalMs})
	}
	return kept
}
