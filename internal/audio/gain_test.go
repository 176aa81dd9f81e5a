package audio

import (
	"testing"

	"github.com/framecast/framecast-agent/internal/timeline"
)

func TestBuildGainSegmentsCoversRangeExactly(t *testing.T) {
	edits := []EditRegion{
		{StartMs: 200, EndMs: 400, Gain: 0},   // mute
		{StartMs: 600, EndMs: 800, Gain: 0.5}, // duck
	}

	segs := BuildGainSegments(0, 1000, 1.0, edits)
	if len(segs) == 0 {
		t.Fatal("expected segments")
	}
	if segs[0].StartMs != 0 || segs[len(segs)-1].EndMs != 1000 {
		t.Fatalf("segments do not cover range: %+v", segs)
	}
	for i := 0; i < len(segs)-1; i++ {
		if segs[i].EndMs != segs[i+1].StartMs {
			t.Fatalf("segments not contiguous at %d: %+v", i, segs)
		}
	}
}

func TestBuildGainSegmentsBoundaryAligned(t *testing.T) {
	edits := []EditRegion{{StartMs: 200, EndMs: 400, Gain: 0}}

	segs := BuildGainSegments(0, 1000, 1.0, edits)

	want := []GainSegment{
		{StartMs: 0, EndMs: 200, Gain: 1},
		{StartMs: 200, EndMs: 400, Gain: 0},
		{StartMs: 400, EndMs: 1000, Gain: 1},
	}
	if len(segs) != len(want) {
		t.Fatalf("segments = %+v, want %+v", segs, want)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
}

func TestBuildGainSegmentsClampsBaseGain(t *testing.T) {
	segs := BuildGainSegments(0, 100, 5.0, nil)
	if len(segs) != 1 || segs[0].Gain != 2.0 {
		t.Fatalf("base gain not clamped to 2.0: %+v", segs)
	}
	segs = BuildGainSegments(0, 100, -1.0, nil)
	if len(segs) != 1 || segs[0].Gain != 0 {
		t.Fatalf("negative base gain not clamped to 0: %+v", segs)
	}
}

func TestBuildGainSegmentsPartialOverlap(t *testing.T) {
	// Edit region straddles the range start; only the inside boundary splits.
	edits := []EditRegion{{StartMs: 0, EndMs: 300, Gain: 0}}

	segs := BuildGainSegments(100, 500, 1.0, edits)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %+v", segs)
	}
	if segs[0].Gain != 0 || segs[1].Gain != 1 {
		t.Fatalf("unexpected gains: %+v", segs)
	}
}

func TestMultiplierAtNearestEnclosing(t *testing.T) {
	edits := []EditRegion{
		{StartMs: 0, EndMs: 1000, Gain: 0.5},
		{StartMs: 200, EndMs: 400, Gain: 0}, // inner region wins
	}

	if g := MultiplierAt(300, edits); g != 0 {
		t.Fatalf("MultiplierAt(300) = %v, want 0 (inner region)", g)
	}
	if g := MultiplierAt(500, edits); g != 0.5 {
		t.Fatalf("MultiplierAt(500) = %v, want 0.5", g)
	}
	if g := MultiplierAt(2000, edits); g != 1 {
		t.Fatalf("MultiplierAt(2000) = %v, want default 1", g)
	}
}

func TestSliceKeptAppliesMuteAndTrims(t *testing.T) {
	// 1 second of full-scale mono audio at 1kHz sample rate for easy math.
	src := &PCM{SampleRate: 1000, Channels: 1, Samples: make([]int16, 1000)}
	for i := range src.Samples {
		src.Samples[i] = 10000
	}

	kept := []timeline.Range{{StartMs: 0, EndMs: 500}, {StartMs: 800, EndMs: 1000}}
	edits := []EditRegion{{StartMs: 100, EndMs: 200, Gain: 0}}

	out := SliceKept(src, kept, 1.0, edits)

	if len(out.Samples) != 700 {
		t.Fatalf("sliced length = %d samples, want 700", len(out.Samples))
	}
	if out.Samples[50] != 10000 {
		t.Fatalf("sample before mute = %d, want 10000", out.Samples[50])
	}
	if out.Samples[150] != 0 {
		t.Fatalf("sample inside mute = %d, want 0", out.Samples[150])
	}
	if out.Samples[650] != 10000 {
		t.Fatalf("sample from second kept range = %d, want 10000", out.Samples[650])
	}
}

func TestApplyGainSaturates(t *testing.T) {
	samples := []int16{30000, -30000}
	applyGain(samples, 2.0)
	if samples[0] != 32767 || samples[1] != -32768 {
		t.Fatalf("gain did not saturate: %v", samples)
	}
}
