package timeline

import (
	"math"
	"testing"
)

func TestNormalizeFrameRate(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "nan", in: math.NaN(), want: 60},
		{name: "zero", in: 0, want: 60},
		{name: "negative", in: -30, want: 60},
		{name: "positive infinity", in: math.Inf(1), want: 60},
		{name: "too high", in: 1000, want: 240},
		{name: "fractional ntsc", in: 59.7, want: 60},
		{name: "fractional film", in: 23.976, want: 24},
		{name: "in range", in: 30, want: 30},
		{name: "just below one", in: 0.4, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeFrameRate(tt.in); got != tt.want {
				t.Fatalf("NormalizeFrameRate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimestampUsStrictlyIncreasing(t *testing.T) {
	for _, fps := range []float64{1, 24, 30, 59.94, 60, 120, 240} {
		prev := int64(-1)
		for i := int64(0); i < 2000; i++ {
			ts := TimestampUs(i, fps)
			if ts <= prev {
				t.Fatalf("fps=%v frame=%d: timestamp %d not greater than previous %d", fps, i, ts, prev)
			}
			prev = ts
		}
	}
}

func TestTimestampUsDriftBounded(t *testing.T) {
	for _, fps := range []float64{1, 24, 30, 60, 144, 240} {
		norm := NormalizeFrameRate(fps)
		for i := int64(0); i <= 12000; i += 7 {
			ideal := float64(i) * 1e6 / norm
			got := TimestampUs(i, fps)
			if drift := math.Abs(float64(got) - ideal); drift > 1 {
				t.Fatalf("fps=%v frame=%d: drift %v exceeds 1us (got %d, ideal %v)", fps, i, drift, got, ideal)
			}
		}
	}
}

func TestDurationUsAlwaysPositive(t *testing.T) {
	for _, fps := range []float64{1, 60, 240} {
		for i := int64(0); i < 1000; i++ {
			if d := DurationUs(i, fps); d < 1 {
				t.Fatalf("fps=%v frame=%d: duration %d < 1", fps, i, d)
			}
		}
	}
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		name       string
		durationMs int64
		fps        float64
		want       int64
	}{
		{name: "two seconds at 60", durationMs: 2000, fps: 60, want: 120},
		{name: "trimmed to 1.5s at 60", durationMs: 1500, fps: 60, want: 90},
		{name: "rounds up partial frame", durationMs: 1001, fps: 30, want: 31},
		{name: "empty", durationMs: 0, fps: 60, want: 0},
		{name: "tiny duration still renders", durationMs: 3, fps: 30, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameCount(tt.durationMs, tt.fps); got != tt.want {
				t.Fatalf("FrameCount(%d, %v) = %d, want %d", tt.durationMs, tt.fps, got, tt.want)
			}
		})
	}
}
