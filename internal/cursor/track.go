// Package cursor resolves the synthetic cursor's position, visibility and
// accent state at arbitrary times from a sparse recorded sample track. Tracks
// are prepared once (sorting, activity index, click pulses) so repeated
// per-frame queries stay O(log n).
package cursor

// Kind identifies the glyph drawn for the cursor.
type Kind string

const (
	KindArrow Kind = "arrow"
	KindIBeam Kind = "ibeam"
)

// Sample is one recorded pointer observation with normalized coordinates.
// Visible and CursorKind are optional in recordings; absent values default to
// visible arrow.
type Sample struct {
	TimeMs     int64   `json:"time_ms"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Click      bool    `json:"click,omitempty"`
	Visible    *bool   `json:"visible,omitempty"`
	CursorKind Kind    `json:"cursor_kind,omitempty"`
}

// EventType tags a discrete cursor event.
type EventType string

const (
	EventClick     EventType = "click"
	EventSelection EventType = "selection"
)

// Event is a discrete input event recorded alongside the continuous samples.
// Click events feed the click-pulse accent independently of interpolation.
type Event struct {
	TimeMs int64     `json:"time_ms"`
	Type   EventType `json:"type"`
}

// Track is the recorded cursor data for one capture.
type Track struct {
	Samples []Sample `json:"samples"`
	Events  []Event  `json:"events,omitempty"`
}

// Options controls how a track is resolved. Enabled, the auto-hide fields and
// the loop fields are rendering choices only; the occlusion resolver ignores
// them.
type Options struct {
	Enabled           bool    `json:"enabled"`
	SmoothingMs       float64 `json:"smoothing_ms"`
	StaticHideDelayMs int64   `json:"static_hide_delay_ms"`
	StaticHideFadeMs  int64   `json:"static_hide_fade_ms"`
	LoopBlendMs       int64   `json:"loop_blend_ms"`
	OffsetMs          int64   `json:"offset_ms"`
	Loop              bool    `json:"loop"`
}

// DefaultOptions is the styling used when a project does not override cursor
// behavior.
func DefaultOptions() Options {
	return Options{
		Enabled:           true,
		SmoothingMs:       24,
		StaticHideDelayMs: 2500,
		StaticHideFadeMs:  400,
	}
}

// State is the resolved cursor at one instant. Coordinates are normalized to
// the content rectangle. Alpha is the glyph opacity after the static-hide
// fade; the accent fields drive the highlight halo and click ripple.
type State struct {
	X              float64
	Y              float64
	Visible        bool
	Kind           Kind
	Alpha          float64
	HighlightAlpha float64
	RippleAlpha    float64
	RippleRadius   float64
}

// OcclusionState reports where the OS-drawn cursor physically sits in the
// source pixels, independent of any styling toggles.
type OcclusionState struct {
	X       float64
	Y       float64
	Present bool
}
