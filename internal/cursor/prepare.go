package cursor

import "sort"

const (
	// clickPulseDecayMs is how long the highlight/ripple accent of a click
	// takes to decay to zero.
	clickPulseDecayMs = 420

	// movementEpsilon is the normalized distance below which two samples are
	// considered stationary for activity detection.
	movementEpsilon = 0.002
)

// sample is a normalized internal observation: optional fields resolved to
// concrete values.
type sample struct {
	timeMs  int64
	x, y    float64
	click   bool
	visible bool
	kind    Kind
}

// Prepared is a cursor track with its derived indexes, built once per track
// and queried per frame. It must be rebuilt whenever the underlying track
// changes.
type Prepared struct {
	opts       Options
	samples    []sample
	activity   []int64 // sorted times at which cursor activity occurred
	clicks     []int64 // sorted times of sample- and event-level clicks
	durationMs int64
}

// Prepare normalizes and indexes a track. A nil or empty track yields a
// Prepared that resolves to an absent cursor.
func Prepare(track *Track, opts Options) *Prepared {
	p := &Prepared{opts: opts}
	if track == nil || len(track.Samples) == 0 {
		return p
	}

	p.samples = make([]sample, 0, len(track.Samples))
	for _, s := range track.Samples {
		visible := true
		if s.Visible != nil {
			visible = *s.Visible
		}
		kind := s.CursorKind
		if kind != KindArrow && kind != KindIBeam {
			kind = KindArrow
		}
		p.samples = append(p.samples, sample{
			timeMs:  s.TimeMs,
			x:       s.X,
			y:       s.Y,
			click:   s.Click,
			visible: visible,
			kind:    kind,
		})
	}
	sort.SliceStable(p.samples, func(i, j int) bool {
		return p.samples[i].timeMs < p.samples[j].timeMs
	})
	p.durationMs = p.samples[len(p.samples)-1].timeMs

	p.buildActivityIndex(track.Events)
	p.buildClickIndex(track.Events)
	return p
}

// buildActivityIndex derives, in one monotone scan, every time at which the
// cursor did something a viewer would notice: appeared, clicked, flipped
// visibility or glyph kind, or moved beyond the stationary epsilon. Event
// clicks count too. Repeated queries then binary-search this index.
func (p *Prepared) buildActivityIndex(events []Event) {
	p.activity = p.activity[:0]
	prev := p.samples[0]
	p.activity = append(p.activity, prev.timeMs)
	for _, s := range p.samples[1:] {
		active := s.click ||
			s.visible != prev.visible ||
			s.kind != prev.kind ||
			moved(prev.x, prev.y, s.x, s.y)
		if active {
			p.activity = append(p.activity, s.timeMs)
		}
		prev = s
	}
	for _, e := range events {
		if e.Type == EventClick {
			p.activity = append(p.activity, e.TimeMs)
		}
	}
	sort.Slice(p.activity, func(i, j int) bool { return p.activity[i] < p.activity[j] })
}

// buildClickIndex merges sample-level and event-level click markers into one
// sorted pulse timeline.
func (p *Prepared) buildClickIndex(events []Event) {
	p.clicks = p.clicks[:0]
	for _, s := range p.samples {
		if s.click {
			p.clicks = append(p.clicks, s.timeMs)
		}
	}
	for _, e := range events {
		if e.Type == EventClick {
			p.clicks = append(p.clicks, e.TimeMs)
		}
	}
	sort.Slice(p.clicks, func(i, j int) bool { return p.clicks[i] < p.clicks[j] })
}

// Empty reports whether the prepared track has no samples.
func (p *Prepared) Empty() bool {
	return len(p.samples) == 0
}

// DurationMs is the time of the last sample.
func (p *Prepared) DurationMs() int64 {
	return p.durationMs
}

func moved(x0, y0, x1, y1 float64) bool {
	dx, dy := x1-x0, y1-y0
	return dx*dx+dy*dy > movementEpsilon*movementEpsilon
}

// lastAtOrBefore returns the greatest value in sorted times that is <= t,
// and false when none exists.
func lastAtOrBefore(times []int64, t int64) (int64, bool) {
	i := sort.Search(len(times), func(i int) bool { return times[i] > t })
	if i == 0 {
		return 0, false
	}
	return times[i-1], true
}
