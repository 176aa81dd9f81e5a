package timeline

import "fmt"

// CropRegion selects a normalized sub-rectangle of the source content.
type CropRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FullCrop is the crop covering the entire source frame.
func FullCrop() CropRegion {
	return CropRegion{X: 0, Y: 0, Width: 1, Height: 1}
}

// Validate rejects crops that leave the unit square or have no area.
func (c CropRegion) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("crop has no area: %+v", c)
	}
	if c.X < 0 || c.Y < 0 || c.X+c.Width > 1 || c.Y+c.Height > 1 {
		return fmt.Errorf("crop outside unit square: %+v", c)
	}
	return nil
}

// IsFull reports whether the crop keeps the whole frame.
func (c CropRegion) IsFull() bool {
	return c.X == 0 && c.Y == 0 && c.Width == 1 && c.Height == 1
}

// AnnotationKind tags which content field of an AnnotationRegion is
// authoritative.
type AnnotationKind string

const (
	AnnotationText   AnnotationKind = "text"
	AnnotationImage  AnnotationKind = "image"
	AnnotationFigure AnnotationKind = "figure"
)

// FigureShape enumerates the drawable figure annotations.
type FigureShape string

const (
	FigureRect    FigureShape = "rect"
	FigureEllipse FigureShape = "ellipse"
	FigureLine    FigureShape = "line"
)

// TextAnnotation is the payload for Kind == AnnotationText.
type TextAnnotation struct {
	Text       string  `json:"text"`
	Color      string  `json:"color"`
	Background string  `json:"background,omitempty"`
	SizePt     float64 `json:"size_pt"`
}

// ImageAnnotation is the payload for Kind == AnnotationImage.
type ImageAnnotation struct {
	Path    string  `json:"path"`
	Opacity float64 `json:"opacity"`
}

// FigureAnnotation is the payload for Kind == AnnotationFigure.
type FigureAnnotation struct {
	Shape       FigureShape `json:"shape"`
	StrokeColor string      `json:"stroke_color"`
	FillColor   string      `json:"fill_color,omitempty"`
	StrokeWidth float64     `json:"stroke_width"`
}

// AnnotationRegion is a timed overlay in effective time. Position and size
// are normalized to the output canvas; Z orders overlapping annotations.
// Exactly one of Text, Image or Figure is meaningful, selected by Kind.
type AnnotationRegion struct {
	ID      string         `json:"id"`
	StartMs int64          `json:"start_ms"`
	EndMs   int64          `json:"end_ms"`
	X       float64        `json:"x"`
	Y       float64        `json:"y"`
	Width   float64        `json:"width"`
	Height  float64        `json:"height"`
	Z       int            `json:"z"`
	Kind    AnnotationKind `json:"kind"`

	Text   *TextAnnotation   `json:"text,omitempty"`
	Image  *ImageAnnotation  `json:"image,omitempty"`
	Figure *FigureAnnotation `json:"figure,omitempty"`
}

// ActiveAt reports whether the annotation overlays effectiveMs.
func (a AnnotationRegion) ActiveAt(effectiveMs int64) bool {
	return effectiveMs >= a.StartMs && effectiveMs < a.EndMs
}

// Validate checks that the payload matching Kind is present.
func (a AnnotationRegion) Validate() error {
	switch a.Kind {
	case AnnotationText:
		if a.Text == nil {
			return fmt.Errorf("annotation %s: kind text without text payload", a.ID)
		}
	case AnnotationImage:
		if a.Image == nil {
			return fmt.Errorf("annotation %s: kind image without image payload", a.ID)
		}
	case AnnotationFigure:
		if a.Figure == nil {
			return fmt.Errorf("annotation %s: kind figure without figure payload", a.ID)
		}
	default:
		return fmt.Errorf("annotation %s: unknown kind %q", a.ID, a.Kind)
	}
	return nil
}

// SubtitleCue is one burn-in caption in effective time.
type SubtitleCue struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// ActiveCue returns the cue covering effectiveMs, preferring the latest
// starting cue when cues overlap. ok is false when no cue is active.
func ActiveCue(effectiveMs int64, cues []SubtitleCue) (SubtitleCue, bool) {
	var (
		best  SubtitleCue
		found bool
	)
	for _, c := range cues {
		if effectiveMs < c.StartMs || effectiveMs >= c.EndMs {
			continue
		}
		if !found || c.StartMs >= best.StartMs {
			best = c
			found = true
		}
	}
	return best, found
}
