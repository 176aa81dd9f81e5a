package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/framecast/framecast-agent/internal/timeline"
)

// drawAnnotations paints every annotation active at effectiveMs, in z-order.
// Annotations are tagged variants; the switch is exhaustive over the known
// kinds and an unknown kind was already rejected by New.
func (r *Renderer) drawAnnotations(effectiveMs int64) {
	for _, a := range r.opts.Annotations {
		if !a.ActiveAt(effectiveMs) {
			continue
		}
		rect := r.normRect(a.X, a.Y, a.Width, a.Height)
		switch a.Kind {
		case timeline.AnnotationText:
			r.drawTextAnnotation(rect, a.Text)
		case timeline.AnnotationImage:
			r.drawImageAnnotation(rect, a.Image)
		case timeline.AnnotationFigure:
			r.drawFigureAnnotation(rect, a.Figure)
		}
	}
}

// normRect converts a normalized canvas rectangle to pixels.
func (r *Renderer) normRect(x, y, w, h float64) image.Rectangle {
	return image.Rect(
		int(x*float64(r.opts.Width)),
		int(y*float64(r.opts.Height)),
		int((x+w)*float64(r.opts.Width)),
		int((y+h)*float64(r.opts.Height)),
	)
}

func (r *Renderer) drawTextAnnotation(rect image.Rectangle, t *timeline.TextAnnotation) {
	if t.Background != "" {
		bg := parseHexColor(t.Background, color.NRGBA{A: 0})
		fillRect(r.canvas, rect, bg, float64(bg.A)/255)
	}
	fg := parseHexColor(t.Color, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})

	metrics := r.fonts.regular.Metrics()
	lineH := metrics.Height.Ceil()
	pad := lineH / 3
	baseline := rect.Min.Y + pad + metrics.Ascent.Ceil()

	for _, line := range wrapText(t.Text, r.fonts.regular, rect.Dx()-2*pad) {
		if baseline > rect.Max.Y {
			break
		}
		drawString(r.canvas, r.fonts.regular, line, rect.Min.X+pad, baseline, fg)
		baseline += lineH
	}
}

func (r *Renderer) drawImageAnnotation(rect image.Rectangle, ia *timeline.ImageAnnotation) {
	img, err := r.loadImage(ia.Path)
	if err != nil {
		r.logger.Warn("annotation image unavailable", "path", ia.Path, "error", err)
		return
	}
	opacity := ia.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	if opacity >= 1 {
		draw.BiLinear.Scale(r.canvas, rect, img, img.Bounds(), draw.Over, nil)
		return
	}
	scaled := image.NewRGBA(rect)
	draw.BiLinear.Scale(scaled, rect, img, img.Bounds(), draw.Src, nil)
	mask := image.NewUniform(color.Alpha{A: uint8(opacity * 255)})
	draw.DrawMask(r.canvas, rect, scaled, rect.Min, mask, image.Point{}, draw.Over)
}

func (r *Renderer) drawFigureAnnotation(rect image.Rectangle, f *timeline.FigureAnnotation) {
	stroke := parseHexColor(f.StrokeColor, color.NRGBA{R: 0xff, G: 0x45, B: 0x3a, A: 0xff})
	width := f.StrokeWidth
	if width <= 0 {
		width = math.Max(2, float64(r.opts.Width)/640)
	}

	switch f.Shape {
	case timeline.FigureEllipse:
		cx := float64(rect.Min.X+rect.Max.X) / 2
		cy := float64(rect.Min.Y+rect.Max.Y) / 2
		rx := float64(rect.Dx()) / 2
		ry := float64(rect.Dy()) / 2
		if f.FillColor != "" {
			fill := parseHexColor(f.FillColor, color.NRGBA{A: 0})
			fillEllipse(r.canvas, cx, cy, rx, ry, fill, float64(fill.A)/255)
		}
		strokeEllipse(r.canvas, cx, cy, rx, ry, width, stroke)
	case timeline.FigureLine:
		strokeLine(r.canvas,
			float64(rect.Min.X), float64(rect.Min.Y),
			float64(rect.Max.X), float64(rect.Max.Y), width, stroke)
	default: // FigureRect
		if f.FillColor != "" {
			fill := parseHexColor(f.FillColor, color.NRGBA{A: 0})
			fillRect(r.canvas, rect, fill, float64(fill.A)/255)
		}
		strokeRect(r.canvas, rect, int(width+0.5), stroke)
	}
}

func strokeRect(dst *image.RGBA, rect image.Rectangle, width int, c color.NRGBA) {
	if width < 1 {
		width = 1
	}
	fillRect(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width), c, 1)
	fillRect(dst, image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y), c, 1)
	fillRect(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y), c, 1)
	fillRect(dst, image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y), c, 1)
}

func fillEllipse(dst *image.RGBA, cx, cy, rx, ry float64, c color.NRGBA, alpha float64) {
	if rx <= 0 || ry <= 0 {
		return
	}
	for y := int(cy - ry); y <= int(cy+ry); y++ {
		for x := int(cx - rx); x <= int(cx+rx); x++ {
			dx := (float64(x) + 0.5 - cx) / rx
			dy := (float64(y) + 0.5 - cy) / ry
			if dx*dx+dy*dy <= 1 {
				blendPixel(dst, x, y, c, alpha)
			}
		}
	}
}

func strokeEllipse(dst *image.RGBA, cx, cy, rx, ry, width float64, c color.NRGBA) {
	steps := int(2 * math.Pi * math.Max(rx, ry))
	if steps < 16 {
		steps = 16
	}
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		fillCircle(dst, cx+rx*math.Cos(a), cy+ry*math.Sin(a), width/2, c, 1)
	}
}

func strokeLine(dst *image.RGBA, x0, y0, x1, y1, width float64, c color.NRGBA) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	steps := int(length) + 1
	for i := 0; i <= steps; i++ {
		f := float64(i) / float64(steps)
		fillCircle(dst, x0+dx*f, y0+dy*f, width/2, c, 1)
	}
}

// drawString renders a single line of text at the baseline position.
func drawString(dst *image.RGBA, face font.Face, s string, x, y int, c color.NRGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// measureString returns the advance width of s in pixels.
func measureString(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
