package render

import (
	"image"
	"image/color"
	"math"

	"github.com/framecast/framecast-agent/internal/cursor"
)

// eraseSourceCursor patches over the OS cursor burned into the captured
// pixels. The occlusion resolver decides where the cursor physically is; the
// patch samples donor pixels from a ring around it and paints them across the
// cursor disk, so the synthetic glyph is not drawn on top of the real one.
// When no donor offset lands on usable content, the area is softly darkened
// instead of copied.
func (r *Renderer) eraseSourceCursor(sourceMs int64, xform frameTransform) {
	if !r.opts.EraseCursor || r.opts.Cursor == nil || r.opts.Cursor.Empty() {
		return
	}
	occ := r.opts.Cursor.ResolveOcclusion(sourceMs)
	if !occ.Present {
		return
	}
	cx, cy, inside := xform.mapNorm(occ.X, occ.Y)
	if !inside {
		return
	}

	radius := 11.0 * xform.scaleFactor() * r.opts.CursorScale
	if radius < 4 {
		radius = 4
	}
	donor, ok := r.findDonorOffset(cx, cy, radius)
	if !ok {
		// No clean donor region; darken locally so the artifact at least
		// stops drawing the eye.
		fillCircle(r.canvas, cx, cy, radius, color.NRGBA{A: 0xff}, 0.18)
		return
	}

	for y := int(cy - radius); y <= int(cy+radius); y++ {
		for x := int(cx - radius); x <= int(cx+radius); x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			d := math.Sqrt(dx*dx + dy*dy)
			if d > radius {
				continue
			}
			sx, sy := x+donor.X, y+donor.Y
			if !image.Pt(x, y).In(xform.content) || !image.Pt(sx, sy).In(xform.content) {
				continue
			}
			// Soft edge so the patch does not leave a hard seam.
			alpha := clampF((radius-d)/2, 0, 1)
			c := r.canvas.RGBAAt(sx, sy)
			blendPixel(r.canvas, x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}, alpha)
		}
	}
}

// findDonorOffset walks a ring around the cursor and returns the first offset
// whose donor disk stays inside the content rectangle.
func (r *Renderer) findDonorOffset(cx, cy, radius float64) (image.Point, bool) {
	ringRadius := radius * 1.8
	const probes = 16
	for i := 0; i < probes; i++ {
		a := 2 * math.Pi * float64(i) / probes
		off := image.Pt(int(ringRadius*math.Cos(a)), int(ringRadius*math.Sin(a)))
		probe := image.Pt(int(cx)+off.X, int(cy)+off.Y)
		grown := image.Rectangle{
			Min: probe.Add(image.Pt(-int(radius), -int(radius))),
			Max: probe.Add(image.Pt(int(radius)+1, int(radius)+1)),
		}
		if grown.In(r.content) {
			return off, true
		}
	}
	return image.Point{}, false
}

// drawCursor renders the synthetic glyph with its highlight halo and click
// ripple, hotspot-aligned at the resolved position.
func (r *Renderer) drawCursor(sourceMs, effectiveMs int64, xform frameTransform) {
	var st cursor.State
	if r.opts.Cursor == nil || r.opts.Cursor.Empty() {
		st = cursor.FallbackState(effectiveMs, r.opts.Zooms)
	} else {
		st = r.opts.Cursor.Resolve(sourceMs)
	}
	if !st.Visible || st.Alpha <= 0 {
		return
	}

	cx, cy, inside := xform.mapNorm(st.X, st.Y)
	if !inside {
		return
	}
	scale := xform.scaleFactor() * r.opts.CursorScale
	contentW := float64(xform.content.Dx())

	if st.RippleAlpha > 0 {
		strokeRing(r.canvas, cx, cy, st.RippleRadius*contentW, 2.5*scale,
			color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, st.RippleAlpha)
	}
	if st.HighlightAlpha > 0 {
		fillCircle(r.canvas, cx, cy, 14*scale,
			color.NRGBA{R: 0xff, G: 0xe2, B: 0x6b, A: 0xff}, st.HighlightAlpha*0.4)
	}

	switch st.Kind {
	case cursor.KindIBeam:
		drawIBeam(r.canvas, cx, cy, scale, st.Alpha)
	default:
		drawArrow(r.canvas, cx, cy, scale, st.Alpha)
	}
}

// drawArrow paints the classic pointer with its tip at (cx, cy), drop shadow
// first, then a white fill with a dark outline pass.
func drawArrow(dst *image.RGBA, cx, cy, scale, alpha float64) {
	pts := arrowOutline(cx, cy, scale)

	shadow := make([][2]float64, len(pts))
	for i, p := range pts {
		shadow[i] = [2]float64{p[0] + 1.5*scale, p[1] + 2*scale}
	}
	fillPolygon(dst, shadow, color.NRGBA{A: 0xff}, 0.30*alpha)

	outline := arrowOutlineScaled(cx, cy, scale, 1.18)
	fillPolygon(dst, outline, color.NRGBA{R: 0x20, G: 0x20, B: 0x24, A: 0xff}, alpha)
	fillPolygon(dst, pts, color.NRGBA{R: 0xfa, G: 0xfa, B: 0xfa, A: 0xff}, alpha)
}

// arrowOutline is the pointer silhouette, hotspot at the origin, in glyph
// units scaled to canvas pixels.
func arrowOutline(cx, cy, scale float64) [][2]float64 {
	shape := [][2]float64{
		{0, 0}, {0, 14.5}, {3.4, 11.5}, {5.6, 16.4}, {8.3, 15.2}, {6.1, 10.4}, {10.6, 10.2},
	}
	out := make([][2]float64, len(shape))
	for i, p := range shape {
		out[i] = [2]float64{cx + p[0]*scale, cy + p[1]*scale}
	}
	return out
}

func arrowOutlineScaled(cx, cy, scale, grow float64) [][2]float64 {
	pts := arrowOutline(cx, cy, scale*grow)
	// Re-anchor so the tip stays on the hotspot.
	dx := pts[0][0] - cx
	dy := pts[0][1] - cy
	for i := range pts {
		pts[i][0] -= dx
		pts[i][1] -= dy
	}
	return pts
}

// drawIBeam paints the text cursor centered on the hotspot.
func drawIBeam(dst *image.RGBA, cx, cy, scale, alpha float64) {
	h := 16 * scale
	serif := 5 * scale
	stem := math.Max(1.6*scale, 1.2)

	body := color.NRGBA{R: 0xfa, G: 0xfa, B: 0xfa, A: 0xff}
	shadow := color.NRGBA{A: 0xff}

	bars := []image.Rectangle{
		image.Rect(int(cx-stem/2), int(cy-h/2), int(cx+stem/2)+1, int(cy+h/2)),     // stem
		image.Rect(int(cx-serif/2), int(cy-h/2), int(cx+serif/2)+1, int(cy-h/2+stem)+1), // top serif
		image.Rect(int(cx-serif/2), int(cy+h/2-stem), int(cx+serif/2)+1, int(cy+h/2)+1), // bottom serif
	}
	for _, b := range bars {
		fillRect(dst, b.Add(image.Pt(1, 2)), shadow, 0.30*alpha)
	}
	for _, b := range bars {
		fillRect(dst, b, body, alpha)
	}
}
