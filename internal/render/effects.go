package render

import (
	"image"
	"image/color"
	"math"
)

// frameTransform maps normalized source coordinates to canvas pixels for one
// rendered frame, given the crop/zoom view chosen for that frame.
type frameTransform struct {
	view    image.Rectangle // source pixels currently shown
	content image.Rectangle // canvas area they are drawn into
	srcW    int
	srcH    int
}

// mapNorm projects a normalized source-frame point onto the canvas. ok is
// false when the point falls outside the visible view.
func (t frameTransform) mapNorm(nx, ny float64) (float64, float64, bool) {
	px := nx * float64(t.srcW)
	py := ny * float64(t.srcH)
	vw := float64(t.view.Dx())
	vh := float64(t.view.Dy())
	if vw <= 0 || vh <= 0 {
		return 0, 0, false
	}
	fx := (px - float64(t.view.Min.X)) / vw
	fy := (py - float64(t.view.Min.Y)) / vh
	cx := float64(t.content.Min.X) + fx*float64(t.content.Dx())
	cy := float64(t.content.Min.Y) + fy*float64(t.content.Dy())
	inside := fx >= 0 && fx <= 1 && fy >= 0 && fy <= 1
	return cx, cy, inside
}

// scaleFactor is the canvas pixels per source pixel at the current zoom,
// used to size cursor glyphs consistently.
func (t frameTransform) scaleFactor() float64 {
	if t.view.Dx() <= 0 {
		return 1
	}
	return float64(t.content.Dx()) / float64(t.view.Dx())
}

// buildCornerMask precomputes the rounded-corner alpha mask for the content
// rectangle. A zero radius leaves the mask nil and the content square.
func (r *Renderer) buildCornerMask() {
	pct := r.opts.Style.CornerRadiusPct
	if pct <= 0 {
		return
	}
	w, h := r.content.Dx(), r.content.Dy()
	min := w
	if h < min {
		min = h
	}
	radius := float64(min) * pct
	if radius < 1 {
		return
	}

	mask := image.NewAlpha(r.content)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := roundedRectAlpha(float64(x)+0.5, float64(y)+0.5, float64(w), float64(h), radius)
			mask.SetAlpha(r.content.Min.X+x, r.content.Min.Y+y, color.Alpha{A: a})
		}
	}
	r.cornerMask = mask
}

// roundedRectAlpha returns coverage for a point inside a w×h rounded rect,
// with a one-pixel antialiased edge at the corner arcs.
func roundedRectAlpha(x, y, w, h, radius float64) uint8 {
	cx := clampF(x, radius, w-radius)
	cy := clampF(y, radius, h-radius)
	dx, dy := x-cx, y-cy
	d := math.Sqrt(dx*dx + dy*dy)
	switch {
	case d <= radius-1:
		return 0xff
	case d >= radius:
		return 0
	default:
		return uint8(255 * (radius - d))
	}
}

// buildShadow precomputes the drop shadow layer: a blurred dark rounded rect
// slightly below the content rectangle.
func (r *Renderer) buildShadow() {
	opacity := r.opts.Style.ShadowOpacity
	sizePct := r.opts.Style.ShadowSizePct
	if opacity <= 0 || sizePct <= 0 {
		return
	}
	min := r.opts.Width
	if r.opts.Height < min {
		min = r.opts.Height
	}
	size := int(float64(min) * sizePct)
	if size < 1 {
		return
	}

	shadow := image.NewRGBA(image.Rect(0, 0, r.opts.Width, r.opts.Height))
	a := uint8(clampF(opacity, 0, 1) * 255)
	rect := r.content.Add(image.Pt(0, size/2))
	radius := float64(min) * r.opts.Style.CornerRadiusPct
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if !image.Pt(x, y).In(shadow.Bounds()) {
				continue
			}
			cov := roundedRectAlpha(float64(x-rect.Min.X)+0.5, float64(y-rect.Min.Y)+0.5,
				float64(rect.Dx()), float64(rect.Dy()), math.Max(radius, 1))
			if cov == 0 {
				continue
			}
			aa := uint8(int(a) * int(cov) / 255)
			shadow.SetRGBA(x, y, color.RGBA{A: aa})
		}
	}
	boxBlur(shadow, size)
	r.shadow = shadow
}

// blendRegion mixes weight of src into dst over rect. Both images must share
// the rect in their bounds.
func blendRegion(dst, src *image.RGBA, rect image.Rectangle, weight float64) {
	if weight <= 0 {
		return
	}
	w := int(weight * 256)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		do := dst.PixOffset(rect.Min.X, y)
		so := src.PixOffset(rect.Min.X, y)
		n := rect.Dx() * 4
		for i := 0; i < n; i++ {
			d := int(dst.Pix[do+i])
			s := int(src.Pix[so+i])
			dst.Pix[do+i] = uint8(d + (s-d)*w/256)
		}
	}
}

// blendPixel alpha-blends an NRGBA color into dst at (x,y) scaled by alpha
// in [0,1].
func blendPixel(dst *image.RGBA, x, y int, c color.NRGBA, alpha float64) {
	if alpha <= 0 || !(image.Pt(x, y).In(dst.Bounds())) {
		return
	}
	a := int(alpha * float64(c.A))
	if a <= 0 {
		return
	}
	if a > 255 {
		a = 255
	}
	off := dst.PixOffset(x, y)
	dst.Pix[off] = uint8((int(c.R)*a + int(dst.Pix[off])*(255-a)) / 255)
	dst.Pix[off+1] = uint8((int(c.G)*a + int(dst.Pix[off+1])*(255-a)) / 255)
	dst.Pix[off+2] = uint8((int(c.B)*a + int(dst.Pix[off+2])*(255-a)) / 255)
	dst.Pix[off+3] = 0xff
}

// fillCircle draws an antialiased filled circle.
func fillCircle(dst *image.RGBA, cx, cy, radius float64, c color.NRGBA, alpha float64) {
	if radius <= 0 || alpha <= 0 {
		return
	}
	x0, x1 := int(cx-radius)-1, int(cx+radius)+1
	y0, y1 := int(cy-radius)-1, int(cy+radius)+1
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			d := math.Sqrt(dx*dx + dy*dy)
			cov := radius - d + 0.5
			if cov <= 0 {
				continue
			}
			if cov > 1 {
				cov = 1
			}
			blendPixel(dst, x, y, c, alpha*cov)
		}
	}
}

// strokeRing draws an antialiased circular ring of the given thickness.
func strokeRing(dst *image.RGBA, cx, cy, radius, thickness float64, c color.NRGBA, alpha float64) {
	if radius <= 0 || alpha <= 0 {
		return
	}
	outer := radius + thickness/2
	inner := radius - thickness/2
	x0, x1 := int(cx-outer)-1, int(cx+outer)+1
	y0, y1 := int(cy-outer)-1, int(cy+outer)+1
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			d := math.Sqrt(dx*dx + dy*dy)
			cov := math.Min(outer-d+0.5, d-inner+0.5)
			if cov <= 0 {
				continue
			}
			if cov > 1 {
				cov = 1
			}
			blendPixel(dst, x, y, c, alpha*cov)
		}
	}
}

// fillPolygon rasterizes a convex or simple polygon with even-odd scanline
// filling. Points are in canvas space.
func fillPolygon(dst *image.RGBA, pts [][2]float64, c color.NRGBA, alpha float64) {
	if len(pts) < 3 || alpha <= 0 {
		return
	}
	minY, maxY := pts[0][1], pts[0][1]
	for _, p := range pts {
		minY = math.Min(minY, p[1])
		maxY = math.Max(maxY, p[1])
	}
	for y := int(minY); y <= int(maxY); y++ {
		fy := float64(y) + 0.5
		var xs []float64
		j := len(pts) - 1
		for i := 0; i < len(pts); i++ {
			yi, yj := pts[i][1], pts[j][1]
			if (yi <= fy && yj > fy) || (yj <= fy && yi > fy) {
				x := pts[i][0] + (fy-yi)/(yj-yi)*(pts[j][0]-pts[i][0])
				xs = append(xs, x)
			}
			j = i
		}
		if len(xs) < 2 {
			continue
		}
		// Insertion sort; crossing lists are tiny.
		for i := 1; i < len(xs); i++ {
			for k := i; k > 0 && xs[k] < xs[k-1]; k-- {
				xs[k], xs[k-1] = xs[k-1], xs[k]
			}
		}
		for i := 0; i+1 < len(xs); i += 2 {
			for x := int(xs[i] + 0.5); x < int(xs[i+1]+0.5); x++ {
				blendPixel(dst, x, y, c, alpha)
			}
		}
	}
}

// fillRect blends a solid rectangle.
func fillRect(dst *image.RGBA, rect image.Rectangle, c color.NRGBA, alpha float64) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			blendPixel(dst, x, y, c, alpha)
		}
	}
}
