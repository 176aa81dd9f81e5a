package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

// buildBackground renders the background layer once; it is static for the
// whole export and copied onto the canvas each frame.
func (r *Renderer) buildBackground() error {
	bg := image.NewRGBA(image.Rect(0, 0, r.opts.Width, r.opts.Height))
	b := r.opts.Style.Background

	switch b.Kind {
	case BackgroundGradient:
		from := parseHexColor(b.GradientFrom, color.NRGBA{R: 0x1e, G: 0x29, B: 0x3b, A: 0xff})
		to := parseHexColor(b.GradientTo, color.NRGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff})
		fillVerticalGradient(bg, from, to)
	case BackgroundWallpaper:
		img, err := r.loadImage(b.Wallpaper)
		if err != nil {
			return fmt.Errorf("render: load wallpaper: %w", err)
		}
		coverScale(bg, img)
	default:
		c := parseHexColor(b.Color, color.NRGBA{R: 0x11, G: 0x11, B: 0x14, A: 0xff})
		fillSolid(bg, c)
	}

	if b.BlurRadius > 0 {
		// Blur radius is authored against the editor preview; scale it with
		// the output so the blur looks identical at any export resolution.
		radius := b.BlurRadius
		if pw := r.opts.Style.PreviewWidth; pw > 0 {
			radius *= float64(r.opts.Width) / float64(pw)
		}
		boxBlur(bg, int(radius+0.5))
	}

	r.background = bg
	return nil
}

// loadImage decodes and memoizes an image file.
func (r *Renderer) loadImage(path string) (image.Image, error) {
	if img, ok := r.imageCache[path]; ok {
		return img, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	r.imageCache[path] = img
	return img, nil
}

func fillSolid(dst *image.RGBA, c color.NRGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func fillVerticalGradient(dst *image.RGBA, from, to color.NRGBA) {
	b := dst.Bounds()
	h := b.Dy()
	for y := 0; y < h; y++ {
		f := float64(y) / float64(h-1)
		c := color.NRGBA{
			R: lerpByte(from.R, to.R, f),
			G: lerpByte(from.G, to.G, f),
			B: lerpByte(from.B, to.B, f),
			A: 0xff,
		}
		row := image.Rect(b.Min.X, b.Min.Y+y, b.Max.X, b.Min.Y+y+1)
		draw.Draw(dst, row, image.NewUniform(c), image.Point{}, draw.Src)
	}
}

// coverScale scales src to fill dst completely, cropping the overflow, like
// CSS background-size: cover.
func coverScale(dst *image.RGBA, src image.Image) {
	db, sb := dst.Bounds(), src.Bounds()
	scale := float64(db.Dx()) / float64(sb.Dx())
	if s := float64(db.Dy()) / float64(sb.Dy()); s > scale {
		scale = s
	}
	w := int(float64(sb.Dx()) * scale)
	h := int(float64(sb.Dy()) * scale)
	x := (db.Dx() - w) / 2
	y := (db.Dy() - h) / 2
	draw.BiLinear.Scale(dst, image.Rect(x, y, x+w, y+h), src, sb, draw.Src, nil)
}

func lerpByte(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f)
}

// boxBlur applies three passes of a separable box blur, a close Gaussian
// approximation that stays O(n) in the radius.
func boxBlur(img *image.RGBA, radius int) {
	if radius < 1 {
		return
	}
	for i := 0; i < 3; i++ {
		blurPass(img, radius, true)
		blurPass(img, radius, false)
	}
}

func blurPass(img *image.RGBA, radius int, horizontal bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	line := make([]uint8, 0)

	outer, inner := h, w
	if !horizontal {
		outer, inner = w, h
	}
	line = make([]uint8, inner*4)

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			off := pixOffset(img, o, i, horizontal)
			copy(line[i*4:i*4+4], img.Pix[off:off+4])
		}
		var sr, sg, sb2, sa int
		count := 0
		// Sliding window sum.
		for i := -radius; i <= radius; i++ {
			if i < 0 || i >= inner {
				continue
			}
			sr += int(line[i*4])
			sg += int(line[i*4+1])
			sb2 += int(line[i*4+2])
			sa += int(line[i*4+3])
			count++
		}
		for i := 0; i < inner; i++ {
			off := pixOffset(img, o, i, horizontal)
			img.Pix[off] = uint8(sr / count)
			img.Pix[off+1] = uint8(sg / count)
			img.Pix[off+2] = uint8(sb2 / count)
			img.Pix[off+3] = uint8(sa / count)

			if add := i + radius + 1; add < inner {
				sr += int(line[add*4])
				sg += int(line[add*4+1])
				sb2 += int(line[add*4+2])
				sa += int(line[add*4+3])
				count++
			}
			if del := i - radius; del >= 0 {
				sr -= int(line[del*4])
				sg -= int(line[del*4+1])
				sb2 -= int(line[del*4+2])
				sa -= int(line[del*4+3])
				count--
			}
		}
	}
}

func pixOffset(img *image.RGBA, o, i int, horizontal bool) int {
	if horizontal {
		return img.PixOffset(img.Bounds().Min.X+i, img.Bounds().Min.Y+o)
	}
	return img.PixOffset(img.Bounds().Min.X+o, img.Bounds().Min.Y+i)
}

// parseHexColor parses #RGB, #RRGGBB or #RRGGBBAA, returning fallback on any
// malformed input.
func parseHexColor(s string, fallback color.NRGBA) color.NRGBA {
	if len(s) == 0 || s[0] != '#' {
		return fallback
	}
	hex := s[1:]
	var c color.NRGBA
	c.A = 0xff
	switch len(hex) {
	case 3:
		vals, ok := parseHexBytes(hex)
		if !ok {
			return fallback
		}
		c.R = vals[0] * 17
		c.G = vals[1] * 17
		c.B = vals[2] * 17
	case 6, 8:
		var vals []uint8
		for i := 0; i+1 < len(hex); i += 2 {
			v, ok := parseHexBytes(hex[i : i+2])
			if !ok {
				return fallback
			}
			vals = append(vals, v[0]*16+v[1])
		}
		c.R, c.G, c.B = vals[0], vals[1], vals[2]
		if len(vals) == 4 {
			c.A = vals[3]
		}
	default:
		return fallback
	}
	return c
}

func parseHexBytes(s string) ([]uint8, bool) {
	out := make([]uint8, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			out[i] = ch - '0'
		case ch >= 'a' && ch <= 'f':
			out[i] = ch - 'a' + 10
		case ch >= 'A' && ch <= 'F':
			out[i] = ch - 'A' + 10
		default:
			return nil, false
		}
	}
	return out, true
}
