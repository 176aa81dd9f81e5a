package render

import (
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// fontSet holds the faces used for subtitle burn-in and text annotations,
// sized relative to the output width so text scales with resolution.
type fontSet struct {
	regular  font.Face
	subtitle font.Face
}

func newFontSet(outputWidth int) (*fontSet, error) {
	reg, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}

	base := float64(outputWidth) / 60.0
	if base < 12 {
		base = 12
	}

	regular, err := opentype.NewFace(reg, &opentype.FaceOptions{
		Size:    base,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	subtitle, err := opentype.NewFace(bold, &opentype.FaceOptions{
		Size:    base * 1.15,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}

	return &fontSet{regular: regular, subtitle: subtitle}, nil
}

func (f *fontSet) Close() error {
	if err := f.regular.Close(); err != nil {
		return err
	}
	return f.subtitle.Close()
}
