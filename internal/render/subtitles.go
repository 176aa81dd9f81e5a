package render

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"

	"github.com/framecast/framecast-agent/internal/timeline"
)

// drawSubtitle burns in the active cue, bottom-centered over a translucent
// pill, wrapping long cues to at most two lines.
func (r *Renderer) drawSubtitle(effectiveMs int64) {
	cue, ok := timeline.ActiveCue(effectiveMs, r.opts.Subtitles)
	if !ok || strings.TrimSpace(cue.Text) == "" {
		return
	}

	face := r.fonts.subtitle
	metrics := face.Metrics()
	lineH := metrics.Height.Ceil()
	maxWidth := r.opts.Width * 8 / 10

	lines := wrapText(cue.Text, face, maxWidth)
	if len(lines) > 2 {
		lines = lines[:2]
	}

	padX := lineH / 2
	padY := lineH / 4
	blockH := len(lines)*lineH + 2*padY
	bottomMargin := r.opts.Height / 18
	top := r.opts.Height - bottomMargin - blockH

	widest := 0
	for _, line := range lines {
		if w := measureString(face, line); w > widest {
			widest = w
		}
	}

	bgRect := image.Rect(
		(r.opts.Width-widest)/2-padX,
		top,
		(r.opts.Width+widest)/2+padX,
		top+blockH,
	)
	fillRect(r.canvas, bgRect, color.NRGBA{A: 0xff}, 0.55)

	baseline := top + padY + metrics.Ascent.Ceil()
	for _, line := range lines {
		w := measureString(face, line)
		drawString(r.canvas, face, line, (r.opts.Width-w)/2, baseline,
			color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		baseline += lineH
	}
}

// wrapText greedily wraps words so each line fits maxWidth. A single word
// wider than the limit gets its own line rather than being split.
func wrapText(s string, face font.Face, maxWidth int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var (
		lines []string
		cur   string
	)
	for _, w := range words {
		candidate := w
		if cur != "" {
			candidate = cur + " " + w
		}
		if cur != "" && measureString(face, candidate) > maxWidth {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur = candidate
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
