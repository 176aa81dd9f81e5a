// Package project defines the on-disk project document: the source recording,
// the editing timeline, the cursor track, and the output settings for one
// export.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/framecast/framecast-agent/internal/audio"
	"github.com/framecast/framecast-agent/internal/cursor"
	"github.com/framecast/framecast-agent/internal/mux"
	"github.com/framecast/framecast-agent/internal/render"
	"github.com/framecast/framecast-agent/internal/timeline"
)

// Format is the container format of an export.
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatGIF Format = "gif"
)

// Quality selects an encoder quality tier when no explicit bitrate is given.
type Quality string

const (
	QualityMedium Quality = "medium"
	QualityGood   Quality = "good"
	QualitySource Quality = "source"
)

// DefaultGIFFrameRate is used when a GIF export names no frame rate.
const DefaultGIFFrameRate = 15

// GIFFrameRates are the accepted GIF playback rates.
var GIFFrameRates = []float64{5, 10, 15, 24}

// Output holds the export settings of a project.
type Output struct {
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	FrameRate   float64        `json:"frame_rate"`
	BitrateKbps int            `json:"bitrate_kbps,omitempty"`
	Quality     Quality        `json:"quality,omitempty"`
	Format      Format         `json:"format"`
	GIFLoop     bool           `json:"gif_loop,omitempty"`
	GIFSize     mux.SizePreset `json:"gif_size,omitempty"`
	// GIFFrameRate replaces FrameRate for GIF exports; the container cannot
	// afford full-rate frames, so only a small set of rates is accepted.
	GIFFrameRate float64 `json:"gif_frame_rate,omitempty"`
	// IncludeAudio requests the source audio track in the output.
	IncludeAudio bool    `json:"include_audio"`
	AudioGain    float64 `json:"audio_gain,omitempty"`
}

// CursorSettings pairs the recorded track with its rendering options.
type CursorSettings struct {
	Track   *cursor.Track  `json:"track,omitempty"`
	Options cursor.Options `json:"options"`
	Scale   float64        `json:"scale,omitempty"`
	// Erase patches the OS cursor out of the captured pixels.
	Erase bool `json:"erase,omitempty"`
}

// Timeline is the edit decision list of a project. Trims and audio edits are
// in source time; zooms, annotations and subtitles are in effective time.
type Timeline struct {
	Trims       []timeline.TrimRegion       `json:"trims,omitempty"`
	Zooms       []timeline.ZoomRegion       `json:"zooms,omitempty"`
	Crop        *timeline.CropRegion        `json:"crop,omitempty"`
	Annotations []timeline.AnnotationRegion `json:"annotations,omitempty"`
	Subtitles   []timeline.SubtitleCue      `json:"subtitles,omitempty"`
	AudioEdits  []audio.EditRegion          `json:"audio_edits,omitempty"`
}

// Project is the full document.
type Project struct {
	// SourcePath is the recorded capture; relative paths resolve against the
	// project file's directory.
	SourcePath string         `json:"source_path"`
	Output     Output         `json:"output"`
	Style      render.Style   `json:"style"`
	Timeline   Timeline       `json:"timeline"`
	Cursor     CursorSettings `json:"cursor"`
}

// Load reads and validates a project file, resolving the source path.
func Load(path string) (*Project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: read %s: %w", path, err)
	}
	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("project: parse %s: %w", path, err)
	}
	if p.SourcePath != "" && !filepath.IsAbs(p.SourcePath) {
		p.SourcePath = filepath.Join(filepath.Dir(path), p.SourcePath)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("project: %s: %w", path, err)
	}
	return &p, nil
}

func (p *Project) applyDefaults() {
	if p.Output.Format == "" {
		p.Output.Format = FormatMP4
	}
	if p.Output.Quality == "" {
		p.Output.Quality = QualityGood
	}
	if p.Output.AudioGain == 0 {
		p.Output.AudioGain = 1
	}
	if p.Output.Format == FormatGIF && p.Output.GIFFrameRate == 0 {
		p.Output.GIFFrameRate = DefaultGIFFrameRate
	}
	if p.Cursor.Scale == 0 {
		p.Cursor.Scale = 1
	}
	if p.Cursor.Track != nil && p.Cursor.Options == (cursor.Options{}) {
		p.Cursor.Options = cursor.DefaultOptions()
	}
}

// Validate checks the document for contradictions the exporter cannot
// recover from.
func (p *Project) Validate() error {
	if p.SourcePath == "" {
		return fmt.Errorf("source_path is required")
	}
	switch p.Output.Format {
	case FormatMP4, FormatGIF:
	default:
		return fmt.Errorf("unknown format %q", p.Output.Format)
	}
	switch p.Output.Quality {
	case QualityMedium, QualityGood, QualitySource:
	default:
		return fmt.Errorf("unknown quality %q", p.Output.Quality)
	}
	if p.Output.Format == FormatGIF && !validGIFFrameRate(p.Output.GIFFrameRate) {
		return fmt.Errorf("unsupported gif_frame_rate %v, want one of %v", p.Output.GIFFrameRate, GIFFrameRates)
	}
	if p.Output.Width < 0 || p.Output.Height < 0 {
		return fmt.Errorf("negative output dimensions %dx%d", p.Output.Width, p.Output.Height)
	}
	if p.Timeline.Crop != nil {
		if err := p.Timeline.Crop.Validate(); err != nil {
			return err
		}
	}
	for _, a := range p.Timeline.Annotations {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validGIFFrameRate(fps float64) bool {
	for _, r := range GIFFrameRates {
		if fps == r {
			return true
		}
	}
	return false
}
