package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/framecast/framecast-agent/internal/audio"
)

// FFmpeg is the subprocess-backed Decoder implementation.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

// NewFFmpeg builds a decoder using the given binary paths; empty paths fall
// back to whatever is on PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string, logger *slog.Logger) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Probe runs ffprobe and extracts the stream metadata the exporter needs.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-hide_banner", "-loglevel", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		result.DurationMs = int64(d * 1000)
	}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if result.Width == 0 {
				result.Width = s.Width
				result.Height = s.Height
				result.VideoCodec = s.CodecName
				result.FrameRate = parseRational(s.AvgFrameRate)
				if result.FrameRate <= 0 {
					result.FrameRate = parseRational(s.RFrameRate)
				}
			}
		case "audio":
			if !result.HasAudio {
				result.HasAudio = true
				result.SampleRate, _ = strconv.Atoi(s.SampleRate)
				result.Channels = s.Channels
			}
		}
	}
	if result.Width == 0 || result.Height == 0 {
		return nil, fmt.Errorf("media: %s has no video stream", path)
	}
	return result, nil
}

// parseRational parses ffprobe's "num/den" frame rates.
func parseRational(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// OpenSource starts a streaming rawvideo decode of path.
func (f *FFmpeg) OpenSource(ctx context.Context, path string, probe *ProbeResult) (FrameSource, error) {
	src := &rawSource{
		ffmpeg: f,
		path:   path,
		width:  probe.Width,
		height: probe.Height,
		fps:    probe.FrameRate,
	}
	if src.fps <= 0 {
		src.fps = 30
	}
	if err := src.start(ctx, 0); err != nil {
		return nil, err
	}
	return src, nil
}

// ExtractPCM decodes the source's audio track into interleaved s16le PCM at
// the requested rate and channel count.
func (f *FFmpeg) ExtractPCM(ctx context.Context, path string, sampleRate, channels int) (*audio.PCM, error) {
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if strings.Contains(msg, "does not contain any stream") ||
			strings.Contains(msg, "Output file does not contain any stream") {
			return nil, ErrNoAudioTrack
		}
		return nil, fmt.Errorf("extract audio from %s: %w: %s", path, err, strings.TrimSpace(msg))
	}
	raw := stdout.Bytes()
	if len(raw) < 2 {
		return nil, ErrNoAudioTrack
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	return &audio.PCM{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// rawSource streams rgba frames from an ffmpeg subprocess. Seeking restarts
// the process at the target unless the target is a short read-ahead away, in
// which case frames are read and discarded instead; restarting is far more
// expensive than decoding a few extra frames.
type rawSource struct {
	ffmpeg *FFmpeg
	path   string
	width  int
	height int
	fps    float64

	cmd        *exec.Cmd
	stdout     io.ReadCloser
	startMs    int64
	frameIndex int64
	buf        []byte
}

// seekReadAheadMs bounds how far forward a "seek" may be satisfied by
// discarding frames from the running decode.
const seekReadAheadMs = 800

func (s *rawSource) start(ctx context.Context, atMs int64) error {
	s.stop()

	args := []string{"-hide_banner", "-loglevel", "error"}
	if atMs > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", float64(atMs)/1000))
	}
	args = append(args,
		"-i", s.path,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)

	cmd := exec.CommandContext(ctx, s.ffmpeg.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("media: stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("media: start decoder: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.startMs = atMs
	s.frameIndex = 0
	if s.buf == nil {
		s.buf = make([]byte, s.width*s.height*4)
	}
	return nil
}

func (s *rawSource) stop() {
	if s.cmd == nil {
		return
	}
	_ = s.stdout.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
}

// nextFrameTimeMs is the media time of the frame the next ReadFrame returns.
func (s *rawSource) nextFrameTimeMs() int64 {
	return s.startMs + int64(float64(s.frameIndex)*1000/s.fps)
}

func (s *rawSource) ReadFrame(ctx context.Context) (*Frame, error) {
	if s.cmd == nil {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(s.stdout, s.buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	copy(img.Pix, s.buf)
	frame := &Frame{Image: img, TimeMs: s.nextFrameTimeMs()}
	s.frameIndex++
	return frame, nil
}

func (s *rawSource) Seek(ctx context.Context, targetMs int64) error {
	next := s.nextFrameTimeMs()
	if s.cmd != nil && targetMs >= next && targetMs-next <= seekReadAheadMs {
		halfFrame := int64(500 / s.fps)
		for s.nextFrameTimeMs()+halfFrame < targetMs {
			if _, err := s.ReadFrame(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	return s.start(ctx, targetMs)
}

func (s *rawSource) Close() error {
	s.stop()
	return nil
}
