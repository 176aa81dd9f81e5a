package encode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// hardware encoder candidates, probed in order before the software fallback.
var hardwareEncoders = []string{
	"h264_videotoolbox",
	"h264_nvenc",
	"h264_qsv",
	"h264_vaapi",
}

const softwareEncoder = "libx264"

// FFmpegEncoder streams raw RGBA frames into an ffmpeg subprocess and parses
// the Annex-B output into AVCC chunks.
type FFmpegEncoder struct {
	ffmpegPath string
	logger     *slog.Logger

	settings Settings
	encoder  string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	mu         sync.Mutex
	timestamps []stamp
	chunks     []Chunk
	config     *DecoderConfig
	readErr    error

	splitter   auSplitter
	readerDone chan struct{}
}

type stamp struct {
	timestampUs int64
	durationUs  int64
}

// NewFFmpegEncoder builds an encoder using the given ffmpeg binary; an empty
// path falls back to PATH lookup.
func NewFFmpegEncoder(ffmpegPath string, logger *slog.Logger) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath, logger: logger}
}

// Configure probes for a usable encoder and starts the encode subprocess.
// Hardware failures fall back silently to libx264; if that also fails the
// session is unusable and ErrUnsupportedEncoder is returned.
func (e *FFmpegEncoder) Configure(ctx context.Context, s Settings) error {
	if s.Width <= 0 || s.Height <= 0 || s.FrameRate <= 0 {
		return fmt.Errorf("encode: invalid settings %dx%d @ %.2f", s.Width, s.Height, s.FrameRate)
	}
	name, err := e.selectEncoder(ctx)
	if err != nil {
		return err
	}
	e.settings = s
	e.encoder = name
	e.logger.Info("encoder selected", "encoder", name, "width", s.Width, "height", s.Height)
	return e.start(ctx)
}

func (e *FFmpegEncoder) selectEncoder(ctx context.Context) (string, error) {
	for _, name := range hardwareEncoders {
		if e.probeEncoder(ctx, name) {
			return name, nil
		}
	}
	if e.probeEncoder(ctx, softwareEncoder) {
		return softwareEncoder, nil
	}
	return "", ErrUnsupportedEncoder
}

// probeEncoder runs a one-frame null encode to check the codec actually
// works, not just that ffmpeg lists it.
func (e *FFmpegEncoder) probeEncoder(ctx context.Context, name string) bool {
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=c=black:s=128x128:r=30",
		"-frames:v", "1",
		"-c:v", name,
		"-f", "null", "-",
	)
	return cmd.Run() == nil
}

func (e *FFmpegEncoder) start(ctx context.Context) error {
	s := e.settings
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-r", strconv.FormatFloat(s.FrameRate, 'f', -1, 64),
		"-i", "-",
		"-c:v", e.encoder,
		"-pix_fmt", "yuv420p",
		"-g", strconv.Itoa(KeyframeInterval(s.FrameRate)),
		"-bf", "0",
	}
	if s.BitrateKbps > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", s.BitrateKbps))
	} else if e.encoder == softwareEncoder {
		args = append(args, "-crf", "18", "-preset", "medium")
	}
	// AUDs delimit access units so the output parser never has to guess
	// frame boundaries.
	args = append(args, "-bsf:v", "h264_metadata=aud=insert", "-f", "h264", "-")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("encode: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("encode: stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("encode: start %s: %w", e.encoder, err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.stdout = stdout
	e.readerDone = make(chan struct{})
	go e.readLoop()
	return nil
}

func (e *FFmpegEncoder) readLoop() {
	defer close(e.readerDone)
	buf := make([]byte, 256*1024)
	for {
		n, err := e.stdout.Read(buf)
		if n > 0 {
			for _, au := range e.splitter.feed(buf[:n]) {
				e.emit(au)
			}
		}
		if err != nil {
			if err != io.EOF {
				e.mu.Lock()
				e.readErr = err
				e.mu.Unlock()
			}
			for _, au := range e.splitter.finish() {
				e.emit(au)
			}
			return
		}
	}
}

func (e *FFmpegEncoder) emit(au accessUnit) {
	e.mu.Lock()
	var st stamp
	if len(e.timestamps) > 0 {
		st = e.timestamps[0]
		e.timestamps = e.timestamps[1:]
	}
	chunk := Chunk{
		Data:        avcc(au),
		TimestampUs: st.timestampUs,
		DurationUs:  st.durationUs,
		Keyframe:    au.keyframe,
	}
	if e.config == nil {
		if cfg, err := e.splitter.decoderConfig(e.settings.Width, e.settings.Height); err == nil {
			e.config = cfg
			chunk.Config = cfg
		}
	}
	onChunk := e.settings.OnChunk
	if onChunk == nil {
		e.chunks = append(e.chunks, chunk)
	}
	e.mu.Unlock()

	if onChunk != nil {
		onChunk(chunk)
	}
}

// Encode submits one frame. The write blocks if ffmpeg's input buffer is
// full, which is the natural pacing for the subprocess.
func (e *FFmpegEncoder) Encode(f Frame) error {
	e.mu.Lock()
	if err := e.readErr; err != nil {
		e.mu.Unlock()
		return fmt.Errorf("encode: output stream: %w", err)
	}
	e.timestamps = append(e.timestamps, stamp{f.TimestampUs, f.DurationUs})
	e.mu.Unlock()

	if _, err := e.stdin.Write(f.Image.Pix); err != nil {
		return fmt.Errorf("encode: write frame: %w", err)
	}
	return nil
}

// Flush closes the input, waits for the parser to drain the output, and
// returns accumulated chunks plus the decoder configuration.
func (e *FFmpegEncoder) Flush(ctx context.Context) ([]Chunk, *DecoderConfig, error) {
	if e.cmd == nil {
		return nil, nil, fmt.Errorf("encode: not configured")
	}
	_ = e.stdin.Close()

	select {
	case <-e.readerDone:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	waitErr := e.cmd.Wait()
	e.cmd = nil

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readErr != nil {
		return nil, nil, fmt.Errorf("encode: output stream: %w", e.readErr)
	}
	if waitErr != nil {
		return nil, nil, fmt.Errorf("encode: %s exited: %w", e.encoder, waitErr)
	}
	if e.config == nil {
		return nil, nil, fmt.Errorf("encode: stream produced no decoder configuration")
	}
	chunks := e.chunks
	e.chunks = nil
	return chunks, e.config, nil
}

// Close tears down the subprocess if Flush was not reached.
func (e *FFmpegEncoder) Close() error {
	if e.cmd == nil {
		return nil
	}
	_ = e.stdin.Close()
	_ = e.cmd.Process.Kill()
	_ = e.cmd.Wait()
	<-e.readerDone
	e.cmd = nil
	return nil
}
