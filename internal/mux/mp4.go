// Package mux assembles encoded media into container blobs: a pure-Go MP4
// writer for H.264 plus PCM audio, and a GIF writer that quantizes rendered
// frames directly.
package mux

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/framecast/framecast-agent/internal/encode"
)

// videoTimescale is the video track timescale. Microsecond timestamps map
// onto it without rescaling.
const videoTimescale = 1_000_000

// movieTimescale is the mvhd timescale, in milliseconds.
const movieTimescale = 1000

// MP4Muxer buffers encoded video chunks and PCM audio, then lays them out as
// ftyp + mdat + moov on Finalize.
type MP4Muxer struct {
	config *encode.DecoderConfig

	samples []videoSample
	mdat    bytes.Buffer

	audio         []int16
	audioRate     int
	audioChannels int

	finalized bool
}

type videoSample struct {
	offset     int // into mdat payload
	size       int
	durationUs int64
	keyframe   bool
}

// NewMP4Muxer returns an empty muxer.
func NewMP4Muxer() *MP4Muxer {
	return &MP4Muxer{}
}

// WriteVideoChunk appends one encoded chunk. The first chunk must carry the
// decoder configuration.
func (m *MP4Muxer) WriteVideoChunk(c encode.Chunk) error {
	if m.finalized {
		return fmt.Errorf("mux: write after finalize")
	}
	if c.Config != nil {
		m.config = c.Config
	}
	if m.config == nil {
		return fmt.Errorf("mux: first chunk carries no decoder configuration")
	}
	offset := m.mdat.Len()
	m.mdat.Write(c.Data)
	m.samples = append(m.samples, videoSample{
		offset:     offset,
		size:       len(c.Data),
		durationUs: c.DurationUs,
		keyframe:   c.Keyframe,
	})
	return nil
}

// WriteAudio attaches an interleaved 16-bit PCM track. Calling it again
// replaces the previous track.
func (m *MP4Muxer) WriteAudio(pcm []int16, sampleRate, channels int) error {
	if m.finalized {
		return fmt.Errorf("mux: write after finalize")
	}
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("mux: invalid audio format %d Hz %d ch", sampleRate, channels)
	}
	if len(pcm)%channels != 0 {
		return fmt.Errorf("mux: pcm length %d not divisible by %d channels", len(pcm), channels)
	}
	m.audio = pcm
	m.audioRate = sampleRate
	m.audioChannels = channels
	return nil
}

// Finalize assembles the file. It may be called once.
func (m *MP4Muxer) Finalize() ([]byte, error) {
	if m.finalized {
		return nil, fmt.Errorf("mux: already finalized")
	}
	if len(m.samples) == 0 {
		return nil, fmt.Errorf("mux: no video samples written")
	}
	if m.config == nil {
		return nil, fmt.Errorf("mux: no decoder configuration")
	}
	m.finalized = true

	ftyp := box("ftyp",
		[]byte("isom"),
		u32(0x200),
		[]byte("isomiso2avc1mp41"),
	)

	// Audio PCM goes after the video payload inside mdat.
	audioOffset := m.mdat.Len()
	audioBytes := encodePCM(m.audio)
	mdatPayload := make([]byte, 0, m.mdat.Len()+len(audioBytes))
	mdatPayload = append(mdatPayload, m.mdat.Bytes()...)
	mdatPayload = append(mdatPayload, audioBytes...)
	mdat := box("mdat", mdatPayload)

	// Absolute file offsets for stco: ftyp, then the 8-byte mdat header.
	base := len(ftyp) + 8
	moov := m.buildMoov(base, base+audioOffset)

	out := make([]byte, 0, len(ftyp)+len(mdat)+len(moov))
	out = append(out, ftyp...)
	out = append(out, mdat...)
	out = append(out, moov...)
	return out, nil
}

func encodePCM(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func (m *MP4Muxer) videoDurationUs() int64 {
	var total int64
	for _, s := range m.samples {
		total += s.durationUs
	}
	return total
}

func (m *MP4Muxer) buildMoov(videoBase, audioBase int) []byte {
	durationMs := m.videoDurationUs() / 1000
	if m.audioRate > 0 && m.audioChannels > 0 {
		audioMs := int64(len(m.audio)/m.audioChannels) * 1000 / int64(m.audioRate)
		if audioMs > durationMs {
			durationMs = audioMs
		}
	}

	nextTrack := uint32(2)
	parts := [][]byte{m.buildVideoTrak(1, durationMs, videoBase)}
	if len(m.audio) > 0 {
		parts = append(parts, m.buildAudioTrak(2, durationMs, audioBase))
		nextTrack = 3
	}

	mvhd := box("mvhd",
		u32(0), // version + flags
		u32(0), u32(0), // creation, modification
		u32(movieTimescale),
		u32(uint32(durationMs)),
		u32(0x00010000), // rate 1.0
		u16(0x0100),     // volume 1.0
		make([]byte, 10),
		identityMatrix(),
		make([]byte, 24), // predefined
		u32(nextTrack),
	)

	children := append([][]byte{mvhd}, parts...)
	return box("moov", children...)
}

func (m *MP4Muxer) buildVideoTrak(trackID uint32, movieDurationMs int64, base int) []byte {
	cfg := m.config
	durationUs := m.videoDurationUs()

	tkhd := box("tkhd",
		u32(0x000007), // version 0, flags: enabled | in movie | in preview
		u32(0), u32(0),
		u32(trackID),
		u32(0),
		u32(uint32(movieDurationMs)),
		make([]byte, 8),
		u16(0), u16(0), // layer, alternate group
		u16(0), u16(0), // volume, reserved
		identityMatrix(),
		u32(uint32(cfg.Width)<<16),
		u32(uint32(cfg.Height)<<16),
	)

	mdhd := box("mdhd",
		u32(0),
		u32(0), u32(0),
		u32(videoTimescale),
		u32(uint32(durationUs)),
		u16(0x55c4), // language "und"
		u16(0),
	)
	hdlr := box("hdlr",
		u32(0), u32(0),
		[]byte("vide"),
		make([]byte, 12),
		append([]byte("VideoHandler"), 0),
	)

	avcC := box("avcC", cfg.Record)
	avc1 := box("avc1",
		make([]byte, 6), u16(1), // reserved, data reference index
		make([]byte, 16),
		u16(uint16(cfg.Width)), u16(uint16(cfg.Height)),
		u32(0x00480000), u32(0x00480000), // 72 dpi
		u32(0),
		u16(1), // frame count
		make([]byte, 32),
		u16(0x0018),
		u16(0xffff),
		avcC,
	)
	stsd := box("stsd", u32(0), u32(1), avc1)

	stbl := box("stbl",
		stsd,
		m.buildStts(),
		m.buildStss(),
		box("stsc", u32(0), u32(1), u32(1), u32(1), u32(1)),
		m.buildStsz(),
		m.buildStco(base),
	)
	minf := box("minf",
		box("vmhd", u32(1), make([]byte, 8)),
		dinf(),
		stbl,
	)
	mdia := box("mdia", mdhd, hdlr, minf)
	return box("trak", tkhd, mdia)
}

// buildStts run-length encodes per-sample durations in the video timescale.
func (m *MP4Muxer) buildStts() []byte {
	type run struct {
		count    uint32
		duration uint32
	}
	var runs []run
	for _, s := range m.samples {
		d := uint32(s.durationUs)
		if n := len(runs); n > 0 && runs[n-1].duration == d {
			runs[n-1].count++
			continue
		}
		runs = append(runs, run{1, d})
	}
	parts := [][]byte{u32(0), u32(uint32(len(runs)))}
	for _, r := range runs {
		parts = append(parts, u32(r.count), u32(r.duration))
	}
	return box("stts", parts...)
}

func (m *MP4Muxer) buildStss() []byte {
	var keys []uint32
	for i, s := range m.samples {
		if s.keyframe {
			keys = append(keys, uint32(i+1))
		}
	}
	parts := [][]byte{u32(0), u32(uint32(len(keys)))}
	for _, k := range keys {
		parts = append(parts, u32(k))
	}
	return box("stss", parts...)
}

func (m *MP4Muxer) buildStsz() []byte {
	parts := [][]byte{u32(0), u32(0), u32(uint32(len(m.samples)))}
	for _, s := range m.samples {
		parts = append(parts, u32(uint32(s.size)))
	}
	return box("stsz", parts...)
}

// buildStco writes one chunk per sample at its absolute file offset.
func (m *MP4Muxer) buildStco(base int) []byte {
	parts := [][]byte{u32(0), u32(uint32(len(m.samples)))}
	for _, s := range m.samples {
		parts = append(parts, u32(uint32(base+s.offset)))
	}
	return box("stco", parts...)
}

func (m *MP4Muxer) buildAudioTrak(trackID uint32, movieDurationMs int64, base int) []byte {
	frames := uint32(len(m.audio) / m.audioChannels)
	bytesPerFrame := uint32(2 * m.audioChannels)

	tkhd := box("tkhd",
		u32(0x000007),
		u32(0), u32(0),
		u32(trackID),
		u32(0),
		u32(uint32(movieDurationMs)),
		make([]byte, 8),
		u16(0), u16(0),
		u16(0x0100), u16(0), // volume 1.0
		identityMatrix(),
		u32(0), u32(0),
	)
	mdhd := box("mdhd",
		u32(0),
		u32(0), u32(0),
		u32(uint32(m.audioRate)),
		u32(frames),
		u16(0x55c4),
		u16(0),
	)
	hdlr := box("hdlr",
		u32(0), u32(0),
		[]byte("soun"),
		make([]byte, 12),
		append([]byte("SoundHandler"), 0),
	)

	// sowt: native-endian (little) signed 16-bit PCM.
	sowt := box("sowt",
		make([]byte, 6), u16(1),
		u16(0), u16(0), // version, revision
		u32(0),
		u16(uint16(m.audioChannels)),
		u16(16),
		u16(0), u16(0), // compression id, packet size
		u32(uint32(m.audioRate)<<16),
	)
	stsd := box("stsd", u32(0), u32(1), sowt)

	stbl := box("stbl",
		stsd,
		box("stts", u32(0), u32(1), u32(frames), u32(1)),
		box("stsc", u32(0), u32(1), u32(1), u32(frames), u32(1)),
		box("stsz", u32(0), u32(bytesPerFrame), u32(frames)),
		box("stco", u32(0), u32(1), u32(uint32(base))),
	)
	minf := box("minf",
		box("smhd", u32(0), u32(0)),
		dinf(),
		stbl,
	)
	mdia := box("mdia", mdhd, hdlr, minf)
	return box("trak", tkhd, mdia)
}

func dinf() []byte {
	url := box("url ", u32(1)) // self-contained
	dref := box("dref", u32(0), u32(1), url)
	return box("dinf", dref)
}

func identityMatrix() []byte {
	var buf bytes.Buffer
	vals := []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}
	for _, v := range vals {
		buf.Write(u32(v))
	}
	return buf.Bytes()
}

// box assembles a size-prefixed box from its type and payload parts.
func box(typ string, parts ...[]byte) []byte {
	size := 8
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	out = append(out, byte(size>>24), byte(size>>16), byte(size>>8), byte(size))
	out = append(out, typ...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}
