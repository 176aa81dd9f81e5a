package encode

import (
	"bytes"
	"fmt"
)

// NAL unit types used when reframing the elementary stream.
const (
	nalIDR = 5
	nalSPS = 7
	nalPPS = 8
	nalAUD = 9
)

var startCode3 = []byte{0, 0, 1}

// splitNALs cuts an Annex-B buffer into NAL units, handling both 3- and
// 4-byte start codes. Bytes before the first start code are discarded.
func splitNALs(buf []byte) [][]byte {
	var nals [][]byte
	i := bytes.Index(buf, startCode3)
	for i >= 0 {
		start := i + 3
		next := bytes.Index(buf[start:], startCode3)
		if next < 0 {
			nal := trimStartCodePrefix(buf[start:])
			if len(nal) > 0 {
				nals = append(nals, nal)
			}
			break
		}
		end := start + next
		nal := trimStartCodePrefix(buf[start:end])
		if len(nal) > 0 {
			nals = append(nals, nal)
		}
		i = end
	}
	return nals
}

// trimStartCodePrefix drops the trailing zero that belongs to a following
// 4-byte start code.
func trimStartCodePrefix(nal []byte) []byte {
	for len(nal) > 0 && nal[len(nal)-1] == 0 {
		nal = nal[:len(nal)-1]
	}
	return nal
}

func nalType(nal []byte) int {
	if len(nal) == 0 {
		return -1
	}
	return int(nal[0] & 0x1f)
}

// accessUnit is one frame's worth of NAL units.
type accessUnit struct {
	nals     [][]byte
	keyframe bool
}

// auSplitter groups NAL units into access units using the AUD delimiters the
// encoder is configured to insert. SPS/PPS are captured for the decoder
// configuration and dropped from the payload; the container carries them.
type auSplitter struct {
	pending []byte
	current accessUnit
	started bool
	sps     []byte
	pps     []byte
}

// feed appends stream bytes and returns any completed access units.
func (a *auSplitter) feed(buf []byte) []accessUnit {
	a.pending = append(a.pending, buf...)

	// Keep the trailing partial NAL in pending: everything after the last
	// start code might still grow.
	last := bytes.LastIndex(a.pending, startCode3)
	if last <= 0 {
		return nil
	}
	complete := a.pending[:last]
	rest := append([]byte(nil), a.pending[last:]...)

	var out []accessUnit
	for _, nal := range splitNALs(complete) {
		out = append(out, a.push(nal)...)
	}
	a.pending = rest
	return out
}

// finish flushes the splitter at end of stream.
func (a *auSplitter) finish() []accessUnit {
	var out []accessUnit
	for _, nal := range splitNALs(a.pending) {
		out = append(out, a.push(nal)...)
	}
	a.pending = nil
	if a.started && len(a.current.nals) > 0 {
		out = append(out, a.current)
	}
	a.current = accessUnit{}
	a.started = false
	return out
}

func (a *auSplitter) push(nal []byte) []accessUnit {
	switch nalType(nal) {
	case nalAUD:
		var out []accessUnit
		if a.started && len(a.current.nals) > 0 {
			out = append(out, a.current)
		}
		a.current = accessUnit{}
		a.started = true
		return out
	case nalSPS:
		a.sps = append([]byte(nil), nal...)
		return nil
	case nalPPS:
		a.pps = append([]byte(nil), nal...)
		return nil
	case nalIDR:
		a.current.keyframe = true
	}
	a.started = true
	a.current.nals = append(a.current.nals, nal)
	return nil
}

// avcc reframes an access unit with 4-byte length prefixes.
func avcc(au accessUnit) []byte {
	size := 0
	for _, nal := range au.nals {
		size += 4 + len(nal)
	}
	out := make([]byte, 0, size)
	for _, nal := range au.nals {
		n := len(nal)
		out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		out = append(out, nal...)
	}
	return out
}

// decoderConfig synthesizes the AVCDecoderConfigurationRecord and codec
// string from captured parameter sets.
func (a *auSplitter) decoderConfig(width, height int) (*DecoderConfig, error) {
	if len(a.sps) < 4 || len(a.pps) == 0 {
		return nil, fmt.Errorf("encode: parameter sets not seen in stream")
	}
	rec := make([]byte, 0, 11+len(a.sps)+len(a.pps))
	rec = append(rec, 1, a.sps[1], a.sps[2], a.sps[3], 0xff)
	rec = append(rec, 0xe1, byte(len(a.sps)>>8), byte(len(a.sps)))
	rec = append(rec, a.sps...)
	rec = append(rec, 1, byte(len(a.pps)>>8), byte(len(a.pps)))
	rec = append(rec, a.pps...)

	return &DecoderConfig{
		Record: rec,
		Codec:  fmt.Sprintf("avc1.%02X%02X%02X", a.sps[1], a.sps[2], a.sps[3]),
		Width:  width,
		Height: height,
	}, nil
}
