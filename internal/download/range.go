package download

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// Range is a resolved byte range within an export file. Both bounds are
// inclusive, matching Content-Range semantics.
type Range struct {
	Start int64
	End   int64
}

func (r Range) ContentLength() int64 {
	return r.End - r.Start + 1
}

func (r Range) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange resolves a Range header against an export of the given size. An
// empty header means the whole file and yields a nil range. Players scrubbing
// an MP4 send single ranges; a multi-range request falls back to its first
// range rather than a multipart response.
func ParseRange(header string, size int64) (*Range, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrInvalidRange
	}
	if first, _, ok := strings.Cut(spec, ","); ok {
		spec = strings.TrimSpace(first)
	}
	startPart, endPart, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, ErrInvalidRange
	}

	var start, end int64
	if startPart == "" {
		// Suffix form: the last N bytes, capped at the file size.
		n, err := strconv.ParseInt(endPart, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrInvalidRange
		}
		start = size - n
		if start < 0 {
			start = 0
		}
		end = size - 1
	} else {
		var err error
		start, err = strconv.ParseInt(startPart, 10, 64)
		if err != nil || start < 0 {
			return nil, ErrInvalidRange
		}
		end = size - 1
		if endPart != "" {
			end, err = strconv.ParseInt(endPart, 10, 64)
			if err != nil {
				return nil, ErrInvalidRange
			}
		}
	}

	if start > end || start >= size {
		return nil, ErrUnsatisfiable
	}
	if end >= size {
		end = size - 1
	}
	return &Range{Start: start, End: end}, nil
}
