package telemetry

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/shaunagostinho/cansat-ground/internal/fault"
)

// DefaultMaxFrame bounds how many bytes may accumulate without a line
// terminator before the partial frame is discarded.
const DefaultMaxFrame = 4096

// ErrFrameTooLong is returned by Poll when a partial frame outgrew the
// limit. It wraps fault.ErrDecodeRejected; reading may continue.
var ErrFrameTooLong = fmt.Errorf("%w: frame exceeds length limit", fault.ErrDecodeRejected)

// FrameReader reassembles newline-terminated frames from a source that may
// return any number of bytes per read, including zero.
type FrameReader struct {
	src      io.Reader
	buf      []byte
	chunk    []byte
	maxFrame int
	// discarding is set after an overflow until the next terminator, so the
	// tail of an oversized frame is not mistaken for a frame of its own.
	discarding bool
}

// NewFrameReader wraps src. maxFrame <= 0 selects DefaultMaxFrame.
func NewFrameReader(src io.Reader, maxFrame int) *FrameReader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	return &FrameReader{
		src:      src,
		chunk:    make([]byte, 512),
		maxFrame: maxFrame,
	}
}

// Poll performs one read and returns the frames it completed, in arrival
// order, without their terminators. Invalid UTF-8 is replaced with U+FFFD.
//
// Bytes that arrive together with a read error are still framed; the error
// is returned alongside them.
func (r *FrameReader) Poll() ([]string, error) {
	n, err := r.src.Read(r.chunk)
	frames, ferr := r.feed(r.chunk[:n])
	if err != nil {
		return frames, err
	}
	return frames, ferr
}

// Buffered returns the number of bytes held for an incomplete frame.
func (r *FrameReader) Buffered() int { return len(r.buf) }

func (r *FrameReader) feed(p []byte) ([]string, error) {
	var frames []string
	var overflow error
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if !r.discarding {
				r.buf = append(r.buf, p...)
			}
			break
		}
		if r.discarding {
			r.discarding = false
		} else {
			r.buf = append(r.buf, p[:i]...)
			if len(r.buf) > r.maxFrame {
				overflow = ErrFrameTooLong
			} else {
				frames = append(frames, strings.ToValidUTF8(string(r.buf), "�"))
			}
		}
		r.buf = r.buf[:0]
		p = p[i+1:]
	}
	if len(r.buf) > r.maxFrame {
		r.buf = r.buf[:0]
		r.discarding = true
		overflow = ErrFrameTooLong
	}
	return frames, overflow
}
