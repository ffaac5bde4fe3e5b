package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxLineLength bounds a single control line.
const DefaultMaxLineLength = 4096

// LineReader reads CRLF (or bare LF) terminated lines from a stream that
// also carries raw payload. Bytes consumed past a sentinel can be pushed
// back with Unread so the next ReadLine or Read sees them first.
type LineReader struct {
	r       *bufio.Reader
	pending []byte
	max     int
}

// NewLineReader wraps r. A max of zero or less selects
// DefaultMaxLineLength.
func NewLineReader(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = DefaultMaxLineLength
	}
	size := max
	if size < 4096 {
		size = 4096
	}
	return &LineReader{r: bufio.NewReaderSize(r, size), max: max}
}

// ReadLine returns the next line with its terminator and surrounding CR
// removed. A line longer than the maximum is consumed up to its terminator
// and ErrLineTooLong is returned. At end of stream a final unterminated
// line is returned together with io.EOF.
func (l *LineReader) ReadLine() (string, error) {
	var line []byte
	tooLong := false

	if len(l.pending) > 0 {
		if idx := bytes.IndexByte(l.pending, '\n'); idx >= 0 {
			line = l.pending[:idx]
			l.pending = l.pending[idx+1:]
			return l.finish(line, false)
		}
		line = append(line, l.pending...)
		l.pending = nil
		if len(line) > l.max {
			tooLong = true
			line = line[:0]
		}
	}

	for {
		frag, err := l.r.ReadSlice('\n')
		if !tooLong {
			line = append(line, frag...)
			if len(line) > l.max+2 {
				tooLong = true
				line = line[:0]
			}
		}
		switch {
		case err == nil:
			return l.finish(bytes.TrimSuffix(line, []byte("\n")), tooLong)
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			if tooLong {
				return "", ErrLineTooLong
			}
			if len(line) > 0 && errors.Is(err, io.EOF) {
				s, _ := l.finish(line, false)
				return s, io.EOF
			}
			return "", err
		}
	}
}

func (l *LineReader) finish(line []byte, tooLong bool) (string, error) {
	if tooLong {
		return "", ErrLineTooLong
	}
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) > l.max {
		return "", ErrLineTooLong
	}
	return string(line), nil
}

// Read reads raw bytes, draining pushed-back data first.
func (l *LineReader) Read(p []byte) (int, error) {
	if len(l.pending) > 0 {
		n := copy(p, l.pending)
		l.pending = l.pending[n:]
		return n, nil
	}
	return l.r.Read(p)
}

// Unread pushes b back in front of any unread data. b is copied.
func (l *LineReader) Unread(b []byte) {
	if len(b) == 0 {
		return
	}
	merged := make([]byte, 0, len(b)+len(l.pending))
	merged = append(merged, b...)
	l.pending = append(merged, l.pending...)
}

// Buffered returns the number of bytes that can be read without touching
// the underlying stream.
func (l *LineReader) Buffered() int {
	return len(l.pending) + l.r.Buffered()
}
