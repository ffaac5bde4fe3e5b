package protocol

import "bytes"

// CRLF terminates every control line.
const CRLF = "\r\n"

// Sentinels delimiting binary payload on the control stream.
var (
	FileStart    = []byte("FILE_START\r\n")
	ReadyForFile = []byte("READY_FOR_FILE\r\n")
	FileEnd      = []byte("FILE_END\r\n")
)

// SentinelLine returns marker without its CRLF, as it appears to a line
// reader.
func SentinelLine(marker []byte) string {
	return string(bytes.TrimSuffix(marker, []byte(CRLF)))
}

// Scanner searches a byte stream for a marker that may be split across any
// number of reads.
//
// Feed returns the bytes known to precede the marker. Bytes that could be
// the start of a split marker are held back until the next Feed resolves
// them, so payload is never emitted past a marker and a marker is never
// missed because of where a read boundary fell.
type Scanner struct {
	marker []byte
	buf    []byte
	held   int
	found  bool
}

// NewScanner returns a Scanner looking for marker. The marker must not be
// empty.
func NewScanner(marker []byte) *Scanner {
	if len(marker) == 0 {
		panic("protocol: empty sentinel")
	}
	return &Scanner{marker: marker}
}

// Feed consumes chunk. before holds the bytes preceding the marker that are
// now safe to hand on. When found is true, after holds the bytes that
// followed the marker within the data seen so far; the Scanner must not be
// fed again.
//
// The returned slices alias internal storage and are valid only until the
// next call to Feed.
func (s *Scanner) Feed(chunk []byte) (before []byte, found bool, after []byte) {
	if s.found {
		return nil, true, chunk
	}

	// Move the held-back tail to the front and append the new data.
	n := copy(s.buf[:cap(s.buf)], s.buf[len(s.buf)-s.held:])
	s.buf = append(s.buf[:n], chunk...)
	s.held = 0

	if idx := bytes.Index(s.buf, s.marker); idx >= 0 {
		s.found = true
		return s.buf[:idx], true, s.buf[idx+len(s.marker):]
	}

	s.held = overlap(s.buf, s.marker)
	return s.buf[:len(s.buf)-s.held], false, nil
}

// Pending returns the held-back bytes that might begin a marker. When the
// stream ends without a match they are ordinary data.
func (s *Scanner) Pending() []byte {
	if s.found {
		return nil
	}
	return s.buf[len(s.buf)-s.held:]
}

// Found reports whether the marker has been seen.
func (s *Scanner) Found() bool {
	return s.found
}

// Reset prepares the Scanner for reuse with the same marker.
func (s *Scanner) Reset() {
	s.buf = s.buf[:0]
	s.held = 0
	s.found = false
}

// overlap returns the length of the longest proper prefix of marker that is
// a suffix of data.
func overlap(data, marker []byte) int {
	max := len(marker) - 1
	if len(data) < max {
		max = len(data)
	}
	for k := max; k > 0; k-- {
		if bytes.Equal(data[len(data)-k:], marker[:k]) {
			return k
		}
	}
	return 0
}
