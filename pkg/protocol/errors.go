package protocol

import "errors"

var (
	// ErrLineTooLong is returned by LineReader.ReadLine when a line exceeds
	// the configured maximum. The rest of the line has been discarded.
	ErrLineTooLong = errors.New("protocol: line too long")

	// ErrMalformedReply is returned by ParseReply for lines without a
	// leading 3-digit code.
	ErrMalformedReply = errors.New("protocol: malformed reply")
)
