package adapter

// ProtocolError is a domain error translated to a wire-level status.
//
// ProtocolError supports errors.Is() via Unwrap(), so callers can match both
// the protocol-level failure and the underlying domain error.
type ProtocolError interface {
	error

	// Code returns the numeric reply code sent to the client (e.g. 550).
	Code() int

	// Message returns the text sent after the code and phrase.
	Message() string

	// Unwrap returns the underlying domain error.
	Unwrap() error
}
