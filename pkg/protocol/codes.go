package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind is a symbolic reply kind. Each kind maps to a fixed 3-digit code and
// phrase.
type Kind int

const (
	Ready Kind = iota
	CmdOK
	Goodbye
	EnteringTransfer
	FileStatusOK
	SyntaxError
	SyntaxErrorParam
	NotImplemented
	BadSequence
	NotImplementedParam
	FileUnavailable
	ActionNotTaken
	LocalError
	InsufficientStorage
	ExceededStorage
	FilenameNotAllowed
)

type status struct {
	name   string
	code   int
	phrase string
}

var statusTable = map[Kind]status{
	Ready:               {"READY", 220, "Service ready"},
	CmdOK:               {"CMD_OK", 200, "Command OK"},
	Goodbye:             {"GOODBYE", 221, "Service closing control connection"},
	EnteringTransfer:    {"ENTERING_TRANSFER", 150, "File status okay; about to open data connection"},
	FileStatusOK:        {"FILE_STATUS_OK", 226, "Closing data connection, file transfer successful"},
	SyntaxError:         {"SYNTAX_ERROR", 500, "Syntax error, command unrecognized"},
	SyntaxErrorParam:    {"SYNTAX_ERROR_PARAM", 501, "Syntax error in parameters or arguments"},
	NotImplemented:      {"NOT_IMPLEMENTED", 502, "Command not implemented"},
	BadSequence:         {"BAD_SEQUENCE", 503, "Bad sequence of commands"},
	NotImplementedParam: {"NOT_IMPLEMENTED_PARAM", 504, "Command not implemented for that parameter"},
	FileUnavailable:     {"FILE_UNAVAILABLE", 550, "File unavailable (e.g., file not found, no access)"},
	ActionNotTaken:      {"ACTION_NOT_TAKEN", 450, "Requested action not taken"},
	LocalError:          {"LOCAL_ERROR", 451, "Requested action aborted, local error"},
	InsufficientStorage: {"INSUFFICIENT_STORAGE", 452, "Requested action not taken, insufficient storage"},
	ExceededStorage:     {"EXCEEDED_STORAGE", 552, "Requested file action aborted, exceeded storage allocation"},
	FilenameNotAllowed:  {"FILENAME_NOT_ALLOWED", 553, "Requested action not taken, file name not allowed"},
}

// Code returns the numeric reply code. Unknown kinds report 451 so a bad
// kind never reaches the wire as a success.
func (k Kind) Code() int {
	return k.status().code
}

// Phrase returns the fixed human-readable phrase for k.
func (k Kind) Phrase() string {
	return k.status().phrase
}

// String returns the symbolic name (e.g. "FILE_UNAVAILABLE").
func (k Kind) String() string {
	if s, ok := statusTable[k]; ok {
		return s.name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) status() status {
	if s, ok := statusTable[k]; ok {
		return s
	}
	return statusTable[LocalError]
}

// KindForCode returns the kind registered for code.
func KindForCode(code int) (Kind, bool) {
	for k, s := range statusTable {
		if s.code == code {
			return k, true
		}
	}
	return 0, false
}

// Reply is a single server response: a status line and, for multi-line
// replies, continuation lines.
type Reply struct {
	Kind  Kind
	Extra string
	Body  []string
	// Multi forces the empty-line terminator even when Body is empty.
	Multi bool
}

// NewReply builds a single-line reply.
func NewReply(kind Kind, extra string) Reply {
	return Reply{Kind: kind, Extra: extra}
}

// NewBodyReply builds a multi-line reply. It is terminated by an empty line
// even when lines is empty so readers always know where it ends.
func NewBodyReply(kind Kind, extra string, lines []string) Reply {
	return Reply{Kind: kind, Extra: extra, Body: lines, Multi: true}
}

// Line returns the status line without its terminator.
func (r Reply) Line() string {
	s := r.Kind.status()
	if r.Extra == "" {
		return strconv.Itoa(s.code) + " " + s.phrase
	}
	return strconv.Itoa(s.code) + " " + s.phrase + " " + r.Extra
}

// Bytes renders the reply in wire format.
func (r Reply) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(sanitize(r.Line()))
	buf.WriteString(CRLF)
	if r.Multi || len(r.Body) > 0 {
		for _, l := range r.Body {
			if l = sanitize(l); l == "" {
				// An empty continuation line would terminate the body early.
				l = " "
			}
			buf.WriteString(l)
			buf.WriteString(CRLF)
		}
		buf.WriteString(CRLF)
	}
	return buf.Bytes()
}

// WriteTo writes the rendered reply to w.
func (r Reply) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

func (r Reply) String() string {
	return r.Line()
}

// sanitize strips line terminators so a caller-supplied string cannot inject
// extra lines into the stream.
func sanitize(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// ParsedReply is a status line decoded by a client.
type ParsedReply struct {
	Code int
	Text string
}

// Kind returns the symbolic kind for the parsed code, if known.
func (p ParsedReply) Kind() (Kind, bool) {
	return KindForCode(p.Code)
}

// Positive reports whether the code is in the 1xx-3xx range.
func (p ParsedReply) Positive() bool {
	return p.Code >= 100 && p.Code < 400
}

func (p ParsedReply) String() string {
	return fmt.Sprintf("%d %s", p.Code, p.Text)
}

// ParseReply decodes a status line of the form "<code> <text>".
func ParseReply(line string) (ParsedReply, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 3 {
		return ParsedReply{}, fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil || code < 100 || code > 599 {
		return ParsedReply{}, fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}
	if len(line) > 3 && line[3] != ' ' {
		return ParsedReply{}, fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}
	return ParsedReply{Code: code, Text: strings.TrimSpace(line[3:])}, nil
}
