package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindCodes(t *testing.T) {
	tests := []struct {
		kind Kind
		code int
		name string
	}{
		{Ready, 220, "READY"},
		{CmdOK, 200, "CMD_OK"},
		{Goodbye, 221, "GOODBYE"},
		{EnteringTransfer, 150, "ENTERING_TRANSFER"},
		{FileStatusOK, 226, "FILE_STATUS_OK"},
		{SyntaxError, 500, "SYNTAX_ERROR"},
		{SyntaxErrorParam, 501, "SYNTAX_ERROR_PARAM"},
		{NotImplemented, 502, "NOT_IMPLEMENTED"},
		{BadSequence, 503, "BAD_SEQUENCE"},
		{NotImplementedParam, 504, "NOT_IMPLEMENTED_PARAM"},
		{FileUnavailable, 550, "FILE_UNAVAILABLE"},
		{ActionNotTaken, 450, "ACTION_NOT_TAKEN"},
		{LocalError, 451, "LOCAL_ERROR"},
		{InsufficientStorage, 452, "INSUFFICIENT_STORAGE"},
		{ExceededStorage, 552, "EXCEEDED_STORAGE"},
		{FilenameNotAllowed, 553, "FILENAME_NOT_ALLOWED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.kind.Code())
			assert.Equal(t, tt.name, tt.kind.String())
			assert.NotEmpty(t, tt.kind.Phrase())

			k, ok := KindForCode(tt.code)
			require.True(t, ok)
			assert.Equal(t, tt.kind, k)
		})
	}
}

func TestUnknownKindFallsBackToLocalError(t *testing.T) {
	k := Kind(999)
	assert.Equal(t, 451, k.Code())
	assert.Equal(t, "Requested action aborted, local error", k.Phrase())
	assert.Equal(t, "Kind(999)", k.String())
	assert.Equal(t, "451 Requested action aborted, local error oops\r\n", string(NewReply(k, "oops").Bytes()))
}

func TestReplyBytes(t *testing.T) {
	t.Run("SingleLine", func(t *testing.T) {
		r := NewReply(Ready, "FTP Server Ready")
		assert.Equal(t, "220 Service ready FTP Server Ready\r\n", string(r.Bytes()))
	})

	t.Run("NoExtra", func(t *testing.T) {
		r := NewReply(SyntaxError, "")
		assert.Equal(t, "500 Syntax error, command unrecognized\r\n", string(r.Bytes()))
	})

	t.Run("Body", func(t *testing.T) {
		r := NewBodyReply(EnteringTransfer, "", []string{"File: a.txt", "Size: 5 bytes"})
		want := "150 File status okay; about to open data connection\r\n" +
			"File: a.txt\r\nSize: 5 bytes\r\n\r\n"
		assert.Equal(t, want, string(r.Bytes()))
	})

	t.Run("EmptyBodyStillTerminated", func(t *testing.T) {
		r := NewBodyReply(CmdOK, "No files in directory", nil)
		assert.Equal(t, "200 Command OK No files in directory\r\n\r\n", string(r.Bytes()))
	})

	t.Run("BlankContinuationPadded", func(t *testing.T) {
		r := NewBodyReply(CmdOK, "", []string{"a", "", "b"})
		assert.Equal(t, "200 Command OK\r\na\r\n \r\nb\r\n\r\n", string(r.Bytes()))
	})

	t.Run("InjectedTerminatorsStripped", func(t *testing.T) {
		r := NewReply(FileUnavailable, "evil\r\n226 ok")
		out := r.Bytes()
		assert.Equal(t, 1, bytes.Count(out, []byte("\n")))
	})
}

func TestReplyWriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := NewReply(Goodbye, "Goodbye").WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "221 Service closing control connection Goodbye\r\n", buf.String())
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		code    int
		text    string
		wantErr bool
	}{
		{"Greeting", "220 Service ready FTP Server Ready", 220, "Service ready FTP Server Ready", false},
		{"TrailingCRLF", "226 done\r\n", 226, "done", false},
		{"CodeOnly", "200", 200, "", false},
		{"TooShort", "20", 0, "", true},
		{"NotNumeric", "abc def", 0, "", true},
		{"OutOfRange", "999 nope", 0, "", true},
		{"NoSpace", "200OK", 0, "", true},
		{"Sentinel", "FILE_START", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseReply(tt.line)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedReply)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, p.Code)
			assert.Equal(t, tt.text, p.Text)
		})
	}
}

func TestParsedReplyRoundTrip(t *testing.T) {
	line := NewReply(FileStatusOK, "File a.txt uploaded").Line()
	p, err := ParseReply(line)
	require.NoError(t, err)

	k, ok := p.Kind()
	require.True(t, ok)
	assert.Equal(t, FileStatusOK, k)
	assert.True(t, p.Positive())

	p, err = ParseReply(NewReply(LocalError, "").Line())
	require.NoError(t, err)
	assert.False(t, p.Positive())
}
