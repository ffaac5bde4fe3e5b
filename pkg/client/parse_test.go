package client

import (
	"testing"
	"time"

	"github.com/marmos91/distd/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListRow(t *testing.T) {
	e, err := ParseListRow("FILE   1,234,567 bytes 2024-03-09 14:05:06 my report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "my report.pdf", e.Name)
	assert.Equal(t, int64(1234567), e.Size)
	assert.False(t, e.IsDir)
	assert.Equal(t, time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local), e.ModTime)

	e, err = ParseListRow("DIR    0 bytes         2024-03-09 14:05:06 docs")
	require.NoError(t, err)
	assert.True(t, e.IsDir)
	assert.Equal(t, "docs", e.Name)

	for _, bad := range []string{"", "FILE 12 bytes", "LINK   1 bytes 2024-03-09 14:05:06 x", "FILE   x bytes 2024-03-09 14:05:06 x"} {
		_, err := ParseListRow(bad)
		assert.ErrorIs(t, err, ErrProtocolViolation, bad)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		reply protocol.ParsedReply
		want  error
	}{
		{protocol.ParsedReply{Code: 550, Text: "File unavailable File not found: a"}, ErrNotFound},
		{protocol.ParsedReply{Code: 550, Text: "File unavailable File already exists: a"}, ErrConflict},
		{protocol.ParsedReply{Code: 221, Text: "Service closing control connection Server shutting down"}, ErrServerClosed},
		{protocol.ParsedReply{Code: 200, Text: "Command OK"}, ErrProtocolViolation},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, classify("X", tt.reply), tt.want, tt.reply.String())
	}

	err := classify("PUT", protocol.ParsedReply{Code: 552, Text: "too big"})
	var rerr *ReplyError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 552, rerr.Code)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestParseSize(t *testing.T) {
	size, err := parseSize([]string{"File: a", "Size: 42 bytes"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)

	_, err = parseSize([]string{"File: a"})
	assert.ErrorIs(t, err, ErrProtocolViolation)
}
