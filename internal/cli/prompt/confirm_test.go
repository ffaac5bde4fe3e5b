package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		answer     string
		defaultYes bool
		want       bool
	}{
		{"", false, false},
		{"", true, true},
		{"y", false, true},
		{"YES", false, true},
		{" yes ", false, true},
		{"n", true, false},
		{"no", true, false},
		{"maybe", true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseAnswer(tt.answer, tt.defaultYes), "%q default=%v", tt.answer, tt.defaultYes)
	}
}

func TestConfirmWithForceSkipsPrompt(t *testing.T) {
	ok, err := ConfirmWithForce("Delete everything?", true)
	require.NoError(t, err)
	assert.True(t, ok)
}
