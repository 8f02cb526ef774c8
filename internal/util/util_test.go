package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"blank", "   \t ", nil},
		{"plain", "zoom in", []string{"zoom", "in"}},
		{"extra spaces", "  seek   09:00:00  1 ", []string{"seek", "09:00:00", "1"}},
		{"quoted timestamp", `overlay 0 "2025-01-01 23:00:00" "2025-01-02 01:00:00"`, []string{"overlay", "0", "2025-01-01 23:00:00", "2025-01-02 01:00:00"}},
		{"empty quoted", `theme ""`, []string{"theme", ""}},
		{"escaped quote", `say "a ""b"" c"`, []string{"say", `a "b" c`}},
		{"quote inside word", `a"b c"d`, []string{"ab cd"}},
		{"trailing newline", "pause 0\r\n", []string{"pause", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitArgs(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSplitArgs_Unterminated(t *testing.T) {
	_, err := SplitArgs(`overlay 0 "2025-01-01 23:00:00`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated quote")
}
