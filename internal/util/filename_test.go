package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestCleanFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unsafe characters replaced", ` permit<2026>?.pdf `, "permit_2026__.pdf"},
		{"header separators replaced", `a";b.pdf`, "a__b.pdf"},
		{"zero width characters stripped", "per\u200bmit\ufeff.pdf", "permit.pdf"},
		{"arabic kept", "تصريح.pdf", "تصريح.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanFileName(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "   ", "\x00\x01", "..", "\u200b"} {
		_, err := CleanFileName(bad)
		require.ErrorIs(t, err, ErrInvalidFileName, "%q", bad)
	}
}

func TestCleanFileNameTruncatesByRunes(t *testing.T) {
	t.Parallel()

	got, err := CleanFileName(strings.Repeat("ب", 300))
	require.NoError(t, err)
	require.Equal(t, 255, utf8.RuneCountInString(got))
	require.True(t, utf8.ValidString(got))
}
