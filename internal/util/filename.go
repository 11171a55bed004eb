package util

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

const maxFileNameRunes = 255

var ErrInvalidFileName = errors.New("invalid file name")

var invalidFileNameChars = regexp.MustCompile(`[<>:"/\\|?*;]`)

// CleanFileName strips control and invisible characters, replaces characters that are
// unsafe in paths or Content-Disposition headers, and truncates to 255 runes.
func CleanFileName(name string) (string, error) {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.TrimSpace(invalidFileNameChars.ReplaceAllString(b.String(), "_"))
	if runes := []rune(cleaned); len(runes) > maxFileNameRunes {
		cleaned = strings.TrimSpace(string(runes[:maxFileNameRunes]))
	}

	switch cleaned {
	case "", ".", "..":
		return "", ErrInvalidFileName
	}
	return cleaned, nil
}
