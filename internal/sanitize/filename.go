package sanitize

import (
	"strings"
)

const (
	// MaxFilenameLength is the maximum allowed length for the filename base.
	MaxFilenameLength = 200
)

// BaseName derives the output file base name from a title. Every character
// outside [a-zA-Z0-9] becomes '_' and the result is lower-cased. Only an
// empty title falls back to fallbackID unchanged; whitespace is a title.
func BaseName(title, fallbackID string) string {
	if title == "" {
		return fallbackID
	}
	var b strings.Builder
	b.Grow(len(title))
	n := 0
	for _, r := range title {
		if n == MaxFilenameLength {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
		n++
	}
	return b.String()
}

// ToSafeFilename joins BaseName and ext (without dot).
func ToSafeFilename(title, fallbackID, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return BaseName(title, fallbackID) + "." + ext
}
