// Package formats parses, selects and resolves YouTube media formats.
package formats

import (
	"strings"

	"github.com/ytget/ytsave/internal/mimeext"
	"github.com/ytget/ytsave/types"
)

// hasDirectURL returns true when the format already contains a resolvable URL.
// Formats without direct URLs need signature deciphering.
func hasDirectURL(format types.Format) bool {
	return strings.TrimSpace(format.URL) != ""
}

// playable returns true when the format can be turned into a URL at all.
func playable(format types.Format) bool {
	return hasDirectURL(format) || strings.TrimSpace(format.SignatureCipher) != ""
}

// matchesKind checks container and track layout for a media kind.
func matchesKind(format types.Format, kind types.MediaKind) bool {
	if mimeext.BaseType(format.MimeType) != mimeext.ContainerForKind(kind) {
		return false
	}
	if kind == types.Audio {
		return format.HasAudio && !format.HasVideo
	}
	return format.HasVideo && format.HasAudio
}

// betterByHeightThenBitrate compares two formats and returns true when candidate is better than current
// using height as primary criterion and bitrate as a tiebreaker.
func betterByHeightThenBitrate(candidate types.Format, current types.Format) bool {
	candidateHeight := parseHeight(candidate.Quality)
	currentHeight := parseHeight(current.Quality)
	if candidateHeight != currentHeight {
		return candidateHeight > currentHeight
	}
	return candidate.Bitrate > current.Bitrate
}
