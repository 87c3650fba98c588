package mimeext

import (
	"strings"

	"github.com/ytget/ytsave/types"
)

const (
	// DefaultExt is the extension used when MIME is unknown or empty.
	DefaultExt = "mp4"

	// ExtMP4 is the file extension for muxed video+audio downloads.
	ExtMP4 = "mp4"
	// ExtM4A is the file extension for MP4 audio.
	ExtM4A = "m4a"
	// ExtWebM is the file extension for WebM media.
	ExtWebM = "webm"

	// MimeVideoMP4 is the MIME type for MP4 video.
	MimeVideoMP4 = "video/mp4"
	// MimeAudioMP4 is the MIME type for MP4 audio.
	MimeAudioMP4 = "audio/mp4"
	// MimeVideoWebM is the MIME type for WebM video.
	MimeVideoWebM = "video/webm"
	// MimeAudioWebM is the MIME type for WebM audio.
	MimeAudioWebM = "audio/webm"
)

// ExtForKind returns the output extension (without dot) for a media kind.
func ExtForKind(kind types.MediaKind) string {
	if kind == types.Audio {
		return ExtM4A
	}
	return ExtMP4
}

// ContainerForKind returns the MIME base type a format must have to be
// saved under ExtForKind(kind).
func ContainerForKind(kind types.MediaKind) string {
	if kind == types.Audio {
		return MimeAudioMP4
	}
	return MimeVideoMP4
}

// BaseType strips parameters such as codecs from a MIME type.
func BaseType(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

// ExtFromMime returns file extension (without dot) for given mime type.
// Falls back to subtype or mp4 if unknown.
func ExtFromMime(mime string) string {
	base := BaseType(mime)
	if base == "" {
		return DefaultExt
	}
	switch base {
	case MimeVideoMP4:
		return ExtMP4
	case MimeAudioMP4:
		return ExtM4A
	case MimeVideoWebM, MimeAudioWebM:
		return ExtWebM
	}
	parts := strings.Split(base, "/")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}
	return DefaultExt
}
