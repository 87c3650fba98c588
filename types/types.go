package types

import (
	"fmt"
	"strings"
)

// MediaKind selects what a download should contain.
type MediaKind int

const (
	// VideoAudio requests the best muxed video+audio stream. It is the zero value.
	VideoAudio MediaKind = iota
	// Audio requests the best audio-only stream.
	Audio
)

func (k MediaKind) String() string {
	switch k {
	case VideoAudio:
		return "video+audio"
	case Audio:
		return "audio"
	default:
		return fmt.Sprintf("MediaKind(%d)", int(k))
	}
}

// ParseMediaKind accepts "video+audio", "video" or "audio" (case-insensitive).
// An empty string means VideoAudio.
func ParseMediaKind(s string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "video+audio", "video":
		return VideoAudio, nil
	case "audio":
		return Audio, nil
	}
	return VideoAudio, fmt.Errorf("unknown media kind %q", s)
}

// Format describes an available media format.
type Format struct {
	Itag            int
	URL             string
	Quality         string
	MimeType        string
	Bitrate         int
	Size            int64
	SignatureCipher string
	HasVideo        bool
	HasAudio        bool
}

// VideoInfo describes basic video metadata.
type VideoInfo struct {
	ID       string
	Title    string
	Author   string
	Duration int
	Formats  []Format
}
