package mimeext

import (
	"testing"

	"github.com/ytget/ytsave/types"
)

func TestExtFromMime(t *testing.T) {
	cases := map[string]string{
		"video/mp4":                  "mp4",
		"audio/mp4":                  "m4a",
		"video/webm":                 "webm",
		"audio/webm":                 "webm",
		"video/unknown":              "unknown",
		"":                           "mp4",
		"video/mp4; codecs=\"avc1\"": "mp4",
	}
	for in, want := range cases {
		if got := ExtFromMime(in); got != want {
			t.Fatalf("%q -> %q (want %q)", in, got, want)
		}
	}
}

func TestExtForKind(t *testing.T) {
	if got := ExtForKind(types.VideoAudio); got != "mp4" {
		t.Fatalf("video+audio -> %q", got)
	}
	if got := ExtForKind(types.Audio); got != "m4a" {
		t.Fatalf("audio -> %q", got)
	}
}

func TestContainerForKind(t *testing.T) {
	if ContainerForKind(types.VideoAudio) != MimeVideoMP4 {
		t.Fatal("video+audio should require video/mp4")
	}
	if ContainerForKind(types.Audio) != MimeAudioMP4 {
		t.Fatal("audio should require audio/mp4")
	}
	if BaseType(`Audio/MP4; codecs="mp4a.40.2"`) != MimeAudioMP4 {
		t.Fatal("BaseType should strip params and lower-case")
	}
}
