package types

import "testing"

func TestMediaKind_ZeroValueIsVideoAudio(t *testing.T) {
	var k MediaKind
	if k != VideoAudio {
		t.Fatalf("zero value = %v", k)
	}
	if k.String() != "video+audio" {
		t.Fatalf("got %q", k.String())
	}
	if Audio.String() != "audio" {
		t.Fatalf("got %q", Audio.String())
	}
	if MediaKind(7).String() != "MediaKind(7)" {
		t.Fatalf("got %q", MediaKind(7).String())
	}
}

func TestParseMediaKind(t *testing.T) {
	cases := map[string]MediaKind{
		"":            VideoAudio,
		"video+audio": VideoAudio,
		"Video":       VideoAudio,
		" AUDIO ":     Audio,
	}
	for in, want := range cases {
		got, err := ParseMediaKind(in)
		if err != nil {
			t.Fatalf("%q -> error %v", in, err)
		}
		if got != want {
			t.Fatalf("%q -> %v (want %v)", in, got, want)
		}
	}
	if _, err := ParseMediaKind("flac"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
