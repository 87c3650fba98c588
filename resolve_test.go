package ytsave

import (
	"errors"
	"testing"

	"github.com/ytget/ytsave/errs"
)

func TestResolveID(t *testing.T) {
	cases := []struct {
		locator string
		want    string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"http://youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?app=desktop&v=def456ghi_-&feature=youtu.be", "def456ghi_-"},
		{"https://www.youtube.com/shorts/brZCOVlyPPo", "brZCOVlyPPo"},
		{"https://www.youtube.com/shorts/brZCOVlyPPo?si=3E6i4QoYvnJjqS_b", "brZCOVlyPPo"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/live/dQw4w9WgXcQ?feature=share", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=token", "dQw4w9WgXcQ"},
		{"see https://youtu.be/dQw4w9WgXcQ and https://youtu.be/aaaaaaaaaaa", "dQw4w9WgXcQ"},
		{"watch youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://user@youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		got, err := ResolveID(tc.locator)
		if err != nil {
			t.Fatalf("%s -> error: %v (want %s)", tc.locator, err, tc.want)
		}
		if got != tc.want {
			t.Fatalf("%s -> got %s (want %s)", tc.locator, got, tc.want)
		}
	}
}

func TestResolveID_Invalid(t *testing.T) {
	cases := []string{
		"",
		"dQw4w9WgXcQ",
		"https://www.youtube.com/watch?foo=bar",
		"https://www.youtube.com/watch?v=short",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"not a url",
		"https://www.youtube.com/playlist?list=PLxxxxxxxxxxxx",
		"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxx",
		"https://www.youtube.com/watch#v=dQw4w9WgXcQ",
		"https://evilyoutube.com/watch?v=dQw4w9WgXcQ",
		"https://notyoutu.be/dQw4w9WgXcQ",
		"https://www.notyoutube.com/shorts/brZCOVlyPPo",
	}
	for _, loc := range cases {
		got, err := ResolveID(loc)
		if got != "" || err == nil {
			t.Fatalf("%q -> got=%q err=%v; want empty id and error", loc, got, err)
		}
		if !errors.Is(err, errs.ErrInvalidLocator) {
			t.Fatalf("%q -> error %v is not ErrInvalidLocator", loc, err)
		}
		var e *errs.Error
		if !errors.As(err, &e) || e.VideoID != "" {
			t.Fatalf("%q -> want *errs.Error without video id, got %#v", loc, err)
		}
	}
}

func TestCanonicalURL_RoundTrip(t *testing.T) {
	ids := []string{"dQw4w9WgXcQ", "___________", "-----------", "A1b2C3d4E5f"}
	for _, id := range ids {
		u := CanonicalURL(id)
		if u != "https://www.youtube.com/watch?v="+id {
			t.Fatalf("CanonicalURL(%s) = %s", id, u)
		}
		got, err := ResolveID(u)
		if err != nil || got != id {
			t.Fatalf("ResolveID(CanonicalURL(%s)) = %q, %v", id, got, err)
		}
	}
}
