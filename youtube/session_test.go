package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ytget/ytsave/errs"
	"github.com/ytget/ytsave/pkg/client"
	"github.com/ytget/ytsave/session"
	"github.com/ytget/ytsave/types"
	"github.com/ytget/ytsave/youtube/stream"
)

const (
	homePage = "<html><script>var k={\"INNERTUBE_API_KEY\":\"k1\",\"INNERTUBE_CLIENT_VERSION\":\"2.20250101.00.00\"};" +
		"\nytcfg.set({\"INNERTUBE_CONTEXT\":{\"client\":{\"visitorData\":\"dmlzaXRvcg%3D%3D\"}}});" +
		"var cfg={\"jsUrl\":\"\\/s\\/player\\/t1\\/base.js\"};</script></html>"

	playerJS = `var Xy={B0:function(a){a.reverse()},x9:function(a,b){a.splice(0,b)}};` +
		`Hk=function(a){a=a.split("");Xy.B0(a,1);Xy.x9(a,1);return a.join("")};`
)

type fakeSite struct {
	srv        *httptest.Server
	video      []byte
	audio      []byte
	playerJSON string
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	f := &fakeSite{video: bytes.Repeat([]byte("v"), 5000), audio: bytes.Repeat([]byte("a"), 3000)}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(homePage))
	})
	mux.HandleFunc("/s/player/t1/base.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(playerJS))
	})
	mux.HandleFunc("/youtubei/v1/player", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(f.playerJSON))
	})
	mux.HandleFunc("/media/18", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "v.mp4", time.Time{}, bytes.NewReader(f.video))
	})
	mux.HandleFunc("/media/140", func(w http.ResponseWriter, r *http.Request) {
		// "xyz" reversed is "zyx", spliced by one is "yx".
		if r.URL.Query().Get("sig") != "yx" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.ServeContent(w, r, "a.m4a", time.Time{}, bytes.NewReader(f.audio))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	cipherURL := url.QueryEscape(f.srv.URL + "/media/140")
	f.playerJSON = fmt.Sprintf(`{
  "playabilityStatus": {"status": "OK"},
  "videoDetails": {"videoId": "dQw4w9WgXcQ", "title": "Test Video", "author": "Tester", "lengthSeconds": "42"},
  "streamingData": {
    "formats": [{"itag": 18, "url": "%s/media/18", "mimeType": "video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"", "qualityLabel": "360p", "bitrate": 500000, "audioQuality": "AUDIO_QUALITY_LOW"}],
    "adaptiveFormats": [{"itag": 140, "signatureCipher": "s=xyz&sp=sig&url=%s", "mimeType": "audio/mp4; codecs=\"mp4a.40.2\"", "bitrate": 130000, "audioChannels": 2}]
  }
}`, f.srv.URL, cipherURL)
	return f
}

func (f *fakeSite) options() Options {
	return Options{
		HTTP:    client.NewWith(client.Config{Timeout: 5 * time.Second, Retries: 1}),
		BaseURL: f.srv.URL,
		Stream:  stream.Options{ChunkSize: 1024},
	}
}

func readAll(t *testing.T, st session.Stream) []byte {
	t.Helper()
	defer st.Close()
	var out bytes.Buffer
	for {
		chunk, err := st.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out.Bytes()
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out.Write(chunk)
	}
}

func TestSessionVideoAudio(t *testing.T) {
	site := newFakeSite(t)
	ctx := context.Background()
	s, err := NewSession(ctx, site.options())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	info, err := s.BasicInfo(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("BasicInfo: %v", err)
	}
	if info.Title != "Test Video" || info.Author != "Tester" || info.Duration != 42 || len(info.Formats) != 2 {
		t.Fatalf("unexpected info: %+v", info)
	}

	f, err := s.SelectFormat(ctx, info, types.VideoAudio)
	if err != nil || f.Itag != 18 {
		t.Fatalf("SelectFormat = %+v, %v", f, err)
	}
	st, err := s.OpenStream(ctx, info, f)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if got := readAll(t, st); !bytes.Equal(got, site.video) {
		t.Fatalf("video bytes mismatch: %d", len(got))
	}
}

func TestSessionAudioNeedsDecipher(t *testing.T) {
	site := newFakeSite(t)
	ctx := context.Background()
	s, err := NewSession(ctx, site.options())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	info, err := s.BasicInfo(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("BasicInfo: %v", err)
	}
	f, err := s.SelectFormat(ctx, info, types.Audio)
	if err != nil || f.Itag != 140 {
		t.Fatalf("SelectFormat = %+v, %v", f, err)
	}
	st, err := s.OpenStream(ctx, info, f)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if got := readAll(t, st); !bytes.Equal(got, site.audio) {
		t.Fatalf("audio bytes mismatch: %d", len(got))
	}
}

func TestSessionPlayability(t *testing.T) {
	site := newFakeSite(t)
	site.playerJSON = `{"playabilityStatus": {"status": "LOGIN_REQUIRED", "reason": "This video is private"}}`
	ctx := context.Background()
	s, err := NewSession(ctx, site.options())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := s.BasicInfo(ctx, "dQw4w9WgXcQ"); !errors.Is(err, errs.ErrPrivate) {
		t.Fatalf("expected ErrPrivate, got %v", err)
	}
}

func TestFactoryBootstrapFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>no config</html>"))
	}))
	defer srv.Close()

	f := Factory(Options{
		HTTP:    client.NewWith(client.Config{Timeout: 5 * time.Second, Retries: 1}),
		BaseURL: srv.URL,
	})
	if _, err := f(context.Background()); err == nil {
		t.Fatal("expected bootstrap error")
	}
}
