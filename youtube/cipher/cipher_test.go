package cipher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ytget/ytsave/errs"
	"github.com/ytget/ytsave/pkg/client"
)

func newPlayerServer(t *testing.T, js string, jsHits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("v") == "nojsurl0000" {
			_, _ = w.Write([]byte(`<html>nothing here</html>`))
			return
		}
		_, _ = w.Write([]byte(`<script>var cfg={"jsUrl":"\/s\/player\/abc\/base.js"};</script>`))
	})
	mux.HandleFunc("/s/player/abc/base.js", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(jsHits, 1)
		_, _ = w.Write([]byte(js))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient() *client.Client {
	return client.NewWith(client.Config{Timeout: 5 * time.Second, Retries: 1})
}

func TestPlayerURL(t *testing.T) {
	var hits int32
	srv := newPlayerServer(t, helperJS, &hits)
	p := NewPlayer(testClient()).WithBaseURL(srv.URL)

	got, err := p.URL(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if want := srv.URL + "/s/player/abc/base.js"; got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}

	_, err = p.URL(context.Background(), "nojsurl0000")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlayerDecipherCachesScript(t *testing.T) {
	var hits int32
	srv := newPlayerServer(t, helperJS, &hits)
	p := NewPlayer(testClient()).WithBaseURL(srv.URL)
	jsURL := srv.URL + "/s/player/abc/base.js"

	for i := 0; i < 3; i++ {
		out, err := p.Decipher(context.Background(), jsURL, "abcdefghij")
		if err != nil {
			t.Fatalf("Decipher: %v", err)
		}
		if out != "dgfeacbh" {
			t.Fatalf("Decipher = %q", out)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("player.js fetched %d times, want 1", got)
	}
}

func TestPlayerCacheExpires(t *testing.T) {
	var hits int32
	srv := newPlayerServer(t, helperJS, &hits)
	p := NewPlayer(testClient()).WithBaseURL(srv.URL)
	now := time.Now()
	p.now = func() time.Time { return now }
	jsURL := srv.URL + "/s/player/abc/base.js"

	if _, err := p.Decipher(context.Background(), jsURL, "abc"); err != nil {
		t.Fatalf("Decipher: %v", err)
	}
	now = now.Add(PlayerJSTTL + time.Second)
	if _, err := p.Decipher(context.Background(), jsURL, "abc"); err != nil {
		t.Fatalf("Decipher: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("player.js fetched %d times, want 2", got)
	}
}

func TestPlayerDecipherErrors(t *testing.T) {
	var hits int32
	srv := newPlayerServer(t, `function f(a){return a}`, &hits)
	p := NewPlayer(testClient()).WithBaseURL(srv.URL)

	if _, err := p.Decipher(context.Background(), srv.URL+"/s/player/abc/base.js", ""); !IsInvalid(err) {
		t.Fatalf("empty signature: %v", err)
	}

	_, err := p.Decipher(context.Background(), srv.URL+"/s/player/abc/base.js", "abc")
	if !errors.Is(err, errs.ErrCipherFailed) || codeOf(err) != ErrCodeSignatureNotFound {
		t.Fatalf("expected signature not found, got %v", err)
	}

	_, err = p.Decipher(context.Background(), srv.URL+"/missing.js", "abc")
	if codeOf(err) != ErrCodePlayerJSDownload {
		t.Fatalf("expected download failure, got %v", err)
	}
}
