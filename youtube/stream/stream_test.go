package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ytget/ytsave/errs"
)

// mockTransport is a custom HTTP transport for testing
type mockTransport struct {
	responseStatus  int
	responseHeaders map[string]string
}

func (t *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp := &http.Response{
		StatusCode: t.responseStatus,
		Header:     make(http.Header),
		Body:       http.NoBody,
	}
	for key, value := range t.responseHeaders {
		resp.Header.Set(key, value)
	}
	return resp, nil
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// simple range-aware handler serving a fixed byte slice
func makeServer(data []byte, ranges bool, hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		rangeHdr := r.Header.Get("Range")
		start := 0
		end := len(data) - 1
		if ranges && rangeHdr != "" {
			var a, b int
			if _, err := fmt.Sscanf(rangeHdr, "bytes=%d-%d", &a, &b); err == nil {
				start = a
				if b < end {
					end = b
				}
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
			w.Header().Set("Content-Length", fmt.Sprintf("%d", end-start+1))
			w.WriteHeader(http.StatusPartialContent)
		} else {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
		}
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data[start : end+1])
	}))
}

func drain(t *testing.T, s *Stream) ([]byte, int) {
	t.Helper()
	var out bytes.Buffer
	chunks := 0
	for {
		chunk, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out.Bytes(), chunks
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		chunks++
		out.Write(chunk)
	}
}

func TestDetectTotalSize(t *testing.T) {
	tests := []struct {
		name            string
		url             string
		responseStatus  int
		responseHeaders map[string]string
		expectedSize    int64
		hasError        bool
	}{
		{
			name:            "Google Video host with Content-Range",
			url:             "https://googlevideo.com/video.mp4",
			responseStatus:  206,
			responseHeaders: map[string]string{"Content-Range": "bytes 0-1/1000000"},
			expectedSize:    1000000,
		},
		{
			name:            "Google Video host with Content-Length",
			url:             "https://googlevideo.com/video.mp4",
			responseStatus:  200,
			responseHeaders: map[string]string{"Content-Length": "500000"},
			expectedSize:    500000,
		},
		{
			name:            "Non-Google host with Content-Range",
			url:             "https://example.com/video.mp4",
			responseStatus:  206,
			responseHeaders: map[string]string{"Content-Range": "bytes 0-1/2000000"},
			expectedSize:    2000000,
		},
		{
			name:            "Non-Google host with Content-Length",
			url:             "https://example.com/video.mp4",
			responseStatus:  200,
			responseHeaders: map[string]string{"Content-Length": "750000"},
			expectedSize:    750000,
		},
		{
			name:           "No size headers",
			url:            "https://example.com/video.mp4",
			responseStatus: 200,
			hasError:       true,
		},
		{
			name:           "Forbidden",
			url:            "https://r1---sn-abc.googlevideo.com/videoplayback",
			responseStatus: 403,
			hasError:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Stream{
				client: &http.Client{Transport: &mockTransport{responseStatus: tt.responseStatus, responseHeaders: tt.responseHeaders}},
				url:    tt.url,
				opts:   Options{UserAgent: userAgentValue},
			}
			size, err := s.detectTotalSize(context.Background())
			if tt.hasError {
				if err == nil {
					t.Errorf("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if size != tt.expectedSize {
				t.Errorf("Expected size %d, got %d", tt.expectedSize, size)
			}
		})
	}
}

func TestStreamRanged(t *testing.T) {
	data := testData(2<<20 + 123)
	server := makeServer(data, true, nil)
	defer server.Close()

	s, err := Open(context.Background(), server.Client(), server.URL, Options{ChunkSize: 1 << 20})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if s.Size() != int64(len(data)) {
		t.Fatalf("Size = %d, want %d", s.Size(), len(data))
	}

	got, chunks := drain(t, s)
	if !bytes.Equal(got, data) {
		t.Fatalf("content mismatch: got %d bytes, want %d", len(got), len(data))
	}
	if chunks != 3 {
		t.Fatalf("chunks = %d, want 3", chunks)
	}
	// EOF is sticky.
	if _, err := s.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after end, got %v", err)
	}
}

func TestStreamServerIgnoresRange(t *testing.T) {
	data := testData(300000)
	server := makeServer(data, false, nil)
	defer server.Close()

	s, err := Open(context.Background(), server.Client(), server.URL, Options{ChunkSize: 100000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	got, chunks := drain(t, s)
	if !bytes.Equal(got, data) {
		t.Fatalf("content mismatch: got %d bytes", len(got))
	}
	if chunks != 3 {
		t.Fatalf("chunks = %d, want 3", chunks)
	}
}

func TestStreamRetriesTransientChunkFailure(t *testing.T) {
	data := testData(4096)
	var failed int32
	inner := makeServer(data, true, nil)
	defer inner.Close()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "bytes=2048-4095" && atomic.CompareAndSwapInt32(&failed, 0, 1) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer server.Close()

	s, err := Open(context.Background(), server.Client(), server.URL, Options{ChunkSize: 2048})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := drain(t, s)
	if !bytes.Equal(got, data) {
		t.Fatal("content mismatch after retry")
	}
	if atomic.LoadInt32(&failed) != 1 {
		t.Fatal("expected one injected failure")
	}
}

func TestStreamChunkFailureSurfaces(t *testing.T) {
	data := testData(4096)
	inner := makeServer(data, true, nil)
	defer inner.Close()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "bytes=1024-2047" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer server.Close()

	s, err := Open(context.Background(), server.Client(), server.URL, Options{ChunkSize: 1024, MaxRetries: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Next(context.Background()); err != nil {
		t.Fatalf("first chunk: %v", err)
	}
	_, err = s.Next(context.Background())
	if err == nil || !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("expected rate limited chunk error, got %v", err)
	}
}

func TestOpenRejectedProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := Open(context.Background(), server.Client(), server.URL, Options{}); err == nil {
		t.Fatal("expected error for 403 probe")
	}
}

func TestStreamBodyEndsEarly(t *testing.T) {
	s := &Stream{
		opts:  Options{ChunkSize: 4},
		total: 10,
		body:  io.NopCloser(bytes.NewReader([]byte("abcdef"))),
	}
	if chunk, err := s.Next(context.Background()); err != nil || string(chunk) != "abcd" {
		t.Fatalf("first chunk = %q, %v", chunk, err)
	}
	if chunk, err := s.Next(context.Background()); err != nil || string(chunk) != "ef" {
		t.Fatalf("second chunk = %q, %v", chunk, err)
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("error should persist, got %v", err)
	}
}

func TestStreamBodyReadErrorKeepsBytes(t *testing.T) {
	reset := errors.New("connection reset by peer")
	s := &Stream{
		opts: Options{ChunkSize: 8},
		body: io.NopCloser(io.MultiReader(bytes.NewReader([]byte("abc")), &errReader{reset})),
	}
	if chunk, err := s.Next(context.Background()); err != nil || string(chunk) != "abc" {
		t.Fatalf("first chunk = %q, %v", chunk, err)
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, reset) {
		t.Fatalf("expected reset error, got %v", err)
	}
}

type errReader struct{ err error }

func (r *errReader) Read([]byte) (int, error) { return 0, r.err }

func TestStreamConnectionDroppedWithoutSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte("partial-data"))
		w.(http.Flusher).Flush()
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer server.Close()

	s, err := Open(context.Background(), server.Client(), server.URL, Options{ChunkSize: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Size() != 0 {
		t.Fatalf("size = %d, want unknown", s.Size())
	}

	var got []byte
	for i := 0; i < 10; i++ {
		chunk, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			t.Fatalf("truncated body reported as clean end after %q", got)
		}
		if err != nil {
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
			}
			break
		}
		got = append(got, chunk...)
	}
	if string(got) != "partial-data" {
		t.Fatalf("delivered %q", got)
	}
}

func TestStreamCancelled(t *testing.T) {
	data := testData(1024)
	server := makeServer(data, true, nil)
	defer server.Close()

	s, err := Open(context.Background(), server.Client(), server.URL, Options{ChunkSize: 256})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSleepForRate(t *testing.T) {
	tests := []struct {
		name        string
		rateLimit   int64
		written     int64
		expectSleep bool
	}{
		{"No rate limit", 0, 1000, false},
		{"Negative rate limit", -100, 1000, false},
		{"No bytes written", 1000, 0, false},
		{"Negative bytes written", 1000, -100, false},
		{"Normal rate limiting", 100000, 1000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Stream{opts: Options{RateLimit: tt.rateLimit}}
			start := time.Now()
			s.sleepForRate(context.Background(), tt.written)
			duration := time.Since(start)
			if tt.expectSleep && duration < 5*time.Millisecond {
				t.Errorf("Expected sleep, got %v", duration)
			}
			if !tt.expectSleep && duration > 5*time.Millisecond {
				t.Errorf("Expected no sleep, got %v", duration)
			}
		})
	}
}

func TestIsGoogleVideoHost(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"https://googlevideo.com/video.mp4", true},
		{"https://r1---sn-4g5e6n7s.googlevideo.com/video.mp4", true},
		{"https://example.com/video.mp4", false},
		{"https://fakegooglevideo.com/video.mp4", false},
		{"https://googlevideo-fake.com/video.mp4", false},
		{"", false},
		{"invalid-url", false},
		{"https://googlevideo.com:443/video.mp4", true},
		{"https://r1---sn-4g5e6n7s.googlevideo.com:443/video.mp4", true},
		{"http://googlevideo.com/video.mp4", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := isGoogleVideoHost(tt.url); got != tt.expected {
				t.Errorf("Expected %v, got %v for URL: %s", tt.expected, got, tt.url)
			}
		})
	}
}
