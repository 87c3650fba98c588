// Package stream reads a media URL as a sequence of ranged HTTP chunks.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/ytsave/errs"
	"github.com/ytget/ytsave/internal/logger"
	"github.com/ytget/ytsave/session"
)

const (
	defaultChunkSizeBytes  = 1 << 20 // 1MB
	defaultMaxRetries      = 3       // chunk retries
	initialBackoffDuration = 200 * time.Millisecond
	maxBackoffDuration     = 3 * time.Second

	headerRange          = "Range"
	headerContentRange   = "Content-Range"
	headerContentLength  = "Content-Length"
	headerUserAgent      = "User-Agent"
	headerAccept         = "Accept"
	headerAcceptLanguage = "Accept-Language"
	headerAcceptEncoding = "Accept-Encoding"
	headerCacheControl   = "Cache-Control"

	userAgentValue = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
)

// Options tune chunking and pacing. Zero values use defaults.
type Options struct {
	ChunkSize  int64
	MaxRetries int
	// RateLimit caps throughput in bytes per second; 0 disables it.
	RateLimit int64
	UserAgent string
}

// Stream yields the bytes of a remote media file in order.
// When the total size is known it issues one ranged GET per chunk;
// otherwise it reads a single plain GET body chunk by chunk.
type Stream struct {
	client *http.Client
	url    string
	opts   Options
	log    *logger.ComponentLogger

	total  int64
	offset int64
	body   io.ReadCloser
	done   bool
	err    error
}

// Open probes the size of rawURL and prepares a stream over it.
// A probe rejected by the server (4xx) fails immediately.
func Open(ctx context.Context, client *http.Client, rawURL string, opts Options) (*Stream, error) {
	if client == nil {
		client = &http.Client{}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSizeBytes
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.UserAgent == "" {
		opts.UserAgent = userAgentValue
	}
	s := &Stream{
		client: client,
		url:    rawURL,
		opts:   opts,
		log:    logger.WithComponent(logger.ComponentStream),
	}

	total, err := s.detectTotalSize(ctx)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("Could not determine total size, streaming without ranges", map[string]interface{}{
			"error": err,
		})
	}
	s.total = total
	s.log.Debug("Stream opened", map[string]interface{}{
		"total":      total,
		"chunk_size": opts.ChunkSize,
	})
	return s, nil
}

// Size returns the total size in bytes, or 0 when unknown.
func (s *Stream) Size() int64 {
	return s.total
}

// Next returns the next chunk, or io.EOF after the last one.
func (s *Stream) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.body != nil || s.total <= 0 {
		return s.nextFromBody(ctx)
	}
	if s.offset >= s.total {
		s.done = true
		return nil, io.EOF
	}

	start := s.offset
	end := start + s.opts.ChunkSize - 1
	if end >= s.total {
		end = s.total - 1
	}

	data, err := s.fetchRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if data == nil {
		// Server ignored the range and sent the whole body.
		return s.nextFromBody(ctx)
	}
	s.offset += int64(len(data))
	s.sleepForRate(ctx, int64(len(data)))
	return data, nil
}

// Close releases the open body, if any.
func (s *Stream) Close() error {
	s.done = true
	if s.body != nil {
		err := s.body.Close()
		s.body = nil
		return err
	}
	return nil
}

// fetchRange downloads bytes [start, end] with bounded retries. It returns
// nil data and keeps the body open when the server answers 200 at offset 0.
func (s *Stream) fetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	want := end - start + 1
	rangeVal := fmt.Sprintf("bytes=%d-%d", start, end)

	var lastErr error
	backoff := initialBackoffDuration
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			s.log.Debug("Retrying chunk", map[string]interface{}{
				"range":   rangeVal,
				"attempt": attempt + 1,
				"error":   lastErr,
			})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoffDuration {
				backoff = maxBackoffDuration
			}
		}

		req, err := s.newRequest(ctx, http.MethodGet)
		if err != nil {
			return nil, err
		}
		req.Header.Set(headerRange, rangeVal)

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusPartialContent:
			data, err := io.ReadAll(io.LimitReader(resp.Body, want))
			_ = resp.Body.Close()
			if err == nil && int64(len(data)) == want {
				return data, nil
			}
			if err == nil {
				err = fmt.Errorf("short chunk: got %d of %d bytes", len(data), want)
			}
			lastErr = err
		case resp.StatusCode == http.StatusOK && start == 0:
			s.body = resp.Body
			return nil, nil
		default:
			_ = resp.Body.Close()
			lastErr = newStatusError(resp.StatusCode)
		}
	}
	return nil, fmt.Errorf("download chunk %s failed: %w", rangeVal, lastErr)
}

// nextFromBody reads the next chunk from a plain GET body.
func (s *Stream) nextFromBody(ctx context.Context) ([]byte, error) {
	if s.body == nil {
		req, err := s.newRequest(ctx, http.MethodGet)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("stream request failed: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, newStatusError(resp.StatusCode)
		}
		s.body = resp.Body
	}

	buf := make([]byte, s.opts.ChunkSize)
	n, err := session.ReadChunk(s.body, buf)
	s.offset += int64(n)
	if err == io.EOF && s.total > 0 && s.offset < s.total {
		err = fmt.Errorf("body ended at %d of %d bytes: %w", s.offset, s.total, io.ErrUnexpectedEOF)
	} else if err != nil && err != io.EOF {
		err = fmt.Errorf("failed to read response body: %w", err)
	}
	switch {
	case err == nil:
		s.sleepForRate(ctx, int64(n))
		return buf, nil
	case err == io.EOF:
		s.done = true
		if n == 0 {
			return nil, io.EOF
		}
		return buf[:n], nil
	default:
		// Bytes read before the failure are delivered first.
		s.err = err
		if n > 0 {
			return buf[:n], nil
		}
		return nil, err
	}
}

func (s *Stream) newRequest(ctx context.Context, method string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerUserAgent, s.opts.UserAgent)
	req.Header.Set(headerAccept, "*/*")
	req.Header.Set(headerAcceptEncoding, "identity")
	req.Header.Set(headerCacheControl, "no-cache")
	if !isGoogleVideoHost(s.url) {
		req.Header.Set(headerAcceptLanguage, "en-US,en;q=0.9")
	}
	return req, nil
}

func isGoogleVideoHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h := strings.ToLower(u.Hostname())
	return strings.HasSuffix(h, ".googlevideo.com") || h == "googlevideo.com"
}

// detectTotalSize tries HEAD first, then GET range 0-1 to infer total size.
// googlevideo hosts skip HEAD.
func (s *Stream) detectTotalSize(ctx context.Context) (int64, error) {
	if !isGoogleVideoHost(s.url) {
		req, err := s.newRequest(ctx, http.MethodHead)
		if err != nil {
			return 0, err
		}
		resp, err := s.client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if v, ok := sizeFromHeaders(resp.Header); ok {
					return v, nil
				}
			}
		}
	}

	req, err := s.newRequest(ctx, http.MethodGet)
	if err != nil {
		return 0, err
	}
	req.Header.Set(headerRange, "bytes=0-1")
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, newStatusError(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusPartialContent {
		if v, ok := totalFromContentRange(resp.Header.Get(headerContentRange)); ok {
			return v, nil
		}
		return 0, errors.New("cannot determine total size")
	}
	if v, ok := sizeFromHeaders(resp.Header); ok {
		return v, nil
	}
	return 0, errors.New("cannot determine total size")
}

func sizeFromHeaders(h http.Header) (int64, bool) {
	if v, ok := totalFromContentRange(h.Get(headerContentRange)); ok {
		return v, true
	}
	if cl := h.Get(headerContentLength); cl != "" {
		if v, err := strconv.ParseInt(cl, 10, 64); err == nil && v > 0 {
			return v, true
		}
	}
	return 0, false
}

// totalFromContentRange parses "bytes a-b/total".
func totalFromContentRange(cr string) (int64, bool) {
	parts := strings.Split(cr, "/")
	if len(parts) != 2 {
		return 0, false
	}
	v, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// sleepForRate enforces a simple rate limit based on bytes just delivered.
func (s *Stream) sleepForRate(ctx context.Context, written int64) {
	if s.opts.RateLimit <= 0 || written <= 0 {
		return
	}
	dur := time.Duration(int64(time.Second) * written / s.opts.RateLimit)
	if dur <= 0 {
		return
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type statusError struct {
	code int
}

func newStatusError(code int) error {
	se := &statusError{code: code}
	if code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", errs.ErrRateLimited, se)
	}
	return se
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP status %d", e.code)
}
