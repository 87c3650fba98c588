// Package innertube talks to the YouTube InnerTube API.
package innertube

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/ytget/ytsave/errs"
	"github.com/ytget/ytsave/internal/logger"
)

const (
	// DefaultBaseURL is the origin for every InnerTube request.
	DefaultBaseURL = "https://www.youtube.com"

	playerPath            = "/youtubei/v1/player"
	userAgentValue        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
	headerContentTypeJSON = "application/json"
	clientNameWEB         = "WEB"
	defaultClientVersion  = "2.20250312.04.00"
	visitorIDMaxAge       = 10 * time.Hour
	maxBodySnippet        = 256
)

var (
	apiKeyRe    = regexp.MustCompile(`"INNERTUBE_API_KEY":"([^"]+)"`)
	clientVerRe = regexp.MustCompile(`"INNERTUBE_CLIENT_VERSION":"([^"]+)"`)

	// ErrAPIKeyNotFound is returned when no page exposes an InnerTube API key.
	ErrAPIKeyNotFound = errors.New("innertube: api key not found after multiple attempts")
)

// clientCodeFromName returns X-YouTube-Client-Name numeric code for known clients
func clientCodeFromName(name string) string {
	switch strings.ToUpper(name) {
	case "WEB":
		return "1"
	case "MWEB":
		return "2"
	case "ANDROID":
		return "3"
	case "IOS":
		return "5"
	case "TVHTML5":
		return "7"
	case "WEB_EMBEDDED_PLAYER":
		return "56"
	case "WEB_CREATOR":
		return "62"
	case "WEB_REMIX":
		return "67"
	case "TVHTML5_SIMPLY":
		return "75"
	case "TVHTML5_SIMPLY_EMBEDDED_PLAYER":
		return "85"
	default:
		return ""
	}
}

// Client for interacting with the YouTube InnerTube API.
// It is safe for concurrent use once Bootstrap has succeeded.
type Client struct {
	HTTPClient *http.Client
	baseURL    string
	clientName string

	mu        sync.Mutex
	apiKey    string
	clientVer string
	visitorID struct {
		value   string
		updated time.Time
	}
}

// New creates a new InnerTube client. A nil httpClient gets a 30s timeout.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{HTTPClient: httpClient, baseURL: DefaultBaseURL, clientName: clientNameWEB}
}

// WithClient overrides InnerTube client name/version to shape playback URLs.
func (c *Client) WithClient(name, version string) *Client {
	if strings.TrimSpace(name) != "" {
		c.clientName = name
	}
	if strings.TrimSpace(version) != "" {
		c.clientVer = version
	}
	return c
}

// WithBaseURL points the client at another origin, mostly for tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// PlayerResponse represents a response from the InnerTube /player endpoint.
type PlayerResponse struct {
	StreamingData struct {
		Formats         []any `json:"formats"`
		AdaptiveFormats []any `json:"adaptiveFormats"`
	} `json:"streamingData"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// PlayabilityError maps a non-OK playability status onto an errs cause.
// It returns nil when the video is playable.
func (r *PlayerResponse) PlayabilityError() error {
	status := strings.ToUpper(r.PlayabilityStatus.Status)
	if status == "" || status == "OK" {
		return nil
	}
	reason := r.PlayabilityStatus.Reason
	lower := strings.ToLower(reason)

	var cause error
	switch {
	case strings.Contains(lower, "private"):
		cause = errs.ErrPrivate
	case status == "AGE_CHECK_REQUIRED" || strings.Contains(lower, "confirm your age") || strings.Contains(lower, "age-restricted"):
		cause = errs.ErrAgeRestricted
	case strings.Contains(lower, "country") || strings.Contains(lower, "region"):
		cause = errs.ErrGeoBlocked
	case strings.Contains(lower, "not a bot"):
		cause = errs.ErrRateLimited
	case status == "LOGIN_REQUIRED":
		cause = errs.ErrPrivate
	default:
		cause = errs.ErrVideoUnavailable
	}
	if reason == "" {
		reason = status
	}
	return fmt.Errorf("%w: %s", cause, reason)
}

// Bootstrap scrapes the API key and client version and refreshes the visitor
// id. It is idempotent; a later call only retries what is still missing.
func (c *Client) Bootstrap(ctx context.Context, videoID string) error {
	log := logger.WithComponent(logger.ComponentInnerTube)

	c.ensureKey(ctx, videoID)

	c.mu.Lock()
	key := c.apiKey
	c.mu.Unlock()
	if key == "" {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrAPIKeyNotFound
	}
	if _, err := c.getVisitorID(ctx); err != nil {
		// Requests still work without a visitor id, only less reliably.
		log.Debug("Visitor id unavailable", map[string]interface{}{"error": err})
	}
	return nil
}

func (c *Client) ensureKey(ctx context.Context, videoID string) {
	c.mu.Lock()
	done := c.apiKey != "" && c.clientVer != ""
	c.mu.Unlock()
	if done {
		return
	}

	sources := []string{c.baseURL}
	if videoID != "" {
		sources = append([]string{c.baseURL + "/watch?v=" + videoID}, sources...)
	}
	sources = append(sources, c.baseURL+"/feed/trending")

	for _, source := range sources {
		if ctx.Err() != nil {
			break
		}
		body, err := c.fetchPage(ctx, source)
		if err != nil {
			continue
		}

		c.mu.Lock()
		if c.apiKey == "" {
			if m := apiKeyRe.FindSubmatch(body); len(m) == 2 {
				c.apiKey = string(m[1])
			}
		}
		if c.clientVer == "" {
			if m := clientVerRe.FindSubmatch(body); len(m) == 2 {
				c.clientVer = string(m[1])
			}
		}
		done = c.apiKey != "" && c.clientVer != ""
		c.mu.Unlock()
		if done {
			break
		}
	}

	c.mu.Lock()
	if c.clientVer == "" {
		c.clientVer = defaultClientVersion
	}
	c.mu.Unlock()
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgentValue)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP status %d", pageURL, resp.StatusCode)
	}
	return readBody(resp)
}

// GetPlayerResponse fetches video data for the provided video ID using the
// InnerTube /player endpoint. Bootstrap is called first if needed.
func (c *Client) GetPlayerResponse(ctx context.Context, videoID string) (*PlayerResponse, error) {
	log := logger.WithComponent(logger.ComponentInnerTube)

	if err := c.Bootstrap(ctx, videoID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	apiKey, ver := c.apiKey, c.clientVer
	c.mu.Unlock()
	name := c.clientName
	// If a custom client name is set and version missing, use minimal default
	if name != clientNameWEB && ver == defaultClientVersion {
		ver = "2.0"
	}

	clientMap := map[string]any{
		"clientName":    name,
		"clientVersion": ver,
		"hl":            "en",
	}
	reqUserAgent := userAgentValue
	if strings.EqualFold(name, "ANDROID") {
		clientMap["androidSdkVersion"] = 30
		clientMap["osName"] = "Android"
		clientMap["osVersion"] = "11"
		ua := "com.google.android.youtube/" + ver + " (Linux; U; Android 11) gzip"
		clientMap["userAgent"] = ua
		reqUserAgent = ua
	}

	requestBody, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"client": clientMap,
		},
		"videoId":        videoID,
		"contentCheckOk": true,
		"racyCheckOk":    true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+playerPath+"?key="+apiKey, bytes.NewReader(requestBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", headerContentTypeJSON)
	req.Header.Set("User-Agent", reqUserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Referer", DefaultBaseURL+"/")
	req.Header.Set("Origin", DefaultBaseURL)
	if code := clientCodeFromName(name); code != "" {
		req.Header.Set("X-YouTube-Client-Name", code)
	}
	req.Header.Set("X-YouTube-Client-Version", ver)
	if visitorID, err := c.getVisitorID(ctx); err == nil && visitorID != "" {
		req.Header.Set("X-Goog-Visitor-Id", visitorID)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("innertube: player request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug("Player response received", map[string]interface{}{
		"video_id": videoID,
		"status":   resp.StatusCode,
		"encoding": resp.Header.Get("Content-Encoding"),
		"duration": time.Since(start).String(),
	})

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: player endpoint returned 429", errs.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("innertube: player endpoint returned HTTP %d", resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("innertube: failed to read response body: %w", err)
	}

	var playerResponse PlayerResponse
	if err := json.Unmarshal(body, &playerResponse); err != nil {
		log.Trace("Unparsable player response", map[string]interface{}{"body": snippet(body)})
		return nil, fmt.Errorf("innertube: failed to parse response: %w", err)
	}
	return &playerResponse, nil
}

// readBody reads resp.Body, undoing any Content-Encoding the server applied.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "bzip2":
		reader = bzip2.NewReader(resp.Body)
	}
	return io.ReadAll(reader)
}

func snippet(b []byte) string {
	if len(b) > maxBodySnippet {
		return string(b[:maxBodySnippet]) + "..."
	}
	return string(b)
}

// getVisitorID returns the current visitor ID, refreshing it if necessary
func (c *Client) getVisitorID(ctx context.Context) (string, error) {
	c.mu.Lock()
	value, updated := c.visitorID.value, c.visitorID.updated
	c.mu.Unlock()
	if value != "" && time.Since(updated) <= visitorIDMaxAge {
		return value, nil
	}
	if err := c.refreshVisitorID(ctx); err != nil {
		return value, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visitorID.value, nil
}

// refreshVisitorID fetches a new visitor ID from YouTube's main page
func (c *Client) refreshVisitorID(ctx context.Context) error {
	const sep = "\nytcfg.set("

	data, err := c.fetchPage(ctx, c.baseURL)
	if err != nil {
		return err
	}

	_, rest, found := strings.Cut(string(data), sep)
	if !found {
		return errors.New("visitor ID not found in YouTube response")
	}

	var value struct {
		InnertubeContext struct {
			Client struct {
				VisitorData string `json:"visitorData"`
			} `json:"client"`
		} `json:"INNERTUBE_CONTEXT"`
	}
	if err := json.NewDecoder(strings.NewReader(rest)).Decode(&value); err != nil {
		return err
	}
	visitor := strings.ReplaceAll(value.InnertubeContext.Client.VisitorData, "%3D", "=")
	if visitor == "" {
		return errors.New("visitor ID is empty")
	}

	c.mu.Lock()
	c.visitorID.value = visitor
	c.visitorID.updated = time.Now()
	c.mu.Unlock()
	return nil
}
