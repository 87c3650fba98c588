package cipher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ytget/ytsave/internal/logger"
	"github.com/ytget/ytsave/pkg/client"
)

const (
	// DefaultBaseURL is the origin used for watch pages and relative player paths.
	DefaultBaseURL = "https://www.youtube.com"
	// PlayerJSTTL is how long a downloaded player script stays cached.
	PlayerJSTTL = 10 * time.Minute

	playerJSURLRe   = `"jsUrl":"([^"]+)"`
	jsURLGroupIndex = 1 // capture group index for jsUrl
	watchPath       = "/watch?v="
)

var playerJSURLRegex = regexp.MustCompile(playerJSURLRe)

type playerJSCacheEntry struct {
	body  string
	plan  plan
	expAt time.Time
}

// Player fetches player scripts and deciphers signatures with them.
// It is safe for concurrent use.
type Player struct {
	client  *client.Client
	baseURL string
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]*playerJSCacheEntry
}

// NewPlayer returns a Player using c for all requests.
func NewPlayer(c *client.Client) *Player {
	if c == nil {
		c = client.New()
	}
	return &Player{
		client:  c,
		baseURL: DefaultBaseURL,
		ttl:     PlayerJSTTL,
		now:     time.Now,
		cache:   make(map[string]*playerJSCacheEntry),
	}
}

// WithBaseURL overrides the origin, mostly for tests.
func (p *Player) WithBaseURL(base string) *Player {
	p.baseURL = strings.TrimRight(base, "/")
	return p
}

// URL finds the player.js URL by requesting the watch page of videoID
// and scraping the "jsUrl" field from the response.
func (p *Player) URL(ctx context.Context, videoID string) (string, error) {
	log := logger.WithComponent(logger.ComponentCipher)

	body, err := p.get(ctx, p.baseURL+watchPath+url.QueryEscape(videoID))
	if err != nil {
		return "", wrapError(ErrCodePlayerJSDownload, "failed to fetch video page", err)
	}

	matches := playerJSURLRegex.FindStringSubmatch(body)
	if len(matches) <= jsURLGroupIndex || matches[jsURLGroupIndex] == "" {
		return "", NewError(ErrCodePlayerJSNotFound, "could not find player js url in video page", videoID)
	}

	jsURL := strings.ReplaceAll(matches[jsURLGroupIndex], `\/`, `/`)
	if strings.HasPrefix(jsURL, "/") {
		jsURL = p.baseURL + jsURL
	}
	log.Debug("Found player.js", map[string]interface{}{
		"video_id": videoID,
		"url":      jsURL,
	})
	return jsURL, nil
}

// Decipher applies the transform plan found in the player script at
// playerJSURL to signature.
func (p *Player) Decipher(ctx context.Context, playerJSURL, signature string) (string, error) {
	if signature == "" {
		return "", NewError(ErrCodeSignatureInvalid, "empty signature")
	}
	pl, err := p.plan(ctx, playerJSURL)
	if err != nil {
		return "", err
	}
	return pl.apply(signature), nil
}

func (p *Player) plan(ctx context.Context, playerJSURL string) (plan, error) {
	log := logger.WithComponent(logger.ComponentCipher)

	entry, err := p.script(ctx, playerJSURL)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if entry.plan != nil {
		pl := entry.plan
		p.mu.Unlock()
		return pl, nil
	}
	p.mu.Unlock()

	start := time.Now()
	pl, err := extractPlan(entry.body)
	if err != nil {
		log.Warn("Failed to extract decipher plan", map[string]interface{}{
			"url":   playerJSURL,
			"error": err,
		})
		return nil, err
	}
	log.Debug("Extracted decipher plan", map[string]interface{}{
		"url":      playerJSURL,
		"plan":     describe(pl),
		"duration": time.Since(start).String(),
	})

	p.mu.Lock()
	entry.plan = pl
	p.mu.Unlock()
	return pl, nil
}

func (p *Player) script(ctx context.Context, playerJSURL string) (*playerJSCacheEntry, error) {
	p.mu.Lock()
	entry, ok := p.cache[playerJSURL]
	if ok && p.now().Before(entry.expAt) {
		p.mu.Unlock()
		return entry, nil
	}
	p.mu.Unlock()

	body, err := p.get(ctx, playerJSURL)
	if err != nil {
		return nil, wrapError(ErrCodePlayerJSDownload, "failed to download player.js", err)
	}

	entry = &playerJSCacheEntry{body: body, expAt: p.now().Add(p.ttl)}
	p.mu.Lock()
	p.cache[playerJSURL] = entry
	p.mu.Unlock()
	return entry, nil
}

func (p *Player) get(ctx context.Context, rawURL string) (string, error) {
	resp, err := p.client.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: HTTP status %d", rawURL, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
