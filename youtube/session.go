// Package youtube composes the InnerTube, format, cipher and stream packages
// into a session.Session.
package youtube

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ytget/ytsave/internal/logger"
	"github.com/ytget/ytsave/pkg/client"
	"github.com/ytget/ytsave/session"
	"github.com/ytget/ytsave/types"
	"github.com/ytget/ytsave/youtube/cipher"
	"github.com/ytget/ytsave/youtube/formats"
	"github.com/ytget/ytsave/youtube/innertube"
	"github.com/ytget/ytsave/youtube/stream"
)

// Options configures a Session. Zero values use defaults.
type Options struct {
	HTTP          *client.Client
	ClientName    string
	ClientVersion string
	Stream        stream.Options
	// BaseURL overrides https://www.youtube.com, mostly for tests.
	BaseURL string
}

// Session is a bootstrapped InnerTube client plus the player used for
// signature deciphering.
type Session struct {
	http       *client.Client
	it         *innertube.Client
	player     *cipher.Player
	streamOpts stream.Options
}

var _ session.Session = (*Session)(nil)

// NewSession bootstraps an InnerTube client: API key, client version and
// visitor id.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	log := logger.WithComponent(logger.ComponentSession)

	hc := opts.HTTP
	if hc == nil {
		hc = client.New()
	}
	it := innertube.New(hc.HTTPClient).WithClient(opts.ClientName, opts.ClientVersion)
	player := cipher.NewPlayer(hc)
	if opts.BaseURL != "" {
		it.WithBaseURL(opts.BaseURL)
		player.WithBaseURL(opts.BaseURL)
	}
	if opts.Stream.UserAgent == "" {
		opts.Stream.UserAgent = hc.UserAgent
	}

	start := time.Now()
	if err := it.Bootstrap(ctx, ""); err != nil {
		return nil, fmt.Errorf("innertube bootstrap: %w", err)
	}
	log.Debug("Session ready", map[string]interface{}{
		"client":   opts.ClientName,
		"duration": time.Since(start).String(),
	})

	return &Session{
		http:       hc,
		it:         it,
		player:     player,
		streamOpts: opts.Stream,
	}, nil
}

// Factory returns a session.Factory building sessions from opts.
func Factory(opts Options) session.Factory {
	return func(ctx context.Context) (session.Session, error) {
		return NewSession(ctx, opts)
	}
}

// BasicInfo fetches title, author, duration and formats.
func (s *Session) BasicInfo(ctx context.Context, videoID string) (*types.VideoInfo, error) {
	pr, err := s.it.GetPlayerResponse(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if err := pr.PlayabilityError(); err != nil {
		return nil, err
	}

	info := &types.VideoInfo{
		ID:      videoID,
		Title:   pr.VideoDetails.Title,
		Author:  pr.VideoDetails.Author,
		Formats: formats.ParseFormats(pr),
	}
	if pr.VideoDetails.VideoID != "" {
		info.ID = pr.VideoDetails.VideoID
	}
	if d, err := strconv.Atoi(pr.VideoDetails.LengthSeconds); err == nil {
		info.Duration = d
	}
	return info, nil
}

// SelectFormat picks the best format of kind.
func (s *Session) SelectFormat(_ context.Context, info *types.VideoInfo, kind types.MediaKind) (*types.Format, error) {
	return formats.SelectBest(info.Formats, kind)
}

// OpenStream resolves a playable URL for f and opens a chunked stream on it.
func (s *Session) OpenStream(ctx context.Context, info *types.VideoInfo, f *types.Format) (session.Stream, error) {
	var playerJSURL string
	if formats.NeedsDecipher(*f) {
		var err error
		if playerJSURL, err = s.player.URL(ctx, info.ID); err != nil {
			return nil, err
		}
	}
	mediaURL, err := formats.ResolveURL(ctx, *f, s.player, playerJSURL)
	if err != nil {
		return nil, err
	}
	st, err := stream.Open(ctx, s.http.HTTPClient, mediaURL, s.streamOpts)
	if err != nil {
		return nil, err
	}
	return st, nil
}
