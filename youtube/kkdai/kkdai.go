// Package kkdai is a session.Session backed by github.com/kkdai/youtube/v2.
package kkdai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	yt "github.com/kkdai/youtube/v2"
	"github.com/ytget/ytsave/errs"
	"github.com/ytget/ytsave/internal/logger"
	"github.com/ytget/ytsave/internal/mimeext"
	"github.com/ytget/ytsave/session"
	"github.com/ytget/ytsave/types"
	"github.com/ytget/ytsave/youtube/formats"
)

// Options configures the kkdai backend.
type Options struct {
	HTTPClient *http.Client
	// ChunkSize is the size of each chunk handed to the downloader.
	ChunkSize int
}

// Session adapts a kkdai client. Videos fetched by BasicInfo are kept so
// OpenStream can hand the original format back to the library.
type Session struct {
	client    *yt.Client
	chunkSize int

	mu     sync.Mutex
	videos map[string]*yt.Video
}

var _ session.Session = (*Session)(nil)

// New returns a Session. It does no network I/O.
func New(opts Options) *Session {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Session{
		client:    &yt.Client{HTTPClient: hc},
		chunkSize: opts.ChunkSize,
		videos:    make(map[string]*yt.Video),
	}
}

// Factory returns a session.Factory for the kkdai backend.
func Factory(opts Options) session.Factory {
	return func(context.Context) (session.Session, error) {
		return New(opts), nil
	}
}

// BasicInfo fetches metadata and formats through the library.
func (s *Session) BasicInfo(ctx context.Context, videoID string) (*types.VideoInfo, error) {
	log := logger.WithComponent(logger.ComponentSession)

	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, mapError(err)
	}
	s.mu.Lock()
	s.videos[videoID] = video
	s.mu.Unlock()

	info := &types.VideoInfo{
		ID:       videoID,
		Title:    video.Title,
		Author:   video.Author,
		Duration: int(video.Duration.Seconds()),
		Formats:  make([]types.Format, 0, len(video.Formats)),
	}
	for i := range video.Formats {
		info.Formats = append(info.Formats, convertFormat(&video.Formats[i]))
	}
	log.Debug("Fetched video through kkdai", map[string]interface{}{
		"video_id": videoID,
		"formats":  len(info.Formats),
	})
	return info, nil
}

// SelectFormat applies the same selection policy as the InnerTube backend.
func (s *Session) SelectFormat(_ context.Context, info *types.VideoInfo, kind types.MediaKind) (*types.Format, error) {
	return formats.SelectBest(info.Formats, kind)
}

// OpenStream opens the library stream for f and chunks it.
func (s *Session) OpenStream(ctx context.Context, info *types.VideoInfo, f *types.Format) (session.Stream, error) {
	s.mu.Lock()
	video := s.videos[info.ID]
	s.mu.Unlock()
	if video == nil {
		var err error
		if video, err = s.client.GetVideoContext(ctx, info.ID); err != nil {
			return nil, mapError(err)
		}
	}

	format := findFormat(video.Formats, f)
	if format == nil {
		return nil, fmt.Errorf("%w: itag %d not in video formats", errs.ErrNoFormat, f.Itag)
	}
	rc, size, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, mapError(err)
	}
	return session.NewReaderStream(rc, size, s.chunkSize), nil
}

func convertFormat(f *yt.Format) types.Format {
	base := mimeext.BaseType(f.MimeType)
	return types.Format{
		Itag:            f.ItagNo,
		URL:             f.URL,
		Quality:         f.QualityLabel,
		MimeType:        f.MimeType,
		Bitrate:         f.Bitrate,
		Size:            int64(f.ContentLength),
		SignatureCipher: f.Cipher,
		HasVideo:        f.Width > 0 || f.Height > 0 || strings.HasPrefix(base, "video/"),
		HasAudio:        f.AudioChannels > 0 || strings.HasPrefix(base, "audio/"),
	}
}

func findFormat(list yt.FormatList, want *types.Format) *yt.Format {
	for i := range list {
		if list[i].ItagNo == want.Itag && list[i].MimeType == want.MimeType {
			return &list[i]
		}
	}
	for i := range list {
		if list[i].ItagNo == want.Itag {
			return &list[i]
		}
	}
	return nil
}

// mapError attaches an errs cause to library errors where one applies.
func mapError(err error) error {
	var cause error
	var playability *yt.ErrPlayabiltyStatus
	var status yt.ErrUnexpectedStatusCode
	switch {
	case errors.Is(err, yt.ErrVideoPrivate):
		cause = errs.ErrPrivate
	case errors.Is(err, yt.ErrLoginRequired):
		cause = errs.ErrAgeRestricted
	case errors.Is(err, yt.ErrCipherNotFound):
		cause = errs.ErrCipherFailed
	case errors.As(err, &status) && int(status) == http.StatusTooManyRequests:
		cause = errs.ErrRateLimited
	case errors.As(err, &playability):
		cause = errs.ErrVideoUnavailable
		if strings.Contains(strings.ToLower(playability.Reason), "country") {
			cause = errs.ErrGeoBlocked
		}
	case errors.Is(err, yt.ErrNotPlayableInEmbed):
		cause = errs.ErrVideoUnavailable
	default:
		return err
	}
	return fmt.Errorf("%w: %w", cause, err)
}
