// Package session defines the capabilities the downloader needs from a video
// platform client and a lazily initialized, shared handle to one.
package session

import (
	"context"

	"github.com/ytget/ytsave/types"
)

// Session is an authenticated handle to the video platform.
type Session interface {
	// BasicInfo fetches title, author, duration and formats for an identifier.
	BasicInfo(ctx context.Context, videoID string) (*types.VideoInfo, error)
	// SelectFormat picks the best format of the given kind from info.
	SelectFormat(ctx context.Context, info *types.VideoInfo, kind types.MediaKind) (*types.Format, error)
	// OpenStream opens a forward-only byte stream for a selected format.
	OpenStream(ctx context.Context, info *types.VideoInfo, format *types.Format) (Stream, error)
}

// Stream yields the media bytes of one format in order.
// Next returns io.EOF once the stream is exhausted; any other error means the
// stream ended early.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Sizer is implemented by streams that know their total length up front.
type Sizer interface {
	Size() int64
}

// Factory creates a new session. It may perform network I/O.
type Factory func(ctx context.Context) (Session, error)

// Provider hands out the shared session.
type Provider interface {
	Get(ctx context.Context) (Session, error)
}

type staticProvider struct {
	s Session
}

// Static returns a Provider that always yields s.
func Static(s Session) Provider {
	return staticProvider{s: s}
}

func (p staticProvider) Get(context.Context) (Session, error) {
	return p.s, nil
}
