// Package errs defines the error taxonomy shared by the resolver, the
// download orchestrator and the collaborator backends.
package errs

import (
	"errors"
	"fmt"
)

// Kinds. Every failed download reports exactly one of these.
var (
	// ErrInvalidLocator indicates the locator does not embed a recognized video identifier.
	ErrInvalidLocator = errors.New("invalid locator")
	// ErrMetadataUnavailable indicates basic metadata could not be fetched.
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	// ErrFormatUnavailable indicates no stream could be selected or opened for the requested kind.
	ErrFormatUnavailable = errors.New("format unavailable")
	// ErrStreamInterrupted indicates the byte stream ended before completion.
	ErrStreamInterrupted = errors.New("stream interrupted")
)

// Causes reported by collaborator backends.
var (
	// ErrVideoUnavailable indicates that the requested video cannot be accessed.
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrPrivate indicates that the video is private and cannot be downloaded.
	ErrPrivate = errors.New("video is private")
	// ErrAgeRestricted indicates that the video has an age restriction.
	ErrAgeRestricted = errors.New("age restricted")
	// ErrCipherFailed indicates failure during signature deciphering.
	ErrCipherFailed = errors.New("cipher failed")
	// ErrGeoBlocked indicates the video is not available in the current region.
	ErrGeoBlocked = errors.New("geo blocked")
	// ErrRateLimited indicates throttling or rate limiting by the remote service.
	ErrRateLimited = errors.New("rate limited")
	// ErrNoFormat indicates no format matches the requested media kind.
	ErrNoFormat = errors.New("no matching format")
)

// Error carries the kind of a failed download together with the video
// identifier (when known) and the underlying cause.
type Error struct {
	Kind    error
	VideoID string
	Err     error
}

// New wraps cause with a kind and video identifier.
func New(kind error, videoID string, cause error) *Error {
	return &Error{Kind: kind, VideoID: videoID, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.VideoID != "" {
		msg = fmt.Sprintf("%s: video %s", msg, e.VideoID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind sentinel of err, or nil when err is not an *Error.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
