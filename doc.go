// Package ytsave downloads a single video, or only its audio, to a local file.
//
// A Downloader resolves a locator to a video identifier, asks a
// session.Session for basic metadata and the best format of the requested
// kind, and copies the format's byte stream into a file named after the
// sanitized title:
//
//	provider := session.NewLazy(youtube.Factory(youtube.Options{}))
//	path, err := ytsave.New(provider).
//		WithOutputDir("downloads").
//		WithStatus(os.Stdout).
//		Download(ctx, "https://youtu.be/dQw4w9WgXcQ", types.VideoAudio)
//
// Every failure is an *errs.Error whose kind is one of errs.ErrInvalidLocator,
// errs.ErrMetadataUnavailable, errs.ErrFormatUnavailable or
// errs.ErrStreamInterrupted. An interrupted download leaves the partial file
// in place.
package ytsave
