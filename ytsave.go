package ytsave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ytget/ytsave/errs"
	"github.com/ytget/ytsave/internal/logger"
	"github.com/ytget/ytsave/internal/metrics"
	"github.com/ytget/ytsave/internal/mimeext"
	"github.com/ytget/ytsave/internal/sanitize"
	"github.com/ytget/ytsave/session"
	"github.com/ytget/ytsave/types"
)

// State is a step of a single download.
type State int

// States in the order a successful download visits them. Any failure moves
// to Failed; there are no backward transitions.
const (
	Idle State = iota
	Resolving
	Describing
	StreamOpening
	Writing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Describing:
		return "describing"
	case StreamOpening:
		return "stream_opening"
	case Writing:
		return "writing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Progress describes current progress of an ongoing download.
// TotalSize is zero when the stream does not report its length.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Downloader saves videos through a shared session. A Downloader is safe for
// concurrent use once configured; the setters are not.
type Downloader struct {
	provider  session.Provider
	outputDir string
	progress  func(Progress)
	status    io.Writer
	logger    *logger.Logger
	metrics   *metrics.Recorder
	stateHook func(State)
}

// New creates a Downloader that obtains its session from p.
func New(p session.Provider) *Downloader {
	return &Downloader{provider: p, status: io.Discard}
}

// WithOutputDir sets the directory output files are created in. Empty means
// the working directory.
func (d *Downloader) WithOutputDir(dir string) *Downloader {
	d.outputDir = strings.TrimSpace(dir)
	return d
}

// WithProgress registers a callback that receives progress updates.
func (d *Downloader) WithProgress(f func(Progress)) *Downloader {
	d.progress = f
	return d
}

// WithStatus sets where the "Downloading:" and "Saved to" lines are written.
func (d *Downloader) WithStatus(w io.Writer) *Downloader {
	if w == nil {
		w = io.Discard
	}
	d.status = w
	return d
}

// WithLogger overrides the global logger.
func (d *Downloader) WithLogger(l *logger.Logger) *Downloader {
	d.logger = l
	return d
}

// WithMetrics records download outcomes on r.
func (d *Downloader) WithMetrics(r *metrics.Recorder) *Downloader {
	d.metrics = r
	return d
}

// WithStateHook registers a callback invoked on every state transition.
func (d *Downloader) WithStateHook(f func(State)) *Downloader {
	d.stateHook = f
	return d
}

func (d *Downloader) log() *logger.ComponentLogger {
	if d.logger != nil {
		return d.logger.WithComponent(logger.ComponentOrchestrator)
	}
	return logger.WithComponent(logger.ComponentOrchestrator)
}

// run tracks one Download call.
type run struct {
	d     *Downloader
	log   *logger.ComponentLogger
	state State
	kind  types.MediaKind
	start time.Time
}

func (r *run) enter(s State) {
	r.log.Trace("State transition", map[string]interface{}{
		"from": r.state.String(),
		"to":   s.String(),
	})
	r.state = s
	if r.d.stateHook != nil {
		r.d.stateHook(s)
	}
}

func (r *run) fail(err error) (string, error) {
	r.enter(Failed)
	r.log.Error("Download failed", map[string]interface{}{
		"error":    err.Error(),
		"duration": time.Since(r.start).String(),
	})
	r.d.metrics.ObserveDownload(r.kind.String(), resultLabel(err))
	return "", err
}

// Download saves the media of the video named by locator and returns the
// path of the written file. The zero MediaKind requests video+audio.
func (d *Downloader) Download(ctx context.Context, locator string, kind types.MediaKind) (string, error) {
	r := &run{
		d:     d,
		kind:  kind,
		start: time.Now(),
		log: d.log().With(map[string]interface{}{
			"request_id": uuid.NewString(),
			"kind":       kind.String(),
		}),
	}

	r.enter(Resolving)
	videoID, err := ResolveID(locator)
	if err != nil {
		return r.fail(err)
	}
	r.log.Debug("Resolved locator", map[string]interface{}{"video_id": videoID})

	r.enter(Describing)
	stageStart := time.Now()
	s, err := d.provider.Get(ctx)
	if err != nil {
		return r.fail(errs.New(errs.ErrMetadataUnavailable, videoID, err))
	}
	info, err := s.BasicInfo(ctx, videoID)
	if err != nil {
		return r.fail(errs.New(errs.ErrMetadataUnavailable, videoID, err))
	}
	d.metrics.ObserveStage("describe", stageStart)
	display := info.Title
	if display == "" {
		display = videoID
	}
	fmt.Fprintf(d.status, "Downloading: %s\n", display)
	r.log.Info("Video metadata received", map[string]interface{}{
		"video_id": videoID,
		"title":    info.Title,
		"formats":  len(info.Formats),
	})

	r.enter(StreamOpening)
	stageStart = time.Now()
	format, err := s.SelectFormat(ctx, info, kind)
	if err != nil {
		return r.fail(errs.New(errs.ErrFormatUnavailable, videoID, err))
	}
	r.log.Debug("Format selected", map[string]interface{}{
		"itag":      format.Itag,
		"mime_type": format.MimeType,
		"quality":   format.Quality,
		"bitrate":   format.Bitrate,
	})
	if got := mimeext.ExtFromMime(format.MimeType); got != mimeext.ExtForKind(kind) {
		r.log.Warn("Selected container does not match output extension", map[string]interface{}{
			"mime_type": format.MimeType,
			"ext":       mimeext.ExtForKind(kind),
		})
	}
	st, err := s.OpenStream(ctx, info, format)
	if err != nil {
		return r.fail(errs.New(errs.ErrFormatUnavailable, videoID, err))
	}
	defer st.Close()
	d.metrics.ObserveStage("open", stageStart)

	r.enter(Writing)
	stageStart = time.Now()
	path := filepath.Join(d.outputDir, sanitize.ToSafeFilename(info.Title, videoID, mimeext.ExtForKind(kind)))
	written, err := d.write(ctx, path, st)
	d.metrics.AddBytes(int(written))
	if err != nil {
		r.log.Warn("Partial file left on disk", map[string]interface{}{
			"path":    path,
			"written": written,
		})
		return r.fail(errs.New(errs.ErrStreamInterrupted, videoID, err))
	}
	d.metrics.ObserveStage("write", stageStart)

	r.enter(Done)
	fmt.Fprintf(d.status, "✓ Saved to %s\n", path)
	r.log.Info("Download completed", map[string]interface{}{
		"path":     path,
		"bytes":    written,
		"duration": time.Since(r.start).String(),
	})
	d.metrics.ObserveDownload(kind.String(), metrics.ResultSuccess)
	return path, nil
}

// write copies st into a freshly truncated file at path, chunk by chunk.
// On failure the file keeps whatever was written.
func (d *Downloader) write(ctx context.Context, path string, st session.Stream) (int64, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}

	var total int64
	if sz, ok := st.(session.Sizer); ok {
		total = sz.Size()
	}
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			f.Close()
			return written, err
		}
		chunk, err := st.Next(ctx)
		if errors.Is(err, io.EOF) {
			if total > 0 && written < total {
				f.Close()
				return written, fmt.Errorf("stream ended at %d of %d bytes: %w", written, total, io.ErrUnexpectedEOF)
			}
			break
		}
		if err != nil {
			f.Close()
			return written, err
		}
		n, err := f.Write(chunk)
		written += int64(n)
		if err != nil {
			f.Close()
			return written, fmt.Errorf("write output file: %w", err)
		}
		d.report(total, written)
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close output file: %w", err)
	}
	return written, nil
}

func (d *Downloader) report(total, written int64) {
	if d.progress == nil {
		return
	}
	p := Progress{TotalSize: total, DownloadedSize: written}
	if total > 0 {
		p.Percent = float64(written) / float64(total) * 100
	}
	d.progress(p)
}

// resultLabel turns the kind of err into a metrics label such as
// "stream_interrupted".
func resultLabel(err error) string {
	kind := errs.KindOf(err)
	if kind == nil {
		return "unknown"
	}
	return strings.ReplaceAll(kind.Error(), " ", "_")
}
