package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/ytget/ytsave"
	"github.com/ytget/ytsave/internal/config"
	"github.com/ytget/ytsave/internal/logger"
	"github.com/ytget/ytsave/internal/metrics"
	"github.com/ytget/ytsave/pkg/client"
	"github.com/ytget/ytsave/session"
	"github.com/ytget/ytsave/types"
	"github.com/ytget/ytsave/youtube"
	"github.com/ytget/ytsave/youtube/kkdai"
	"github.com/ytget/ytsave/youtube/stream"
)

// args holds CLI arguments parsed by go-arg. Flags override the config file.
type args struct {
	Locator     string `arg:"positional,required" help:"video URL, e.g. https://www.youtube.com/watch?v=dQw4w9WgXcQ"`
	Audio       bool   `arg:"-a,--audio" help:"save only the best audio stream (.m4a)"`
	OutputDir   string `arg:"-o,--output-dir" help:"directory for the output file"`
	Config      string `arg:"-c,--config,env:YTSAVE_CONFIG" help:"path to a YAML config file"`
	Backend     string `arg:"--backend" help:"innertube or kkdai"`
	NoProgress  bool   `arg:"--no-progress" help:"disable progress output"`
	MetricsFile string `arg:"--metrics-file" help:"write Prometheus metrics to this file when done"`
	LogLevel    string `arg:"--log-level" help:"trace, debug, info, warn or error"`
}

func (args) Description() string {
	return "ytsave downloads one YouTube video, or only its audio, into a local file.\n"
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var a args
	p, err := arg.NewParser(arg.Config{Program: "ytsave"}, &a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if err := p.Parse(argv); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			p.WriteHelp(os.Stdout)
			return 0
		}
		p.WriteUsage(os.Stderr)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	logCfg, err := cfg.Logging.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: logging: %v\n", err)
		return 2
	}
	logger.SetGlobalLogger(logger.New(logCfg))
	log := logger.WithComponent(logger.ComponentApp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind := types.VideoAudio
	if a.Audio {
		kind = types.Audio
	}

	rec := metrics.New()
	out := &statusWriter{w: os.Stdout}
	d := ytsave.New(newProvider(cfg)).
		WithOutputDir(cfg.OutputDir).
		WithStatus(out).
		WithMetrics(rec)
	if !a.NoProgress && term.IsTerminal(int(os.Stdout.Fd())) {
		d = d.WithProgress(out.progress)
	}

	log.Debug("Starting", map[string]interface{}{
		"locator": a.Locator,
		"kind":    kind.String(),
		"backend": cfg.Backend,
	})
	_, dlErr := d.Download(ctx, strings.TrimSpace(a.Locator), kind)

	if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		log.Warn("Failed to write metrics", map[string]interface{}{
			"path":  cfg.Metrics.Textfile,
			"error": err.Error(),
		})
	}
	if dlErr != nil {
		out.endLine()
		fmt.Fprintf(os.Stderr, "Error: %v\n", dlErr)
		return 1
	}
	return 0
}

func loadConfig(a args) (*config.Config, error) {
	cfg, err := config.Load(a.Config)
	if err != nil {
		return nil, err
	}
	if a.OutputDir != "" {
		cfg.OutputDir = a.OutputDir
	}
	if a.Backend != "" {
		cfg.Backend = strings.ToLower(a.Backend)
	}
	if a.MetricsFile != "" {
		cfg.Metrics.Textfile = a.MetricsFile
	}
	if a.LogLevel != "" {
		cfg.Logging.Level = a.LogLevel
	}
	// The overrides above can replace values Load already checked.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newProvider builds the lazily initialized session for the configured backend.
func newProvider(cfg *config.Config) session.Provider {
	hc := client.NewWith(client.Config{
		Timeout:   cfg.HTTP.Timeout,
		Retries:   cfg.HTTP.Retries,
		UserAgent: cfg.HTTP.UserAgent,
		ProxyURL:  cfg.HTTP.Proxy,
	})
	if cfg.Backend == config.BackendKkdai {
		return session.NewLazy(kkdai.Factory(kkdai.Options{
			HTTPClient: hc.HTTPClient,
			ChunkSize:  int(cfg.Stream.ChunkSize),
		}))
	}
	return session.NewLazy(youtube.Factory(youtube.Options{
		HTTP:          hc,
		ClientName:    cfg.InnerTube.ClientName,
		ClientVersion: cfg.InnerTube.ClientVersion,
		Stream: stream.Options{
			ChunkSize:  cfg.Stream.ChunkSize,
			MaxRetries: cfg.Stream.MaxRetries,
			RateLimit:  cfg.Stream.RateLimit,
			UserAgent:  cfg.HTTP.UserAgent,
		},
	}))
}

// statusWriter shares stdout between status lines and the in-place progress
// line. A status line first terminates a pending progress line.
type statusWriter struct {
	mu      sync.Mutex
	w       io.Writer
	pending bool
}

func (s *statusWriter) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	return s.w.Write(b)
}

func (s *statusWriter) progress(p ytsave.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = true
	if p.TotalSize > 0 {
		fmt.Fprintf(s.w, "\r%s / %s (%.1f%%)  ",
			humanize.Bytes(uint64(p.DownloadedSize)), humanize.Bytes(uint64(p.TotalSize)), p.Percent)
		return
	}
	fmt.Fprintf(s.w, "\r%s  ", humanize.Bytes(uint64(p.DownloadedSize)))
}

func (s *statusWriter) endLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *statusWriter) flushLocked() {
	if s.pending {
		fmt.Fprintln(s.w)
		s.pending = false
	}
}
