package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Settings is the textual logging configuration as it appears in the config
// file and environment.
type Settings struct {
	Level      string   `yaml:"level"`
	Format     string   `yaml:"format"`
	Output     string   `yaml:"output"`
	Components []string `yaml:"components"`
	ShowCaller bool     `yaml:"show_caller"`
	Timestamp  bool     `yaml:"timestamp"`
}

// ToConfig converts Settings to a logger Config. Empty fields keep the
// DefaultConfig values; an empty component list enables every component.
func (s Settings) ToConfig() (*Config, error) {
	cfg := DefaultConfig()

	if s.Level != "" {
		level, err := ParseLevel(s.Level)
		if err != nil {
			return nil, fmt.Errorf("parse level: %w", err)
		}
		cfg.Level = level
	}
	if s.Format != "" {
		format, err := parseFormat(s.Format)
		if err != nil {
			return nil, fmt.Errorf("parse format: %w", err)
		}
		cfg.Format = format
	}
	if s.Output != "" {
		out, err := parseOutput(s.Output)
		if err != nil {
			return nil, fmt.Errorf("parse output: %w", err)
		}
		cfg.Output = out
	}
	if len(s.Components) > 0 {
		cfg.Components = make(map[Component]bool, len(s.Components))
		for _, name := range s.Components {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				cfg.Components[Component(name)] = true
			}
		}
	}
	cfg.ShowCaller = s.ShowCaller
	cfg.Timestamp = s.Timestamp
	return cfg, nil
}

// ParseLevel parses a level name.
func ParseLevel(levelStr string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown level: %s", levelStr)
	}
}

func parseFormat(formatStr string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(formatStr)) {
	case "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "color", "colored":
		return FormatColor, nil
	default:
		return FormatText, fmt.Errorf("unknown format: %s", formatStr)
	}
}

// parseOutput accepts stdout, stderr, none, or file:<path>.
func parseOutput(outputStr string) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(outputStr)) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "null", "none":
		return io.Discard, nil
	}
	if strings.HasPrefix(outputStr, "file:") {
		filePath := strings.TrimPrefix(outputStr, "file:")
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return file, nil
	}
	return nil, fmt.Errorf("unknown output: %s", outputStr)
}
