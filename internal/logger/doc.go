// Package logger provides structured logging functionality for ytsave.
//
// Features:
//   - Multiple log levels (TRACE, DEBUG, INFO, WARN, ERROR)
//   - Component-based filtering
//   - Multiple output formats (text, JSON, color)
//   - Thread-safe operations
//   - Bound fields (e.g. a per-download request id)
//
// Usage:
//
//	log := logger.WithComponent(logger.ComponentOrchestrator)
//	log.Info("stream opened", map[string]interface{}{
//		"video_id": "dQw4w9WgXcQ",
//		"size":     1024,
//	})
//
//	cfg := logger.DefaultConfig()
//	cfg.Level = logger.DEBUG
//	cfg.Format = logger.FormatJSON
//	logger.SetGlobalLogger(logger.New(cfg))
//
// Components:
//   - ComponentApp: CLI logs
//   - ComponentResolver: locator resolution
//   - ComponentOrchestrator: download state machine
//   - ComponentSession: collaborator session bootstrap
//   - ComponentInnerTube: YouTube API logs
//   - ComponentFormat: format selection logs
//   - ComponentCipher: signature deciphering logs
//   - ComponentStream: chunked stream transport logs
//   - ComponentClient: HTTP client logs
package logger
