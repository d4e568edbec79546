// Package audit appends deletion verdicts to a JSONL log. Auditing is
// strictly observational: a write failure never changes a verdict.
package audit

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/saferm/saferm/internal/config"
	"github.com/saferm/saferm/internal/pathcheck"
)

// Event is one recorded decision.
type Event struct {
	Time     time.Time `json:"time"`
	Path     string    `json:"path"`
	Verdict  string    `json:"verdict"` // allow | block
	Reason   string    `json:"reason,omitempty"`
	Bypassed bool      `json:"bypassed,omitempty"`
	DryRun   bool      `json:"dry_run,omitempty"`
}

// Logger appends events to the configured output file.
type Logger struct {
	f          *os.File
	logAllowed bool
	logDenied  bool
	log        *slog.Logger
}

// Open prepares the audit log per config. A disabled config returns
// nil; nil receivers are safe on every method so callers need no
// guard.
func Open(cfg config.AuditConfig, logger *slog.Logger) *Logger {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	path := pathcheck.ExpandUser(cfg.Output)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Debug("audit log unavailable", "path", path, "err", err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		logger.Debug("audit log unavailable", "path", path, "err", err)
		return nil
	}
	return &Logger{f: f, logAllowed: cfg.LogAllowed, logDenied: cfg.LogDenied, log: logger}
}

// Record appends one event, honoring the allow/deny toggles.
func (l *Logger) Record(ev Event) {
	if l == nil {
		return
	}
	if ev.Verdict == "allow" && !l.logAllowed {
		return
	}
	if ev.Verdict == "block" && !l.logDenied {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if _, err := l.f.Write(append(b, '\n')); err != nil {
		l.log.Debug("audit write failed", "err", err)
	}
}

// Close releases the underlying file.
func (l *Logger) Close() {
	if l == nil || l.f == nil {
		return
	}
	_ = l.f.Close()
}
