// Package audit appends security-relevant events to a JSON-lines file.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	ActionLogin            = "auth.login"
	ActionLogout           = "auth.logout"
	ActionRefresh          = "auth.refresh"
	ActionCSRFReject       = "auth.csrf_reject"
	ActionExperimentCreate = "experiment.create"
	ActionExperimentUpdate = "experiment.update"
	ActionExperimentDelete = "experiment.delete"
	ActionBroadcast        = "events.broadcast"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Event struct {
	At        string `json:"at"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	RemoteIP  string `json:"remote_ip,omitempty"`
}

type Logger struct {
	path    string
	logger  *slog.Logger
	nowFunc func() time.Time
	mu      sync.Mutex
}

// NewLogger writes to path when set and always mirrors events to logger.
func NewLogger(path string, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{path: path, logger: logger, nowFunc: time.Now}
}

func (l *Logger) Record(e Event) error {
	if l == nil {
		return nil
	}
	e.At = l.nowFunc().UTC().Format(time.RFC3339)
	l.logger.Info("audit",
		"action", e.Action,
		"actor", e.Actor,
		"outcome", e.Outcome,
		"request_id", e.RequestID,
	)
	if l.path == "" {
		return nil
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir audit log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write audit log entry: %w", err)
	}
	return nil
}
