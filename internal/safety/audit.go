package safety

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrNilWriter is returned by AuditLogger.Log on a nil logger.
var ErrNilWriter = errors.New("audit logger: writer is nil")

// redacted replaces the value of sensitive parameters in audit entries.
const redacted = "[REDACTED]"

// sensitiveKeys are parameter-name fragments whose values are never
// written to the audit log.
var sensitiveKeys = []string{"password", "passwd", "secret", "token"}

// AuditEntry captures a single tool invocation.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Tool      string         `json:"tool"`
	Resource  string         `json:"resource,omitempty"`
	Params    map[string]any `json:"params"`
	Result    string         `json:"result"`
	Duration  time.Duration  `json:"duration_ns"`
}

// AuditLogger writes AuditEntry records as newline-delimited JSON. It is
// safe for concurrent use.
type AuditLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewAuditLogger returns an AuditLogger writing to w, or nil if w is nil.
func NewAuditLogger(w io.Writer) *AuditLogger {
	if w == nil {
		return nil
	}
	return &AuditLogger{w: w}
}

// Log writes entry as one JSON line with sensitive parameters redacted.
// The caller's Params map is not modified.
func (l *AuditLogger) Log(entry AuditEntry) error {
	if l == nil || l.w == nil {
		return ErrNilWriter
	}

	entry.Params = redactParams(entry.Params)
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(data)
	return err
}

func redactParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitive(k) {
			v = redacted
		}
		out[k] = v
	}
	return out
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
