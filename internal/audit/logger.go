package audit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	Status       string            `json:"status"` // "success" or "failure"
	Details      map[string]string `json:"details,omitempty"`
}

// Logger writes audit entries for every state-changing user operation.
type Logger struct {
	output zerolog.Logger
}

// NewLoggerWithZerolog creates an audit logger writing through logger.
func NewLoggerWithZerolog(logger zerolog.Logger) *Logger {
	return &Logger{output: logger.With().Str("log_type", "audit").Logger()}
}

// Log writes an audit entry. A nil Logger discards entries.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.output.Info().Interface("audit", entry).Msg(entry.Action)
}

// LogSuccess logs a successful operation.
func (l *Logger) LogSuccess(action, actor, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Status:       "success",
		Details:      details,
	})
}

// LogFailure logs a rejected operation.
func (l *Logger) LogFailure(action, actor, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Status:       "failure",
		Details:      details,
	})
}

// LogFromRequest logs an action with the client IP taken from r.
func (l *Logger) LogFromRequest(r *http.Request, action, actor, resourceType, resourceID, status string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ClientIP(r),
		Status:       status,
		Details:      details,
	})
}

// ClientIP gets the client IP from proxy headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
