package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"prepaid-meter/internal/auth"
)

// Actions recorded for ledger mutations.
const (
	ActionReadingAdd     = "reading.add"
	ActionReadingDelete  = "reading.delete"
	ActionRechargeAdd    = "recharge.add"
	ActionRechargeDelete = "recharge.delete"
	ActionSettingsUpdate = "settings.update"
	ActionImport         = "data.import"
	ActionReset          = "data.reset"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FromRequest builds an entry with the caller identity and client details.
func FromRequest(r *http.Request, action, resourceID string, metadata any) Entry {
	entry := Entry{
		Actor:      auth.SubjectFromContext(r.Context()),
		Role:       string(auth.RoleFromContext(r.Context())),
		Action:     action,
		ResourceID: resourceID,
		IP:         clientIP(r),
		UserAgent:  r.UserAgent(),
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = raw
		}
	}
	return entry
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func complete(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	return entry
}

// LogWriter prints audit entries to a logger. Used when no database is configured.
type LogWriter struct {
	logger *log.Logger
}

// NewLogWriter constructs a log-backed audit writer.
func NewLogWriter(logger *log.Logger) (*LogWriter, error) {
	if logger == nil {
		return nil, errors.New("audit log writer: nil logger")
	}
	return &LogWriter{logger: logger}, nil
}

// Log writes an audit entry.
func (w *LogWriter) Log(_ context.Context, entry Entry) error {
	entry = complete(entry)
	w.logger.Printf("audit id=%s action=%s resource=%s actor=%q role=%s ip=%s digest=%s",
		entry.ID, entry.Action, entry.ResourceID, entry.Actor, entry.Role, entry.IP, entry.PayloadDigest)
	return nil
}
