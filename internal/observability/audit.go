package observability

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AuditKind groups audit events by the surface they touch
type AuditKind string

const (
	AuditWorkspace AuditKind = "workspace"
	AuditShare     AuditKind = "share"
)

// AuditStatus is the outcome of an audited action
type AuditStatus string

const (
	AuditSuccess   AuditStatus = "success"
	AuditFailure   AuditStatus = "failure"
	AuditCancelled AuditStatus = "cancelled"
)

// StatusOf maps an action error to its audit outcome
func StatusOf(err error) AuditStatus {
	switch {
	case err == nil:
		return AuditSuccess
	case errors.Is(err, context.Canceled):
		return AuditCancelled
	default:
		return AuditFailure
	}
}

// AuditEvent is one line of the audit log
type AuditEvent struct {
	Kind   AuditKind
	Time   time.Time
	Actor  string // session ID, or "cli"
	Action string // e.g. "delete_file", "open"
	Err    error
	Fields map[string]interface{}
}

// AuditLogger appends JSON lines for workspace deletes, renames and
// snippet sharing
type AuditLogger struct {
	mu     sync.Mutex
	logger zerolog.Logger
	closer io.Closer
}

// NewAuditLogger writes audit lines to w
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{logger: zerolog.New(w)}
}

// OpenAuditLog appends audit lines to the file at path
func OpenAuditLog(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	a := NewAuditLogger(file)
	a.closer = file
	return a, nil
}

// Record writes one event. A zero Time is stamped with the current time.
func (a *AuditLogger) Record(event AuditEvent) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Time("time", event.Time).
		Str("kind", string(event.Kind)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", string(StatusOf(event.Err)))
	if event.Err != nil {
		entry = entry.Str("error", event.Err.Error())
	}
	if len(event.Fields) > 0 {
		entry = entry.Fields(event.Fields)
	}
	entry.Send()
}

// Close closes the underlying file, if any
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

var (
	discardAudit = NewAuditLogger(io.Discard)
	auditLog     atomic.Pointer[AuditLogger]
)

// Audit returns the process audit logger. Events are dropped until
// SetAuditLogger installs one.
func Audit() *AuditLogger {
	if a := auditLog.Load(); a != nil {
		return a
	}
	return discardAudit
}

// SetAuditLogger installs a as the process audit logger and returns the
// previous one. Nil restores the discarding logger.
func SetAuditLogger(a *AuditLogger) *AuditLogger {
	prev := auditLog.Swap(a)
	if prev == nil {
		prev = discardAudit
	}
	return prev
}

// RecordWorkspaceAudit records a workspace mutation made by actor
func RecordWorkspaceAudit(actor, action string, err error, fields map[string]interface{}) {
	Audit().Record(AuditEvent{Kind: AuditWorkspace, Actor: actor, Action: action, Err: err, Fields: fields})
}

// RecordShareAudit records a snippet share or open made by actor
func RecordShareAudit(actor, action string, err error, fields map[string]interface{}) {
	Audit().Record(AuditEvent{Kind: AuditShare, Actor: actor, Action: action, Err: err, Fields: fields})
}
