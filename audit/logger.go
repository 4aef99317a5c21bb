// Package audit writes the security and error logs: append-only,
// line-delimited JSON, partitioned by UTC day and category. Files rotate on
// size, rotated files are gzip-compressed, and files past the retention
// window are pruned. Nothing written here is ever returned to a client.
package audit

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Event identifies a security-relevant action.
type Event string

const (
	EventLoginSuccess     Event = "SUCCESSFUL_LOGIN"
	EventLoginFailure     Event = "FAILED_LOGIN"
	EventLockoutAttempt   Event = "LOCKOUT_ATTEMPT"
	EventRateLimited      Event = "RATE_LIMITED"
	EventSessionCreated   Event = "SESSION_CREATED"
	EventSessionDestroyed Event = "SESSION_DESTROYED"
	EventSessionExpired   Event = "SESSION_EXPIRED"
	EventSessionIPChange  Event = "SESSION_IP_MISMATCH"
	EventCSRFRejected     Event = "CSRF_REJECTED"
	EventUserCreated      Event = "USER_CREATED"
	EventPasswordChanged  Event = "PASSWORD_CHANGED"
	EventPanic            Event = "UNCAUGHT_PANIC"
)

// RequestMeta carries the request attributes recorded with every entry.
type RequestMeta struct {
	IP        string
	UserAgent string
	Method    string
	URI       string
}

// Logger writes to two category streams, error and security.
type Logger struct {
	errorLog    *slog.Logger
	securityLog *slog.Logger
	closers     []io.Closer
}

// New creates a Logger writing rotating files under cfg.Dir.
func New(cfg Config) (*Logger, error) {
	errSink, err := newRotatingSink(cfg, "error")
	if err != nil {
		return nil, err
	}
	secSink, err := newRotatingSink(cfg, "security")
	if err != nil {
		errSink.Close()
		return nil, err
	}
	l := NewWithWriters(errSink, secSink)
	l.closers = []io.Closer{errSink, secSink}
	return l, nil
}

// NewWithWriters creates a Logger over arbitrary writers. Used by tests and
// by callers that manage their own sinks.
func NewWithWriters(errorW, securityW io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	return &Logger{
		errorLog:    slog.New(slog.NewJSONHandler(errorW, opts)),
		securityLog: slog.New(slog.NewJSONHandler(securityW, opts)),
	}
}

// NewDiscard returns a Logger that drops everything. Convenient in tests.
func NewDiscard() *Logger {
	return NewWithWriters(io.Discard, io.Discard)
}

// Close flushes and closes the underlying sinks.
func (l *Logger) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func metaAttrs(meta RequestMeta) []slog.Attr {
	return []slog.Attr{
		slog.String("ip", meta.IP),
		slog.String("user_agent", meta.UserAgent),
		slog.String("method", meta.Method),
		slog.String("uri", meta.URI),
	}
}

// Security records a security event with the request metadata.
func (l *Logger) Security(ctx context.Context, event Event, meta RequestMeta, attrs ...slog.Attr) {
	all := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	all = append(all, metaAttrs(meta)...)
	all = append(all, attrs...)
	l.securityLog.LogAttrs(ctx, slog.LevelInfo, "security", all...)
}

// Error records an internal failure with full detail. The detail stays in
// the log; callers surface only a generic message and correlation id.
func (l *Logger) Error(ctx context.Context, msg string, err error, meta RequestMeta, attrs ...slog.Attr) {
	all := []slog.Attr{
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if err != nil {
		all = append(all, slog.String("error", err.Error()))
	}
	all = append(all, metaAttrs(meta)...)
	all = append(all, attrs...)
	l.errorLog.LogAttrs(ctx, slog.LevelError, msg, all...)
}
