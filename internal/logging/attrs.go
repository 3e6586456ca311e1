package logging

import (
	"context"
	"log/slog"
)

type Attr = slog.Attr

func String(key, value string) Attr { return slog.String(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Shared attribute keys for engine components.
const (
	FieldJobID    = "job_id"
	FieldLabel    = "label"
	FieldPeriod   = "period"
	FieldProvider = "provider"
)

func JobID(id string) Attr { return slog.String(FieldJobID, id) }

func Label(label string) Attr { return slog.String(FieldLabel, label) }

func Period(index int) Attr { return slog.Int(FieldPeriod, index) }

func Provider(kind string) Attr { return slog.String(FieldProvider, kind) }

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
