// Package logging defines the structured logger used across MyHealthData.
// The server logs through slog, the client through zerolog. Both satisfy
// Logger.
package logging

import (
	"context"
	"io"
	"strings"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are key-value pairs:
//
//	log.Info(ctx, "record pushed", "uuid", rec.UUID, "recordName", name)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always carries the given pairs.
	With(args ...any) Logger
}

// Format selects a Logger backend in New.
type Format string

const (
	FormatJSON    Format = "json"
	FormatText    Format = "text"
	FormatConsole Format = "console"
)

// New builds a Logger for the given format and level writing to w.
// "json" and "console" use zerolog; "text" uses slog's text handler.
// Unknown formats fall back to json, unknown levels to info.
func New(format Format, level string, w io.Writer) Logger {
	switch Format(strings.ToLower(string(format))) {
	case FormatText:
		return NewSlogTextLogger(w, level)
	case FormatConsole:
		return NewZerologConsoleLogger(w, level)
	default:
		return NewZerologJSONLogger(w, level)
	}
}
