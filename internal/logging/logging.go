// Package logging builds the slog logger used by kindauthd, tagging records
// with service metadata and the active OpenTelemetry span.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type spanHandler struct {
	next    slog.Handler
	service string
	version string
}

func (h *spanHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &spanHandler{next: h.next.WithAttrs(attrs), service: h.service, version: h.version}
}

func (h *spanHandler) WithGroup(name string) slog.Handler {
	return &spanHandler{next: h.next.WithGroup(name), service: h.service, version: h.version}
}

// Options configures Setup. Format is "json" (default) or "text"; Level is a
// slog level name and defaults to info.
type Options struct {
	Service string
	Version string
	Format  string
	Level   string
	Writer  io.Writer
}

// Setup returns a logger writing to opts.Writer, or stderr when nil.
func Setup(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var base slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		base = slog.NewTextHandler(w, ho)
	} else {
		base = slog.NewJSONHandler(w, ho)
	}
	return slog.New(&spanHandler{next: base, service: opts.Service, version: opts.Version})
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values
// resolve to info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
