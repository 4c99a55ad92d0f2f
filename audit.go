package kindauth

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/kindauth/internal/audit"
)

// AuditEvent is a structured security event emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel, mainly for tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per event line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink writes audit events as structured log records.
type SlogSink = audit.SlogSink

// NewChannelSink returns a sink that buffers up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging through logger.
func NewSlogSink(logger *slog.Logger) SlogSink {
	return audit.SlogSink{Logger: logger}
}
