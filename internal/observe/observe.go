// Package observe provides the structured event sink the retrieval pipeline
// reports through. Components take a Sink instead of writing to a global
// logger, so they stay quiet and testable by default.
package observe

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Event is a named observation with structured attributes
type Event struct {
	Name  string
	Attrs map[string]any
}

// Sink receives pipeline events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Nop discards every event
type Nop struct{}

// Emit implements Sink
func (Nop) Emit(context.Context, Event) {}

// OrNop returns s, or a Nop sink when s is nil
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// SlogSink writes events to a slog logger at a fixed level
type SlogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

// NewSlogSink creates a sink logging at debug level
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{Logger: logger, Level: slog.LevelDebug}
}

// Emit implements Sink. Attributes are written in key order.
func (s *SlogSink) Emit(ctx context.Context, e Event) {
	if s.Logger == nil || !s.Logger.Enabled(ctx, s.Level) {
		return
	}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Attrs[k]))
	}
	s.Logger.LogAttrs(ctx, s.Level, e.Name, attrs...)
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink
func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the recorded events with the given name
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
