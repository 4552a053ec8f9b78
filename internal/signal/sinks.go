package signal

import (
	"log/slog"
	"sync"
)

// LogSink writes each signal to a logger at Info level.
type LogSink struct {
	Logger *slog.Logger
}

// Publish logs s.
func (l LogSink) Publish(s Signal) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"id", s.ID, "scope", s.Scope.String(), "kind", string(s.Kind)}
	switch {
	case s.Entity != nil:
		attrs = append(attrs, "entity", s.Entity.ID, "record", s.Entity.RecordID)
	case s.EntityID != "":
		attrs = append(attrs, "entity", s.EntityID)
	}
	if len(s.Edges) > 0 {
		attrs = append(attrs, "edges", len(s.Edges))
	}
	logger.Info("signal", attrs...)
}

// Recorder keeps every published signal in memory.
//
// Thread-safety: Recorder is safe for concurrent use via internal mutex.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

// Publish records s.
func (r *Recorder) Publish(s Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

// Signals returns a copy of the recorded signals in publish order.
func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.signals))
	copy(out, r.signals)
	return out
}

// Kinds returns the kinds of the recorded signals in publish order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.signals))
	for i, s := range r.signals {
		out[i] = s.Kind
	}
	return out
}

// Reset forgets every recorded signal.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = nil
}

// Multi publishes to every sink in order.
type Multi []Sink

// Publish forwards s to each sink.
func (m Multi) Publish(s Signal) {
	for _, sink := range m {
		sink.Publish(s)
	}
}

// Relay forwards signals to another sink re-scoped as Remote.
type Relay struct {
	To Sink
}

// Publish forwards a copy of s with Scope set to Remote.
func (r Relay) Publish(s Signal) {
	s.Scope = Remote
	r.To.Publish(s)
}
