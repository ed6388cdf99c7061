/*
Package audit mirrors mutating operations into an append-only audit
trail.

PURPOSE:
  After every accepted mutation (create, suspend, close, draw, repay,
  reset) the HTTP layer records who did what to which resource. The
  engine itself never depends on auditing: recording happens at the
  collaborator boundary and is fire-and-forget, so an unavailable sink
  can never fail the operation it describes.

SINKS:
  - LogSink:  structured logrus output (the default)
  - Memory:   in-process buffer, used by tests
  - store/sqlite: persists entries in the audit_log table

SEE ALSO:
  - api/handlers.go: The only producer of entries
*/
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Entry records a single mutating operation.
type Entry struct {
	ID           string
	At           time.Time
	Actor        string
	Action       string // e.g. "credit_line.suspended"
	ResourceType string
	ResourceID   string
	Metadata     map[string]string
}

// Sink stores audit entries. Append-only.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// =============================================================================
// LOG SINK
// =============================================================================

// LogSink writes entries as structured log lines.
type LogSink struct {
	Log *logrus.Logger
}

func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{Log: log}
}

func (s *LogSink) Record(_ context.Context, e Entry) error {
	fields := logrus.Fields{
		"audit_id":      e.ID,
		"actor":         e.Actor,
		"action":        e.Action,
		"resource_type": e.ResourceType,
		"resource_id":   e.ResourceID,
	}
	for k, v := range e.Metadata {
		fields["meta_"+k] = v
	}
	s.Log.WithFields(fields).Info("audit")
	return nil
}

// =============================================================================
// MEMORY SINK - For tests
// =============================================================================

type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// =============================================================================
// FIRE-AND-FORGET WRAPPER
// =============================================================================

// Recorder fills in entry ids/timestamps and swallows sink failures.
type Recorder struct {
	sink Sink
	log  *logrus.Logger
	now  func() time.Time
}

func NewRecorder(sink Sink, log *logrus.Logger) *Recorder {
	return &Recorder{sink: sink, log: log, now: time.Now}
}

// Record never returns an error: a failing sink is logged and ignored
// so the operation that triggered the entry is unaffected.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.sink == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = r.now()
	}
	if err := r.sink.Record(ctx, e); err != nil && r.log != nil {
		r.log.WithError(err).Warn("audit sink unavailable, entry dropped")
	}
}
