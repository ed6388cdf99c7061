package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/credit-engine/audit"
)

type failingSink struct{ calls int }

func (f *failingSink) Record(context.Context, audit.Entry) error {
	f.calls++
	return errors.New("sink unavailable")
}

func TestRecorder_FillsIDAndTimestamp(t *testing.T) {
	mem := audit.NewMemory()
	rec := audit.NewRecorder(mem, logrus.New())

	rec.Record(context.Background(), audit.Entry{
		Actor:        "service",
		Action:       "credit_line.created",
		ResourceType: "credit_line",
		ResourceID:   "line-1",
	})

	entries := mem.Entries()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].At.IsZero())
	assert.Equal(t, "credit_line.created", entries[0].Action)
}

func TestRecorder_SinkFailureIsSwallowed(t *testing.T) {
	// The recorder is fire-and-forget: a dead sink must never surface an
	// error to the operation being audited.

	sink := &failingSink{}
	rec := audit.NewRecorder(sink, logrus.New())

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), audit.Entry{Action: "credit_line.closed"})
	})
	assert.Equal(t, 1, sink.calls)
}

func TestRecorder_NilRecorderIsSafe(t *testing.T) {
	var rec *audit.Recorder
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), audit.Entry{Action: "noop"})
	})
}
