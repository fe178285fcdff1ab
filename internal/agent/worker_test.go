package agent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"healthsync/internal/pullsync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingSync struct {
	calls  atomic.Int32
	result pullsync.RunResult
}

func (c *countingSync) Run(context.Context) pullsync.RunResult {
	c.calls.Add(1)
	return c.result
}

func TestWorker_RunsImmediatelyThenOnTicks(t *testing.T) {
	s := &countingSync{result: pullsync.RunResult{Supported: true, Authorized: true, Summary: &pullsync.Summary{}}}
	w := &Worker{ID: "agent-1", Sync: s, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorker_OnceLogsByOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := &Worker{ID: "agent-1", Log: zap.New(core)}

	w.Sync = &countingSync{result: pullsync.RunResult{Supported: true, Authorized: true, Summary: &pullsync.Summary{Inserted: 4}}}
	res := w.Once(context.Background())
	assert.Equal(t, 4, res.Summary.Inserted)

	w.Sync = &countingSync{result: pullsync.RunResult{Supported: true, Error: "Health permissions were not granted"}}
	w.Once(context.Background())

	w.Sync = &countingSync{result: pullsync.RunResult{Supported: true, Authorized: true, Summary: &pullsync.Summary{}, Error: "step_count: boom"}}
	w.Once(context.Background())

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "sync pass done", entries[0].Message)
	assert.Equal(t, int64(4), entries[0].ContextMap()["inserted"])
	assert.Equal(t, "sync pass aborted", entries[1].Message)
	assert.Equal(t, "sync pass finished with errors", entries[2].Message)
}
