package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"

	"github.com/phrazzld/batchgen/internal/events"
	"github.com/phrazzld/batchgen/internal/progress"
	"github.com/phrazzld/batchgen/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingPublisher keeps every published snapshot.
type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []progress.Snapshot
}

func (p *recordingPublisher) Publish(_ context.Context, s progress.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, s)
	return nil
}

func (p *recordingPublisher) all() []progress.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]progress.Snapshot(nil), p.snapshots...)
}

// fakeEmitter records emitted events and returns err.
type fakeEmitter struct {
	events []*events.TaskRequestEvent
	err    error
}

func (e *fakeEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	e.events = append(e.events, event)
	return e.err
}

// fakeCanceller reports local tasks for the keys in running.
type fakeCanceller struct {
	running   map[string]bool
	cancelled []string
}

func (c *fakeCanceller) Cancel(key string) bool {
	c.cancelled = append(c.cancelled, key)
	return c.running[key]
}

// passthroughTx runs fn without a transaction; memory stores ignore tx.
func passthroughTx(ctx context.Context, fn store.TxFn) error {
	return fn(ctx, (*sql.Tx)(nil))
}

