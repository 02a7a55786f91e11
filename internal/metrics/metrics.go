package metrics

import (
	"context"
	"time"

	"github.com/taskscheduler/core/internal/store"
)

// Aggregator produces read-only metrics snapshots from a Store.
type Aggregator struct {
	store store.Store
}

// New builds an Aggregator backed by st.
func New(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Snapshot returns the current metrics snapshot as of now.
func (a *Aggregator) Snapshot(ctx context.Context, now time.Time) (store.MetricsSnapshot, error) {
	return a.store.MetricsSnapshot(ctx, now)
}
