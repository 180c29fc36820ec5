// Package cursor tracks the lnd payment pagination cursor and the
// cumulative payment tallies derived from it.
package cursor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
)

// Store is the interface for payment cursor state.
// Implementations must be safe for concurrent use.
type Store interface {
	// Apply folds one ListPayments response into the cursor: every payment
	// increments its status and failure-reason tallies, then the index
	// offset advances to nextOffset. The whole fold is atomic with respect
	// to readers.
	Apply(payments []*lnrpc.Payment, nextOffset uint64)
	IndexOffset() uint64
	StatusCounts() map[lnrpc.Payment_PaymentStatus]int64
	FailureReasonCounts() map[lnrpc.PaymentFailureReason]int64
	Snapshot() Snapshot
}

// PersistentStore extends Store with durable persistence capabilities.
// Implementations wrap a Cursor, delegate all Store methods to it, and add
// persistence after each successful payment scrape plus one-time restore
// on startup.
type PersistentStore interface {
	Store
	Persist(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Snapshot is the serialisation envelope for persisting cursor state.
// Counts are keyed by the lnrpc enum names so the on-disk format stays
// readable and survives proto additions.
type Snapshot struct {
	IndexOffset         uint64           `json:"indexOffset"`
	StatusCounts        map[string]int64 `json:"statusCounts"`
	FailureReasonCounts map[string]int64 `json:"failureReasonCounts"`
	PersistedAt         time.Time        `json:"persistedAt"`
}

// Cursor is a thread-safe in-memory implementation of Store.
//
// The index offset is monotonically non-decreasing and every tally is a
// running total: both only ever grow for the lifetime of the process.
type Cursor struct {
	mu                  sync.RWMutex
	indexOffset         uint64
	statusCounts        map[lnrpc.Payment_PaymentStatus]int64
	failureReasonCounts map[lnrpc.PaymentFailureReason]int64
}

// New creates a new empty Cursor starting at offset 0.
func New() *Cursor {
	return &Cursor{
		statusCounts:        make(map[lnrpc.Payment_PaymentStatus]int64),
		failureReasonCounts: make(map[lnrpc.PaymentFailureReason]int64),
	}
}

// Apply folds one successful ListPayments response into the cursor.
// Counts are updated before the offset moves, all inside a single write
// lock, so no reader can observe one without the other.
func (c *Cursor) Apply(payments []*lnrpc.Payment, nextOffset uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range payments {
		c.statusCounts[p.Status]++
		c.failureReasonCounts[p.FailureReason]++
	}

	// lnd only moves last_index_offset past settled payments, and reports
	// zero for an empty page. The cursor never moves backwards.
	if nextOffset > c.indexOffset {
		c.indexOffset = nextOffset
	}
}

// IndexOffset returns the current pagination offset.
func (c *Cursor) IndexOffset() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexOffset
}

// StatusCounts returns a copy of the cumulative per-status tallies.
func (c *Cursor) StatusCounts() map[lnrpc.Payment_PaymentStatus]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[lnrpc.Payment_PaymentStatus]int64, len(c.statusCounts))
	for s, n := range c.statusCounts {
		out[s] = n
	}
	return out
}

// FailureReasonCounts returns a copy of the cumulative per-reason tallies.
func (c *Cursor) FailureReasonCounts() map[lnrpc.PaymentFailureReason]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[lnrpc.PaymentFailureReason]int64, len(c.failureReasonCounts))
	for r, n := range c.failureReasonCounts {
		out[r] = n
	}
	return out
}

// Snapshot returns a consistent point-in-time view of the cursor with
// counts keyed by enum name.
func (c *Cursor) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		IndexOffset:         c.indexOffset,
		StatusCounts:        make(map[string]int64, len(c.statusCounts)),
		FailureReasonCounts: make(map[string]int64, len(c.failureReasonCounts)),
	}
	for s, n := range c.statusCounts {
		snap.StatusCounts[s.String()] = n
	}
	for r, n := range c.failureReasonCounts {
		snap.FailureReasonCounts[r.String()] = n
	}
	return snap
}

// loadSnapshot replays a persisted snapshot into the cursor. Entries whose
// enum name the compiled lnrpc package does not know are dropped with a
// warning rather than resurrected under a guessed value.
func (c *Cursor) loadSnapshot(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.indexOffset = snap.IndexOffset

	for name, n := range snap.StatusCounts {
		v, ok := lnrpc.Payment_PaymentStatus_value[name]
		if !ok {
			slog.Warn("unknown payment status in cursor snapshot, dropped", "status", name)
			continue
		}
		c.statusCounts[lnrpc.Payment_PaymentStatus(v)] = n
	}
	for name, n := range snap.FailureReasonCounts {
		v, ok := lnrpc.PaymentFailureReason_value[name]
		if !ok {
			slog.Warn("unknown failure reason in cursor snapshot, dropped", "reason", name)
			continue
		}
		c.failureReasonCounts[lnrpc.PaymentFailureReason(v)] = n
	}
}
