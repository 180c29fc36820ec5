package cursor

import (
	"reflect"
	"sync"
	"testing"

	"github.com/lightningnetwork/lnd/lnrpc"
)

func payment(status lnrpc.Payment_PaymentStatus, reason lnrpc.PaymentFailureReason) *lnrpc.Payment {
	return &lnrpc.Payment{Status: status, FailureReason: reason}
}

func TestCursor_ApplyAccumulates(t *testing.T) {
	c := New()

	c.Apply([]*lnrpc.Payment{
		payment(lnrpc.Payment_SUCCEEDED, lnrpc.PaymentFailureReason_FAILURE_REASON_NONE),
		payment(lnrpc.Payment_SUCCEEDED, lnrpc.PaymentFailureReason_FAILURE_REASON_NONE),
		payment(lnrpc.Payment_FAILED, lnrpc.PaymentFailureReason_FAILURE_REASON_NO_ROUTE),
	}, 10)

	if got := c.IndexOffset(); got != 10 {
		t.Fatalf("expected offset 10, got %d", got)
	}
	if got := c.StatusCounts()[lnrpc.Payment_SUCCEEDED]; got != 2 {
		t.Errorf("expected 2 succeeded, got %d", got)
	}
	if got := c.StatusCounts()[lnrpc.Payment_FAILED]; got != 1 {
		t.Errorf("expected 1 failed, got %d", got)
	}
	if got := c.FailureReasonCounts()[lnrpc.PaymentFailureReason_FAILURE_REASON_NO_ROUTE]; got != 1 {
		t.Errorf("expected 1 no_route, got %d", got)
	}

	// A second apply adds on top: tallies are running totals.
	c.Apply([]*lnrpc.Payment{
		payment(lnrpc.Payment_SUCCEEDED, lnrpc.PaymentFailureReason_FAILURE_REASON_NONE),
	}, 11)

	if got := c.StatusCounts()[lnrpc.Payment_SUCCEEDED]; got != 3 {
		t.Errorf("expected 3 succeeded after second apply, got %d", got)
	}
	if got := c.IndexOffset(); got != 11 {
		t.Errorf("expected offset 11, got %d", got)
	}
}

func TestCursor_OffsetNeverDecreases(t *testing.T) {
	c := New()
	c.Apply(nil, 10)

	// lnd reports 0 for an empty page; the cursor must not regress.
	c.Apply(nil, 0)
	if got := c.IndexOffset(); got != 10 {
		t.Fatalf("offset regressed to %d after empty page", got)
	}

	c.Apply(nil, 5)
	if got := c.IndexOffset(); got != 10 {
		t.Fatalf("offset regressed to %d after lower next-offset", got)
	}

	// Equal next-offset is a no-op, not an error.
	c.Apply(nil, 10)
	if got := c.IndexOffset(); got != 10 {
		t.Fatalf("expected offset 10, got %d", got)
	}
}

func TestCursor_CountAccessorsReturnCopies(t *testing.T) {
	c := New()
	c.Apply([]*lnrpc.Payment{
		payment(lnrpc.Payment_IN_FLIGHT, lnrpc.PaymentFailureReason_FAILURE_REASON_NONE),
	}, 1)

	sc := c.StatusCounts()
	sc[lnrpc.Payment_IN_FLIGHT] = 99
	if got := c.StatusCounts()[lnrpc.Payment_IN_FLIGHT]; got != 1 {
		t.Errorf("mutating the returned map leaked into the cursor: got %d", got)
	}

	fc := c.FailureReasonCounts()
	fc[lnrpc.PaymentFailureReason_FAILURE_REASON_NONE] = 99
	if got := c.FailureReasonCounts()[lnrpc.PaymentFailureReason_FAILURE_REASON_NONE]; got != 1 {
		t.Errorf("mutating the returned map leaked into the cursor: got %d", got)
	}
}

func TestCursor_SnapshotKeyedByEnumName(t *testing.T) {
	c := New()
	c.Apply([]*lnrpc.Payment{
		payment(lnrpc.Payment_SUCCEEDED, lnrpc.PaymentFailureReason_FAILURE_REASON_NONE),
		payment(lnrpc.Payment_FAILED, lnrpc.PaymentFailureReason_FAILURE_REASON_TIMEOUT),
	}, 7)

	snap := c.Snapshot()
	if snap.IndexOffset != 7 {
		t.Errorf("expected offset 7 in snapshot, got %d", snap.IndexOffset)
	}
	if got := snap.StatusCounts["SUCCEEDED"]; got != 1 {
		t.Errorf("expected SUCCEEDED=1, got %d (snapshot: %+v)", got, snap.StatusCounts)
	}
	if got := snap.FailureReasonCounts["FAILURE_REASON_TIMEOUT"]; got != 1 {
		t.Errorf("expected FAILURE_REASON_TIMEOUT=1, got %d", got)
	}
}

func TestCursor_SnapshotRoundTrip(t *testing.T) {
	c := New()
	c.Apply([]*lnrpc.Payment{
		payment(lnrpc.Payment_SUCCEEDED, lnrpc.PaymentFailureReason_FAILURE_REASON_NONE),
		payment(lnrpc.Payment_FAILED, lnrpc.PaymentFailureReason_FAILURE_REASON_INSUFFICIENT_BALANCE),
	}, 42)

	restored := New()
	restored.loadSnapshot(c.Snapshot())

	if restored.IndexOffset() != 42 {
		t.Errorf("expected offset 42 after restore, got %d", restored.IndexOffset())
	}
	if !reflect.DeepEqual(restored.StatusCounts(), c.StatusCounts()) {
		t.Errorf("status counts differ after restore: %v vs %v", restored.StatusCounts(), c.StatusCounts())
	}
	if !reflect.DeepEqual(restored.FailureReasonCounts(), c.FailureReasonCounts()) {
		t.Errorf("failure reason counts differ after restore")
	}
}

func TestCursor_LoadSnapshotDropsUnknownNames(t *testing.T) {
	c := New()
	c.loadSnapshot(Snapshot{
		IndexOffset: 3,
		StatusCounts: map[string]int64{
			"SUCCEEDED":       2,
			"NOT_A_STATUS_42": 7,
		},
		FailureReasonCounts: map[string]int64{
			"FAILURE_REASON_NONE": 2,
			"FAILURE_REASON_???":  7,
		},
	})

	if got := len(c.StatusCounts()); got != 1 {
		t.Errorf("expected 1 status entry after restore, got %d", got)
	}
	if got := len(c.FailureReasonCounts()); got != 1 {
		t.Errorf("expected 1 reason entry after restore, got %d", got)
	}
	if got := c.IndexOffset(); got != 3 {
		t.Errorf("expected offset 3, got %d", got)
	}
}

func TestCursor_ConcurrentReadersAndWriters(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Apply([]*lnrpc.Payment{
					payment(lnrpc.Payment_SUCCEEDED, lnrpc.PaymentFailureReason_FAILURE_REASON_NONE),
				}, uint64(j))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := c.Snapshot()
				// Counts and offset come from a single locked section, so a
				// snapshot can never show payments without a status entry.
				if len(snap.StatusCounts) == 0 && snap.IndexOffset > 0 {
					t.Error("snapshot shows an advanced offset with no counts")
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := c.StatusCounts()[lnrpc.Payment_SUCCEEDED]; got != 800 {
		t.Errorf("expected 800 succeeded, got %d", got)
	}
}
