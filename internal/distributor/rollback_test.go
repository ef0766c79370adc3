package distributor

import (
	"context"
	"testing"
	"time"

	"gridd/internal/directory"
	"gridd/internal/eventbus"
	"gridd/internal/queue"
	"gridd/pkg/types"
)

func TestPlacement_LosingTimeoutRaceStopsOrphan(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 60 * time.Millisecond
	d := newTestDistributor(t, cfg)

	f := newFakeNode("n1")
	f.createDelay = 250 * time.Millisecond // finishes well after the budget
	if err := d.AddNodeStatus(f, f.status); err != nil {
		t.Fatalf("AddNodeStatus: %v", err)
	}

	_, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
	if !queue.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}

	// The create eventually finished; its session must be torn down, not
	// leaked.
	waitUntil(t, 2*time.Second, func() bool { return len(f.stoppedIDs()) == 1 }, "orphan stopped on node")
	if got := d.Sessions(); len(got) != 0 {
		t.Fatalf("orphaned session leaked into the directory: %+v", got)
	}
	waitUntil(t, time.Second, func() bool { return d.Status().HasCapacity }, "slot released after rollback")
}

func TestStopSession_FreesSlotAndPublishes(t *testing.T) {
	d := newTestDistributor(t, testConfig())
	rec := eventbus.NewRecorder()
	d.SetEventPublisher(rec)
	addLocal(t, d, localNode(t, "n1", 1, firefoxCaps))

	sess, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if d.Status().HasCapacity {
		t.Fatalf("slot should be busy")
	}

	if err := d.StopSession(context.Background(), sess.ID); err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if !d.Status().HasCapacity {
		t.Fatalf("slot should be free after stop")
	}
	if _, err := d.QuerySession(sess.ID); !directory.IsSessionNotFound(err) {
		t.Fatalf("directory should forget the session, got %v", err)
	}
	if e, ok := rec.WaitFor(eventbus.SessionClosed, time.Second); !ok || e.SessionID != sess.ID {
		t.Fatalf("session-closed event missing or wrong: %+v, %v", e, ok)
	}

	if err := d.StopSession(context.Background(), sess.ID); !directory.IsSessionNotFound(err) {
		t.Fatalf("second stop should be not-found, got %v", err)
	}
}

func TestClose_FailsQueuedRequests(t *testing.T) {
	d := New(testConfig())

	done := make(chan error, 1)
	go func() {
		_, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
		done <- err
	}()
	waitUntil(t, time.Second, func() bool { return d.QueueLen() == 1 }, "request queued")

	d.Close()
	if err := <-done; !queue.IsQueueClosed(err) {
		t.Fatalf("expected queue-closed after shutdown, got %v", err)
	}
	if d.Ready() {
		t.Fatalf("closed distributor must not report ready")
	}
	if _, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps)); !queue.IsQueueClosed(err) {
		t.Fatalf("NewSession after close should fail, got %v", err)
	}
	d.Close() // idempotent
}
