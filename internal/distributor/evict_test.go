package distributor

import (
	"context"
	"errors"
	"testing"
	"time"

	"gridd/internal/directory"
	"gridd/internal/eventbus"
	"gridd/pkg/types"
)

func TestEvict_CleansDirectoryAndPublishes(t *testing.T) {
	cfg := testConfig()
	cfg.DownThreshold = 1
	d := newTestDistributor(t, cfg)
	rec := eventbus.NewRecorder()
	d.SetEventPublisher(rec)

	n := localNode(t, "n1", 1, firefoxCaps)
	addLocal(t, d, n)
	sess, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// Node dies; one failed probe crosses the threshold of 1.
	n.SetAvailability(types.AvailabilityDown)
	d.CheckNodes()

	if len(d.Nodes()) != 0 {
		t.Fatalf("dead node still registered")
	}
	if _, err := d.QuerySession(sess.ID); !directory.IsSessionNotFound(err) {
		t.Fatalf("session should be gone with its node, got %v", err)
	}

	if _, ok := rec.WaitFor(eventbus.NodeRemoved, time.Second); !ok {
		t.Fatalf("node-removed event missing; got %+v", rec.Events())
	}
	closed := rec.OfType(eventbus.SessionClosed)
	if len(closed) != 1 || closed[0].SessionID != sess.ID {
		t.Fatalf("expected one session-closed for %v, got %+v", sess.ID, closed)
	}
}

func TestReRegister_DropsStaleSessions(t *testing.T) {
	d := newTestDistributor(t, testConfig())
	rec := eventbus.NewRecorder()
	d.SetEventPublisher(rec)

	f := newFakeNode("n1")
	if err := d.AddNodeStatus(f, f.status); err != nil {
		t.Fatalf("AddNodeStatus: %v", err)
	}
	sess, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// The node restarts and registers fresh; its old session is gone.
	g := newFakeNode("n1")
	if err := d.AddNodeStatus(g, g.status); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	if _, err := d.QuerySession(sess.ID); !directory.IsSessionNotFound(err) {
		t.Fatalf("stale session survived re-registration: %v", err)
	}
	closed := rec.OfType(eventbus.SessionClosed)
	if len(closed) != 1 || closed[0].SessionID != sess.ID {
		t.Fatalf("expected session-closed for the stale session, got %+v", closed)
	}
	// Fresh registration means fresh capacity.
	if !d.Status().HasCapacity {
		t.Fatalf("re-registered node should have a free slot")
	}
}

func TestEvict_FreesWaitersToOtherNodes(t *testing.T) {
	cfg := testConfig()
	cfg.DownThreshold = 1
	d := newTestDistributor(t, cfg)

	bad := newFakeNode("bad")
	bad.createErr = errors.New("runtime wedged")
	if err := d.AddNodeStatus(bad, bad.status); err != nil {
		t.Fatalf("AddNodeStatus: %v", err)
	}

	// The only node keeps failing creates, so the request waits.
	done := make(chan error, 1)
	go func() {
		_, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
		done <- err
	}()
	waitUntil(t, time.Second, func() bool { return d.QueueLen() == 1 }, "request queued")

	// The wedged node is evicted and a healthy one arrives; the waiting
	// request must land there.
	bad.setStatusErr(errors.New("connection refused"))
	d.CheckNodes()
	addLocal(t, d, localNode(t, "good", 1, firefoxCaps))

	if err := <-done; err != nil {
		t.Fatalf("waiter should land on the healthy node: %v", err)
	}
	sessions := d.Sessions()
	if len(sessions) != 1 || sessions[0].NodeID != "good" {
		t.Fatalf("session should live on the healthy node: %+v", sessions)
	}
}
