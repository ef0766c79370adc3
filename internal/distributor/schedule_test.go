package distributor

import (
	"context"
	"sync"
	"testing"
	"time"

	"gridd/internal/queue"
	"gridd/pkg/types"
)

func TestNewSession_PlacesOnRegisteredNode(t *testing.T) {
	d := newTestDistributor(t, testConfig())
	addLocal(t, d, localNode(t, "n1", 1, firefoxCaps))

	sess, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if sess.NodeID != "n1" {
		t.Fatalf("session on %v, want n1", sess.NodeID)
	}

	// Directory knows it, status shows the slot occupied.
	got, err := d.QuerySession(sess.ID)
	if err != nil || got.NodeID != "n1" {
		t.Fatalf("QuerySession: %+v, %v", got, err)
	}
	st := d.Status()
	if st.HasCapacity {
		t.Fatalf("single slot should be occupied now")
	}
}

func TestNewSession_ValidatesRequest(t *testing.T) {
	d := newTestDistributor(t, testConfig())

	if _, err := d.NewSession(context.Background(), types.SessionRequest{}); !IsInvalidRequest(err) {
		t.Fatalf("expected invalid-request for no profiles, got %v", err)
	}
	req := types.NewSessionRequest(types.Capabilities{})
	if _, err := d.NewSession(context.Background(), req); !IsInvalidRequest(err) {
		t.Fatalf("expected invalid-request for empty profile, got %v", err)
	}
	bad := types.NewSessionRequest(firefoxCaps)
	bad.Dialects = []types.Dialect{"SOAP"}
	if _, err := d.NewSession(context.Background(), bad); !IsInvalidRequest(err) {
		t.Fatalf("expected invalid-request for unsupported dialect, got %v", err)
	}
}

func TestNewSession_TimesOutWithoutCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 150 * time.Millisecond
	d := newTestDistributor(t, cfg)

	start := time.Now()
	_, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
	if !queue.IsTimeout(err) {
		t.Fatalf("expected backlog timeout, got %v", err)
	}
	if waited := time.Since(start); waited < 100*time.Millisecond {
		t.Fatalf("request gave up too early: %v", waited)
	}
}

func TestNewSession_WaitsForCapacityToAppear(t *testing.T) {
	d := newTestDistributor(t, testConfig())

	done := make(chan error, 1)
	var sess types.Session
	go func() {
		var err error
		sess, err = d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
		done <- err
	}()

	// No node yet; the request waits in the backlog.
	waitUntil(t, time.Second, func() bool { return d.QueueLen() == 1 }, "request queued")

	addLocal(t, d, localNode(t, "n1", 1, firefoxCaps))
	if err := <-done; err != nil {
		t.Fatalf("NewSession after node arrived: %v", err)
	}
	if sess.NodeID != "n1" {
		t.Fatalf("session on %v, want n1", sess.NodeID)
	}
	if d.QueueLen() != 0 {
		t.Fatalf("backlog should be empty, len=%d", d.QueueLen())
	}
}

func TestNewSession_WaitsForFreedSlot(t *testing.T) {
	d := newTestDistributor(t, testConfig())
	addLocal(t, d, localNode(t, "n1", 1, firefoxCaps))

	first, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
	if err != nil {
		t.Fatalf("NewSession first: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
		done <- err
	}()
	waitUntil(t, time.Second, func() bool { return d.QueueLen() == 1 }, "second request queued")

	// Freeing the slot lets the queued request through.
	if err := d.StopSession(context.Background(), first.ID); err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("queued request should have been placed: %v", err)
	}
}

func TestNewSession_FIFOAcrossWaiters(t *testing.T) {
	d := newTestDistributor(t, testConfig())

	const waiters = 3
	type result struct {
		order int
		err   error
	}
	results := make(chan result, waiters)
	var placed []int
	var mu sync.Mutex

	for i := 0; i < waiters; i++ {
		req := types.NewSessionRequest(firefoxCaps)
		go func(order int) {
			_, err := d.NewSession(context.Background(), req)
			mu.Lock()
			placed = append(placed, order)
			mu.Unlock()
			results <- result{order: order, err: err}
		}(i)
		// Stagger submissions so queue order is deterministic.
		waitUntil(t, time.Second, func() bool { return d.QueueLen() == i+1 }, "request queued")
	}

	// One slot serves the three waiters one at a time.
	addLocal(t, d, localNode(t, "n1", 1, firefoxCaps))
	for i := 0; i < waiters; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("waiter %d failed: %v", r.order, r.err)
		}
		sessions := d.Sessions()
		if len(sessions) != 1 {
			t.Fatalf("expected exactly one live session, got %d", len(sessions))
		}
		if err := d.StopSession(context.Background(), sessions[0].ID); err != nil {
			t.Fatalf("StopSession: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, order := range placed {
		if i != order {
			t.Fatalf("placement order %v, want FIFO", placed)
		}
	}
}

func TestNewSession_SpreadsAcrossNodes(t *testing.T) {
	d := newTestDistributor(t, testConfig())
	addLocal(t, d, localNode(t, "n1", 2, firefoxCaps))
	addLocal(t, d, localNode(t, "n2", 2, firefoxCaps))

	owners := map[types.NodeID]int{}
	for i := 0; i < 4; i++ {
		sess, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
		if err != nil {
			t.Fatalf("NewSession %d: %v", i, err)
		}
		owners[sess.NodeID]++
	}
	if owners["n1"] != 2 || owners["n2"] != 2 {
		t.Fatalf("least-loaded selection should alternate, got %v", owners)
	}
}

func TestNewSession_HonorsStereotypes(t *testing.T) {
	d := newTestDistributor(t, testConfig())
	addLocal(t, d, localNode(t, "ff", 1, types.Capabilities{"browserName": "firefox"}))
	addLocal(t, d, localNode(t, "ch", 1, types.Capabilities{"browserName": "chrome"}))

	sess, err := d.NewSession(context.Background(), types.NewSessionRequest(types.Capabilities{"browserName": "chrome"}))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if sess.NodeID != "ch" {
		t.Fatalf("chrome request landed on %v", sess.NodeID)
	}

	cfgMismatch := types.NewSessionRequest(types.Capabilities{"browserName": "safari"})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := d.NewSession(ctx, cfgMismatch); err == nil {
		t.Fatalf("safari request should not place anywhere")
	}
}

func TestNewSession_ProfileFallbackOrder(t *testing.T) {
	d := newTestDistributor(t, testConfig())
	addLocal(t, d, localNode(t, "ch", 1, types.Capabilities{"browserName": "chrome"}))

	req := types.NewSessionRequest(
		types.Capabilities{"browserName": "firefox"},
		types.Capabilities{"browserName": "chrome"},
	)
	sess, err := d.NewSession(context.Background(), req)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if sess.RequestedCapabilities["browserName"] != "chrome" {
		t.Fatalf("fallback profile should have been used, got %v", sess.RequestedCapabilities)
	}
}

func TestNewSession_ConcurrentContentionNeverDoubleBooks(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 250 * time.Millisecond
	d := newTestDistributor(t, cfg)
	addLocal(t, d, localNode(t, "n1", 1, firefoxCaps))
	addLocal(t, d, localNode(t, "n2", 1, firefoxCaps))
	addLocal(t, d, localNode(t, "n3", 1, firefoxCaps))

	const callers = 10
	var wg sync.WaitGroup
	sessions := make(chan types.Session, callers)
	failures := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
			if err != nil {
				failures <- err
				return
			}
			sessions <- sess
		}()
	}
	wg.Wait()
	close(sessions)
	close(failures)

	owners := map[types.NodeID]int{}
	n := 0
	for sess := range sessions {
		owners[sess.NodeID]++
		n++
	}
	if n != 3 {
		t.Fatalf("%d sessions on 3 slots", n)
	}
	for id, count := range owners {
		if count != 1 {
			t.Fatalf("node %v double-booked: %d sessions", id, count)
		}
	}
	for err := range failures {
		if !queue.IsTimeout(err) {
			t.Fatalf("losers should time out, got %v", err)
		}
	}
}

func TestNewSession_UnmatchableHeadDoesNotStarveOthers(t *testing.T) {
	d := newTestDistributor(t, testConfig())
	addLocal(t, d, localNode(t, "ch", 1, types.Capabilities{"browserName": "chrome"}))

	// A firefox request nothing can serve goes in first and sits at the
	// head of the backlog.
	headDone := make(chan error, 1)
	go func() {
		_, err := d.NewSession(context.Background(), types.NewSessionRequest(firefoxCaps))
		headDone <- err
	}()
	waitUntil(t, time.Second, func() bool { return d.QueueLen() == 1 }, "unmatchable request queued")

	// The chrome request behind it must still reach the free chrome slot.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	sess, err := d.NewSession(ctx, types.NewSessionRequest(types.Capabilities{"browserName": "chrome"}))
	if err != nil {
		t.Fatalf("request behind the unmatchable head should place: %v", err)
	}
	if sess.NodeID != "ch" {
		t.Fatalf("session on %v, want ch", sess.NodeID)
	}

	// The head keeps waiting and eventually runs out its own budget.
	if d.QueueLen() != 1 {
		t.Fatalf("head request should still be queued, len=%d", d.QueueLen())
	}
	if err := <-headDone; !queue.IsTimeout(err) {
		t.Fatalf("head request should time out, got %v", err)
	}
}

func TestNewSession_PerRequestTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = time.Hour
	d := newTestDistributor(t, cfg)

	req := types.NewSessionRequest(firefoxCaps)
	req.Timeout = 150 * time.Millisecond

	start := time.Now()
	_, err := d.NewSession(context.Background(), req)
	if !queue.IsTimeout(err) {
		t.Fatalf("expected timeout from the request's own budget, got %v", err)
	}
	if waited := time.Since(start); waited > 2*time.Second {
		t.Fatalf("request waited %v, the per-request budget should have cut it short", waited)
	}
}
