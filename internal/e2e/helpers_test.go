package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gridd/internal/distributor"
	"gridd/internal/eventbus"
	"gridd/internal/httpapi"
	"gridd/internal/node"
	"gridd/pkg/types"
)

// hub bundles the pieces an end-to-end test talks to: the HTTP server, the
// distributor behind it, and the bus carrying lifecycle events.
type hub struct {
	srv *httptest.Server
	d   *distributor.Distributor
	bus *eventbus.LocalBus
}

// fastConfig keeps waits short. The health loop ticker is effectively off;
// tests force rounds with CheckNodes so failure timing stays deterministic.
func fastConfig() distributor.Config {
	return distributor.Config{
		RequestTimeout:          2 * time.Second,
		RetryInterval:           10 * time.Millisecond,
		HealthCheckInterval:     time.Hour,
		ProbeTimeout:            time.Second,
		DownThreshold:           2,
		FallbackHeartbeatPeriod: time.Hour,
	}
}

func newHub(t *testing.T, cfg distributor.Config) *hub {
	t.Helper()
	bus := eventbus.NewLocalBus()
	t.Cleanup(bus.Close)
	d := distributor.New(cfg)
	t.Cleanup(d.Close)
	d.SetEventPublisher(bus)
	t.Cleanup(d.Directory().AttachBus(bus))
	srv := httptest.NewServer(httpapi.NewMux(d))
	t.Cleanup(srv.Close)
	return &hub{srv: srv, d: d, bus: bus}
}

func localNode(t *testing.T, id types.NodeID, slots int, caps types.Capabilities) *node.LocalNode {
	t.Helper()
	n, err := node.New(node.Config{
		ID:    id,
		URI:   "local://" + string(id),
		Slots: []node.SlotSpec{{Stereotype: caps, Count: slots}},
	})
	if err != nil {
		t.Fatalf("node.New(%s): %v", id, err)
	}
	return n
}

func addLocal(t *testing.T, h *hub, n *node.LocalNode) {
	t.Helper()
	if err := h.d.AddNode(context.Background(), n); err != nil {
		t.Fatalf("AddNode(%s): %v", n.ID(), err)
	}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpDelete(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp
}

// createSession posts a session request for the given profile and returns the
// status code plus the decoded session when the hub answered 200.
func createSession(t *testing.T, h *hub, caps types.Capabilities) (int, types.Session) {
	t.Helper()
	payload, _ := json.Marshal(types.NewSessionPayload{Capabilities: []types.Capabilities{caps}})
	resp, body := httpPostJSON(t, h.srv.URL+"/session", payload)
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, types.Session{}
	}
	var out types.CreateSessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode session: %v (%s)", err, body)
	}
	return resp.StatusCode, out.Session
}

func hubStatus(t *testing.T, h *hub) types.StatusResponse {
	t.Helper()
	resp, body := httpGet(t, h.srv.URL+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
