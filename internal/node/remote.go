package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gridd/pkg/types"
)

// Remote talks to a node agent over its HTTP API and satisfies the same
// surface as LocalNode, so the distributor schedules onto both the same way.
type Remote struct {
	id  types.NodeID
	uri string
	hc  *http.Client
}

// NewRemote wraps the node agent listening at uri. No global client timeout
// is set; callers bound each call through ctx.
func NewRemote(id types.NodeID, uri string) *Remote {
	return &Remote{id: id, uri: strings.TrimRight(uri, "/"), hc: &http.Client{}}
}

// SetHTTPClient swaps the underlying client, mainly for tests.
func (r *Remote) SetHTTPClient(hc *http.Client) { r.hc = hc }

func (r *Remote) ID() types.NodeID { return r.id }

func (r *Remote) URI() string { return r.uri }

func (r *Remote) NewSession(ctx context.Context, req types.SessionRequest) (types.Session, error) {
	var out types.CreateSessionResponse
	status, msg, err := r.do(ctx, http.MethodPost, "/session", req, &out)
	if err != nil {
		return types.Session{}, err
	}
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return out.Session, nil
	case status == http.StatusConflict:
		return types.Session{}, ErrNoCapacity(msg)
	default:
		return types.Session{}, fmt.Errorf("node %s: new session: %s (status %d)", r.id, msg, status)
	}
}

func (r *Remote) Stop(ctx context.Context, id types.SessionID) error {
	status, msg, err := r.do(ctx, http.MethodDelete, "/session/"+string(id), nil, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrSessionNotFound(id)
	default:
		return fmt.Errorf("node %s: stop session: %s (status %d)", r.id, msg, status)
	}
}

func (r *Remote) Status(ctx context.Context) (types.NodeStatus, error) {
	var out types.NodeStatus
	status, msg, err := r.do(ctx, http.MethodGet, "/status", nil, &out)
	if err != nil {
		return types.NodeStatus{}, err
	}
	if status != http.StatusOK {
		return types.NodeStatus{}, fmt.Errorf("node %s: status: %s (status %d)", r.id, msg, status)
	}
	return out, nil
}

// do runs one JSON round trip. Transport failures come back as unreachable
// errors; HTTP-level failures surface through the returned status plus the
// server's error message.
func (r *Remote) do(ctx context.Context, method, path string, in, out any) (int, string, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, "", fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.uri+path, body)
	if err != nil {
		return 0, "", fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		return 0, "", ErrUnreachable(r.uri, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, "", ErrUnreachable(r.uri, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, "", fmt.Errorf("decoding response: %w", err)
			}
		}
		return resp.StatusCode, "", nil
	}
	var apiErr types.ErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
		return resp.StatusCode, apiErr.Error, nil
	}
	return resp.StatusCode, strings.TrimSpace(string(data)), nil
}
