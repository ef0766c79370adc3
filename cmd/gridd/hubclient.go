package main

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

// hubClient is the node agent's thin client for the hub's registration
// endpoints.
type hubClient struct {
	base string
	hc   *http.Client
}

func newHubClient(base string) *hubClient {
	return &hubClient{base: strings.TrimRight(base, "/"), hc: &http.Client{}}
}

func (c *hubClient) register(ctx context.Context, st types.NodeStatus) error {
	return c.post(ctx, "/node", types.RegisterNodeRequest{Status: st}, http.StatusCreated)
}

func (c *hubClient) heartbeat(ctx context.Context, st types.NodeStatus) error {
	return c.post(ctx, "/node/"+string(st.NodeID)+"/heartbeat", st, http.StatusNoContent)
}

func (c *hubClient) deregister(ctx context.Context, id types.NodeID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/node/"+string(id), nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("deregister: hub answered %d", resp.StatusCode)
	}
	return nil
}

func (c *hubClient) post(ctx context.Context, path string, body any, want int) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != want {
		var apiErr types.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: hub answered %d: %s", path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s: hub answered %d", path, resp.StatusCode)
	}
	return nil
}
