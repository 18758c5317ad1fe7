// Package client queries the status socket of a running sweep.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/lc/ipsniper/internal/socket"
	"github.com/lc/ipsniper/pkg/api"
)

// Client holds an http.Client wired to a Unix socket.
type Client struct {
	hc   *http.Client
	base string // placeholder scheme and host for request URLs
}

// New returns a Client for the socket at socketPath.
func New(socketPath string) *Client {
	return NewWithSocket(socketPath, socket.New(socket.DefaultOptions(), nil))
}

// NewWithSocket is New with a caller-supplied dialer.
func NewWithSocket(socketPath string, sock *socket.Socket) *Client {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		return sock.Dial(ctx, socketPath)
	}
	return &Client{
		hc:   &http.Client{Transport: &http.Transport{DialContext: dial}},
		base: "http://unix",
	}
}

// Status fetches the live sweep status.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	err := c.get(ctx, api.StatusPath, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sweep returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
