package apiclient

import (
	"context"

	"github.com/marmos91/distd/pkg/api/handlers"
)

// Readiness is the body of a successful readiness probe.
type Readiness struct {
	ActiveClients int `json:"active_clients"`
}

// Ping calls the liveness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

// Ready calls the readiness probe. A server that is not accepting
// connections yields an *APIError with IsUnavailable true.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	var r Readiness
	if err := c.get(ctx, "/healthz/ready", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Stats returns the server statistics.
func (c *Client) Stats(ctx context.Context) (*handlers.StatsPayload, error) {
	var s handlers.StatsPayload
	if err := c.get(ctx, "/stats", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Connections lists the live client sessions.
func (c *Client) Connections(ctx context.Context) ([]handlers.ConnectionInfo, error) {
	var conns []handlers.ConnectionInfo
	if err := c.get(ctx, "/connections", &conns); err != nil {
		return nil, err
	}
	return conns, nil
}
