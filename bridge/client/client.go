// Package client implements a reconnecting bridge client. Reconnect policy
// (exponential backoff) lives here at the transport layer; the dispatcher
// itself never retries.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/zcli/zkernel/bridge"
)

// Client is a synchronous bridge client: one Call in flight at a time.
type Client struct {
	url    string // ws:// or wss:// endpoint
	origin string
	apiKey string
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a client for the given bridge endpoint. The connection is
// established lazily on the first Call, or explicitly via Connect.
func New(rawURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    rawURL,
		origin: "http://localhost/",
		apiKey: apiKey,
		logger: logger,
	}
}

// Connect dials the bridge, retrying with exponential backoff until the
// context is cancelled or the server refuses the handshake outright.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	operation := func() error {
		conn, err := c.dial()
		if err != nil {
			c.logger.Debug("bridge dial failed, will retry", zap.Error(err))
			return err
		}
		c.conn = conn
		return nil
	}
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("connect to bridge %s: %w", c.url, err)
	}
	c.logger.Info("connected to bridge", zap.String("url", c.url))
	return nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(c.url, c.origin)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if c.apiKey != "" {
		cfg.Header = http.Header{"Authorization": {"Bearer " + c.apiKey}}
	}
	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Call submits one request and waits for its envelope. A missing request id
// is filled in. On a broken connection the call fails and the connection is
// dropped; the next Call reconnects.
func (c *Client) Call(ctx context.Context, req bridge.Request) (*bridge.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := websocket.Message.Send(c.conn, string(payload)); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("send request: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var frame []byte
		if err := websocket.Message.Receive(c.conn, &frame); err != nil {
			c.dropLocked()
			return nil, fmt.Errorf("read envelope: %w", err)
		}
		var resp bridge.Response
		if err := json.Unmarshal(frame, &resp); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		if resp.ID != req.ID {
			// Stale reply from an earlier aborted call; skip it.
			c.logger.Debug("skipping unmatched envelope", zap.String("id", resp.ID))
			continue
		}
		return &resp, nil
	}
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
