// Package natsclient provides a managed NATS connection for the chunk
// transport: connection lifecycle, reconnect tracking, and
// subscription plumbing with drain-on-close semantics.
package natsclient

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/c360/femtostream/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error values
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrClientClosed = stderrors.New("client is closed")
)

// Handler processes one received message payload.
type Handler func(ctx context.Context, data []byte)

// Client manages a NATS connection with reconnect tracking.
type Client struct {
	url    string
	status atomic.Value // stores ConnectionStatus
	logger *slog.Logger

	conn *nats.Conn
	subs []*nats.Subscription

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string

	connectedGauge  GaugeSetter
	reconnectsCount CounterIncrementer

	onDisconnect func(error)
	onReconnect  func()

	mu     sync.RWMutex
	closed atomic.Bool
}

// GaugeSetter receives connection-state updates (1 up, 0 down).
type GaugeSetter interface{ Set(float64) }

// CounterIncrementer receives reconnect events.
type CounterIncrementer interface{ Inc() }

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "NewClient", "url validation")
	}

	c := &Client{
		url:           url,
		logger:        slog.Default(),
		maxReconnects: -1, // infinite by default
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
		clientName:    "femtostream",
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

// IsHealthy returns true if the connection is healthy
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
	if c.connectedGauge != nil {
		if status == StatusConnected {
			c.connectedGauge.Set(1)
		} else {
			c.connectedGauge.Set(0)
		}
	}
}

// Connect establishes the NATS connection. It blocks until connected,
// the timeout elapses, or ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapFatal(ErrClientClosed, "Client", "Connect", "closed check")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	c.setStatus(StatusConnecting)

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := nats.Connect(c.url,
		nats.Name(c.clientName),
		nats.Timeout(timeout),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			c.logger.Warn("NATS disconnected", "url", c.url, "error", err)
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.setStatus(StatusConnected)
			if c.reconnectsCount != nil {
				c.reconnectsCount.Inc()
			}
			c.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusDisconnected)
		}),
	)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "Client", "Connect", "nats connect")
	}

	c.conn = conn
	c.setStatus(StatusConnected)
	c.logger.Info("Connected to NATS", "url", conn.ConnectedUrl())
	return nil
}

// Subscribe registers a handler for a subject. Subscriptions are
// drained when the client closes.
func (c *Client) Subscribe(ctx context.Context, subject string, handler Handler) error {
	if subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "Subscribe", "subject validation")
	}
	if handler == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "Subscribe", "handler validation")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Subscribe", "connection check")
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(ctx, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", "subject "+subject)
	}

	c.subs = append(c.subs, sub)
	c.logger.Debug("Subscribed", "subject", subject)
	return nil
}

// Publish sends data on a subject.
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Publish", "connection check")
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "subject "+subject)
	}
	return nil
}

// Close drains subscriptions and closes the connection. It is safe to
// call more than once; later calls are no-ops.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.setStatus(StatusClosed)
		return nil
	}

	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("Failed to unsubscribe", "subject", sub.Subject, "error", err)
		}
	}
	c.subs = nil

	done := make(chan error, 1)
	go func() {
		done <- c.conn.Drain()
	}()

	select {
	case err := <-done:
		c.setStatus(StatusClosed)
		if err != nil {
			return errors.WrapTransient(err, "Client", "Close", "drain")
		}
		return nil
	case <-ctx.Done():
		c.conn.Close()
		c.setStatus(StatusClosed)
		return errors.WrapTransient(ctx.Err(), "Client", "Close", "drain timeout")
	}
}
