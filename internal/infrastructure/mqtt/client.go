package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
)

// Client wraps the single paho connection that carries both the telemetry
// and the command channel.
//
// Unlike a long-lived service client it does not reconnect on its own: the
// session owns reconnection through its bounded retry policy. Inbound
// messages are never handled on paho's goroutines; they are queued and
// drained by the caller from Yield/Drain.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	cfg      config.MQTTConfig
	clientID string

	// newPaho builds the underlying client. Tests replace it with a fake.
	newPaho func(*pahomqtt.ClientOptions) pahomqtt.Client

	mu            sync.RWMutex
	client        pahomqtt.Client
	connected     bool
	paused        bool
	subscriptions map[string]byte

	queue *eventQueue

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Message is an inbound message held until the session drains it.
type Message struct {
	Topic    string
	Payload  []byte
	Received time.Time
}

// New creates an unconnected client identified by cfg.Broker.ClientID.
func New(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:           cfg,
		clientID:      cfg.Broker.ClientID,
		newPaho:       pahomqtt.NewClient,
		subscriptions: make(map[string]byte),
		queue:         newEventQueue(cfg.EventQueueSize),
	}
}

// Connect opens the broker connection. Connecting an already connected
// client is a no-op.
//
// Parameters:
//   - ctx: Context for the connection attempt; cancellation stops waiting
//     on the connect token
//
// Returns:
//   - error: ErrConnectionFailed wrapping the broker error, or the context
//     error when ctx ends before the token completes
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && c.client != nil && c.client.IsConnected() {
		return nil
	}

	opts := buildClientOptions(c.cfg, c.clientID)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	client := c.newPaho(opts)
	if err := waitToken(ctx, client.Connect(), defaultConnectTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.client = client
	c.connected = true
	return nil
}

// handleConnectionLost is called by paho when the connection drops.
func (c *Client) handleConnectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "client_id", c.clientID, "error", err)
	}
}

// Disconnect closes the broker connection but keeps subscriptions and
// queued messages so the channel can be inspected or reconnected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnectionOpen() {
		c.client.Disconnect(defaultDisconnectQuiesce)
	}
	c.connected = false
	return nil
}

// Terminate disconnects and releases everything the client holds.
func (c *Client) Terminate() error {
	if err := c.Disconnect(); err != nil {
		return err
	}

	c.mu.Lock()
	c.client = nil
	c.paused = false
	c.subscriptions = make(map[string]byte)
	c.mu.Unlock()

	c.queue.reset()
	return nil
}

// Pause suspends delivery of inbound messages to the caller. While paused
// Yield never reports pending messages and Drain returns nothing; messages
// keep accumulating in the queue.
func (c *Client) Pause(paused bool) {
	c.mu.Lock()
	c.paused = paused
	c.mu.Unlock()
}

// Paused reports whether the client is paused.
func (c *Client) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Yield waits up to timeout for an inbound message. It reports whether a
// message is pending without consuming it.
func (c *Client) Yield(ctx context.Context, timeout time.Duration) (bool, error) {
	if c.Paused() {
		return false, sleepContext(ctx, timeout)
	}
	return c.queue.wait(ctx, timeout)
}

// Drain removes and returns every queued message, oldest first.
func (c *Client) Drain() []Message {
	if c.Paused() {
		return nil
	}
	return c.queue.drain()
}

// Pending returns the number of queued inbound messages.
func (c *Client) Pending() int {
	return c.queue.len()
}

// Dropped returns the number of inbound messages discarded because the
// queue was full.
func (c *Client) Dropped() uint64 {
	return c.queue.droppedCount()
}

// HealthCheck verifies the connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetLogger sets a logger for dropped messages and connection loss.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// enqueueHandler returns the paho callback that feeds the event queue.
func (c *Client) enqueueHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		payload := append([]byte(nil), msg.Payload()...)
		if !c.queue.push(Message{Topic: msg.Topic(), Payload: payload, Received: time.Now().UTC()}) {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT event queue full, message dropped",
					"topic", msg.Topic(),
					"client_id", c.clientID,
				)
			}
		}
	}
}

// waitToken waits for a paho token, bounded by timeout and ctx.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
