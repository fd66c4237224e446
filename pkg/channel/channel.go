// Package channel maintains a logical always-on duplex WebSocket channel with
// automatic reconnection, bounded backoff and heartbeat keep-alive. Both the
// widget chat/voice channels and the agent-dashboard live feed run on the
// same abstraction.
package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
	"github.com/leadergroupsaudi/chatkit-go/pkg/metrics"
	"github.com/leadergroupsaudi/chatkit-go/pkg/protocol"
)

const (
	defaultHeartbeatInterval = 30 * time.Second

	// reconnectDialTimeout bounds each automatic redial. Reconnect dials
	// run on a context detached from the caller's Open context, so a
	// request-scoped cancellation cannot poison the retry loop.
	reconnectDialTimeout = 10 * time.Second
)

// Conn is the transport surface the channel drives. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens transport connections. Tests inject failing or scripted
// dialers; production uses the gorilla dialer.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// NewGorillaDialer returns the production WebSocket dialer.
func NewGorillaDialer() Dialer {
	return gorillaDialer{d: websocket.DefaultDialer}
}

type gorillaDialer struct {
	d *websocket.Dialer
}

func (g gorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := g.d.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, core.NewTransportError("websocket dial failed with status "+resp.Status, err)
		}
		return nil, core.NewTransportError("websocket dial failed", err)
	}
	return conn, nil
}

// Config wires a channel to its consumer. Callbacks run on the channel's
// read goroutine (frames, in delivery order) or on timer callbacks (state
// changes caused by reconnect scheduling).
type Config struct {
	URL               string
	Dialer            Dialer
	Clock             clock.Clock
	Logger            *slog.Logger
	Backoff           BackoffPolicy
	HeartbeatInterval time.Duration

	// OnOpen fires on every successful open; first is true only for the
	// first open of this channel instance.
	OnOpen func(first bool)
	// OnText receives every inbound text frame except ping/pong, which the
	// channel consumes itself.
	OnText func(data []byte)
	// OnBinary receives inbound binary frames (voice channel audio).
	OnBinary func(data []byte)
	// OnStateChange observes every state transition.
	OnStateChange func(State)
	// OnExhausted fires once when the reconnect budget runs out.
	OnExhausted func()
}

// Channel is a reconnecting duplex message channel.
type Channel struct {
	cfg Config

	mu              sync.Mutex
	state           State
	conn            Conn
	gen             int
	attempts        int
	shouldReconnect bool
	everOpened      bool
	heartbeat       clock.Timer
	reconnect       clock.Timer
	baseCtx         context.Context

	writeMu sync.Mutex
}

// New creates a channel in the Idle state.
func New(cfg Config) *Channel {
	if cfg.Dialer == nil {
		cfg.Dialer = NewGorillaDialer()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Backoff == (BackoffPolicy{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	return &Channel{cfg: cfg, state: StateIdle}
}

// Open starts the channel. The dial happens on the calling goroutine; a
// failed dial enters the normal retry path rather than failing Open. Only an
// Idle or exhausted channel may be opened. ctx scopes the initial dial only;
// reconnect dials outlive it so callers may pass a short-lived request
// context without killing the retry loop.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateClosedExhausted {
		c.mu.Unlock()
		return core.NewInvalidRequestError("channel is already open (state " + c.state.String() + ")")
	}
	c.shouldReconnect = true
	c.attempts = 0
	c.baseCtx = context.WithoutCancel(ctx)
	c.transitionLocked(StateConnecting)
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	c.connect(ctx)
	return nil
}

// connect dials and, on success, promotes the channel to Open and starts the
// read loop. A dial failure is handled exactly like an unexpected close.
func (c *Channel) connect(ctx context.Context) {
	c.mu.Lock()
	if !c.shouldReconnect {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	conn, err := c.cfg.Dialer.Dial(ctx, c.cfg.URL)

	c.mu.Lock()
	if gen != c.gen || !c.shouldReconnect {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.cfg.Logger.Warn("channel dial failed", "url", c.cfg.URL, "error", err)
		c.handleClosedLocked(gen)
		return
	}

	c.conn = conn
	c.attempts = 0
	first := !c.everOpened
	c.everOpened = true
	c.transitionLocked(StateOpen)
	c.startHeartbeatLocked(gen)
	c.mu.Unlock()

	c.notifyState(StateOpen)
	if c.cfg.OnOpen != nil {
		c.cfg.OnOpen(first)
	}
	go c.readLoop(conn, gen)
}

func (c *Channel) readLoop(conn Conn, gen int) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.handleClosedLocked(gen)
			return
		}

		switch messageType {
		case websocket.TextMessage:
			if kind, ok := protocol.IsControl(data); ok {
				if kind == protocol.TypePing {
					c.writeTo(conn, websocket.TextMessage, protocol.Pong)
				}
				continue
			}
			if c.cfg.OnText != nil {
				c.cfg.OnText(data)
			}
		case websocket.BinaryMessage:
			if c.cfg.OnBinary != nil {
				c.cfg.OnBinary(data)
			}
		}
	}
}

// handleClosedLocked reacts to an unexpected transport loss. Called with the
// lock held and the generation verified; it releases the lock.
func (c *Channel) handleClosedLocked(gen int) {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	if !c.shouldReconnect {
		c.transitionLocked(StateIdle)
		c.mu.Unlock()
		c.notifyState(StateIdle)
		return
	}

	next := c.attempts + 1
	if !c.cfg.Backoff.ShouldRetry(next) {
		c.transitionLocked(StateClosedExhausted)
		c.mu.Unlock()
		metrics.ReconnectExhausted.Inc()
		c.cfg.Logger.Error("channel reconnect budget exhausted",
			"url", c.cfg.URL, "attempts", c.cfg.Backoff.MaxAttempts)
		c.notifyState(StateClosedExhausted)
		if c.cfg.OnExhausted != nil {
			c.cfg.OnExhausted()
		}
		return
	}

	c.attempts = next
	delay := c.cfg.Backoff.Delay(next)
	c.transitionLocked(StateClosedRetryPending)
	c.reconnect = c.cfg.Clock.AfterFunc(delay, func() { c.retry(gen) })
	c.mu.Unlock()

	metrics.ReconnectAttempts.Inc()
	c.cfg.Logger.Info("channel reconnect scheduled",
		"url", c.cfg.URL, "attempt", next, "delay", delay)
	c.notifyState(StateClosedRetryPending)
}

func (c *Channel) retry(gen int) {
	c.mu.Lock()
	if !c.shouldReconnect || gen != c.gen || c.state != StateClosedRetryPending {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	base := c.baseCtx
	c.transitionLocked(StateConnecting)
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(base, reconnectDialTimeout)
	c.connect(dialCtx)
	cancel()
}

func (c *Channel) startHeartbeatLocked(gen int) {
	if c.heartbeat != nil {
		// Already running; never double-start.
		return
	}
	c.heartbeat = c.cfg.Clock.AfterFunc(c.cfg.HeartbeatInterval, func() { c.heartbeatTick(gen) })
}

func (c *Channel) heartbeatTick(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.heartbeat = c.cfg.Clock.AfterFunc(c.cfg.HeartbeatInterval, func() { c.heartbeatTick(gen) })
	c.mu.Unlock()

	if err := c.writeTo(conn, websocket.TextMessage, protocol.Ping); err != nil {
		c.cfg.Logger.Warn("heartbeat ping failed", "error", err)
		return
	}
	metrics.HeartbeatsSent.Inc()
}

// Send marshals v and writes it as a text frame. Sends while the channel is
// not Open are dropped with an error; there is no outbound queue, the caller
// owns any retry policy.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return core.NewInvalidRequestError("marshal outbound frame: " + err.Error())
	}
	return c.send(websocket.TextMessage, data)
}

// SendBinary writes a binary frame (voice channel audio).
func (c *Channel) SendBinary(data []byte) error {
	return c.send(websocket.BinaryMessage, data)
}

func (c *Channel) send(messageType int, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != StateOpen || conn == nil {
		metrics.SendsDropped.Inc()
		c.cfg.Logger.Error("send dropped, channel is not open", "state", state.String())
		return core.NewTransportError("channel is not open", nil)
	}
	return c.writeTo(conn, messageType, data)
}

func (c *Channel) writeTo(conn Conn, messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(messageType, data); err != nil {
		return core.NewTransportError("websocket write failed", err)
	}
	return nil
}

// Close tears the channel down on caller request: reconnects stop, timers
// clear, the transport closes. Never triggers a reconnect, and is safe to
// call twice.
func (c *Channel) Close() {
	c.mu.Lock()
	c.shouldReconnect = false
	c.gen++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	alreadyIdle := c.state == StateIdle
	c.transitionLocked(StateIdle)
	c.mu.Unlock()

	if !alreadyIdle {
		c.notifyState(StateIdle)
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the current reconnect attempt counter.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// transitionLocked is the single place state moves. Timers that the target
// state invalidates are cleared here, so no transition can leak one.
func (c *Channel) transitionLocked(to State) {
	if to != StateOpen && c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	if to != StateClosedRetryPending && c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.state = to
}

func (c *Channel) notifyState(s State) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}
