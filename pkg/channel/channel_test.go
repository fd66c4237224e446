package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
)

type testFrame struct {
	messageType int
	data        []byte
}

type fakeConn struct {
	inbound   chan testFrame
	writes    chan testFrame
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan testFrame, 16),
		writes:  make(chan testFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.inbound:
		return f.messageType, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.writes <- testFrame{messageType: messageType, data: data}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type dialResult struct {
	conn *fakeConn
	err  error
}

type fakeDialer struct {
	mu      sync.Mutex
	queue   []dialResult
	dials   int
	ctxErrs []error
}

func (d *fakeDialer) push(conn *fakeConn, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, dialResult{conn: conn, err: err})
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.ctxErrs = append(d.ctxErrs, ctx.Err())
	if len(d.queue) == 0 {
		return nil, errors.New("no scripted dial result")
	}
	next := d.queue[0]
	d.queue = d.queue[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) ctxErrAt(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.ctxErrs) {
		return nil
	}
	return d.ctxErrs[i]
}

func waitForState(t *testing.T, c *Channel, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("channel never reached state %v, stuck at %v", want, c.State())
}

func recvFrame(t *testing.T, ch chan testFrame) testFrame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return testFrame{}
	}
}

func recvBool(t *testing.T, ch chan bool) bool {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
		return false
	}
}

func testConfig(dialer Dialer, clk clock.Clock) Config {
	return Config{
		URL:    "ws://test/ws/public/co/agent/sess",
		Dialer: dialer,
		Clock:  clk,
		Logger: slog.New(slog.NewTextHandler(testWriter{}, nil)),
	}
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestOpenDialsAndReportsFirstOpen(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn, nil)
	clk := clock.NewFake(time.Unix(1700000000, 0))

	opens := make(chan bool, 4)
	cfg := testConfig(dialer, clk)
	cfg.OnOpen = func(first bool) { opens <- first }
	c := New(cfg)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := c.State(); got != StateOpen {
		t.Fatalf("state = %v, want %v", got, StateOpen)
	}
	if first := recvBool(t, opens); !first {
		t.Error("first open reported first=false")
	}
	if err := c.Open(context.Background()); err == nil {
		t.Error("second Open on an open channel succeeded, want error")
	}
}

func TestReconnectAfterUnexpectedClose(t *testing.T) {
	t.Parallel()

	conn1 := newFakeConn()
	conn2 := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn1, nil)
	dialer.push(conn2, nil)
	clk := clock.NewFake(time.Unix(1700000000, 0))

	opens := make(chan bool, 4)
	cfg := testConfig(dialer, clk)
	cfg.OnOpen = func(first bool) { opens <- first }
	c := New(cfg)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	recvBool(t, opens)

	conn1.Close()
	waitForState(t, c, StateClosedRetryPending)
	if got := c.Attempts(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}

	clk.Advance(3 * time.Second)
	waitForState(t, c, StateOpen)
	if first := recvBool(t, opens); first {
		t.Error("reconnect reported first=true")
	}
	if got := c.Attempts(); got != 0 {
		t.Errorf("attempts after successful reconnect = %d, want 0", got)
	}
	if got := dialer.dialCount(); got != 2 {
		t.Errorf("dials = %d, want 2", got)
	}
}

func TestReconnectExhaustsAfterTenAttempts(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	for i := 0; i < 11; i++ {
		dialer.push(nil, errors.New("refused"))
	}
	clk := clock.NewFake(time.Unix(1700000000, 0))

	exhausted := make(chan struct{}, 1)
	cfg := testConfig(dialer, clk)
	cfg.OnExhausted = func() { exhausted <- struct{}{} }
	c := New(cfg)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 10; i++ {
		clk.Advance(15 * time.Second)
	}

	waitForState(t, c, StateClosedExhausted)
	select {
	case <-exhausted:
	case <-time.After(2 * time.Second):
		t.Fatal("OnExhausted never fired")
	}
	if got := dialer.dialCount(); got != 11 {
		t.Errorf("dials = %d, want 11 (initial plus ten retries)", got)
	}

	// No eleventh retry is ever scheduled.
	clk.Advance(time.Minute)
	if got := dialer.dialCount(); got != 11 {
		t.Errorf("dials after exhaustion = %d, want 11", got)
	}
}

func TestHeartbeatPingsEveryInterval(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn, nil)
	clk := clock.NewFake(time.Unix(1700000000, 0))

	c := New(testConfig(dialer, clk))
	defer c.Close()
	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 2; i++ {
		clk.Advance(30 * time.Second)
		f := recvFrame(t, conn.writes)
		if f.messageType != websocket.TextMessage || string(f.data) != `{"type":"ping"}` {
			t.Fatalf("heartbeat %d wrote %q, want ping frame", i+1, f.data)
		}
	}
}

func TestInboundPingAnsweredWithPongNotForwarded(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn, nil)
	clk := clock.NewFake(time.Unix(1700000000, 0))

	texts := make(chan []byte, 16)
	cfg := testConfig(dialer, clk)
	cfg.OnText = func(data []byte) { texts <- data }
	c := New(cfg)
	defer c.Close()
	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	conn.inbound <- testFrame{messageType: websocket.TextMessage, data: []byte(`{"type":"ping"}`)}
	f := recvFrame(t, conn.writes)
	if string(f.data) != `{"type":"pong"}` {
		t.Fatalf("reply to ping = %q, want pong", f.data)
	}

	conn.inbound <- testFrame{messageType: websocket.TextMessage, data: []byte(`{"id":"1","message":"hi"}`)}
	select {
	case data := <-texts:
		if string(data) != `{"id":"1","message":"hi"}` {
			t.Fatalf("forwarded frame = %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message frame never forwarded")
	}

	select {
	case data := <-texts:
		t.Fatalf("ping leaked to OnText: %q", data)
	default:
	}
}

func TestCloseStopsReconnect(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn, nil)
	clk := clock.NewFake(time.Unix(1700000000, 0))

	c := New(testConfig(dialer, clk))
	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	conn.Close()
	waitForState(t, c, StateClosedRetryPending)

	c.Close()
	if got := c.State(); got != StateIdle {
		t.Fatalf("state after Close = %v, want %v", got, StateIdle)
	}

	clk.Advance(time.Minute)
	if got := dialer.dialCount(); got != 1 {
		t.Errorf("dials after Close = %d, want 1", got)
	}

	// Close is idempotent.
	c.Close()
}

func TestSendWhileNotOpenFails(t *testing.T) {
	t.Parallel()

	c := New(testConfig(&fakeDialer{}, clock.NewFake(time.Unix(0, 0))))
	err := c.Send(map[string]string{"message": "hello"})
	if err == nil {
		t.Fatal("Send on idle channel succeeded, want error")
	}
	var ce *core.Error
	if !errors.As(err, &ce) || ce.Type != core.ErrTransport {
		t.Fatalf("Send error = %v, want transport error", err)
	}
}

func TestReconnectDialOutlivesOpenContext(t *testing.T) {
	t.Parallel()

	conn1 := newFakeConn()
	conn2 := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn1, nil)
	dialer.push(conn2, nil)
	clk := clock.NewFake(time.Unix(1700000000, 0))

	c := New(testConfig(dialer, clk))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Callers routinely cancel their open context once Open returns.
	cancel()

	conn1.Close()
	waitForState(t, c, StateClosedRetryPending)
	clk.Advance(3 * time.Second)
	waitForState(t, c, StateOpen)

	if got := dialer.dialCount(); got != 2 {
		t.Fatalf("dials = %d, want 2", got)
	}
	if err := dialer.ctxErrAt(1); err != nil {
		t.Fatalf("reconnect dial ran on a dead context: %v", err)
	}
}
