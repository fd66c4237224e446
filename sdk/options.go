package chatkit

import (
	"log/slog"
	"net/http"

	"github.com/leadergroupsaudi/chatkit-go/pkg/channel"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
	"github.com/leadergroupsaudi/chatkit-go/pkg/store"
)

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the HTTP API base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithWSBaseURL sets the WebSocket base URL. When unset it is derived from
// the HTTP base URL.
func WithWSBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.wsBaseURL = url
	}
}

// WithAPIKey sets the API key sent on REST requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.rest.httpClient = client
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithClock injects the time source. Tests use a fake to drive debounce,
// heartbeat and reconnect timers deterministically.
func WithClock(clk clock.Clock) ClientOption {
	return func(c *Client) {
		c.clk = clk
	}
}

// WithDialer injects the WebSocket dialer.
func WithDialer(d channel.Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithStore sets the KV backing session identity and drafts.
func WithStore(kv store.KV) ClientOption {
	return func(c *Client) {
		c.kv = kv
	}
}

// WithTypingIndicator toggles outbound typing frames. Enabled by default;
// disabling makes SendTyping a no-op.
func WithTypingIndicator(enabled bool) ClientOption {
	return func(c *Client) {
		c.noTyping = !enabled
	}
}

// WithOpenWindow sets the callback that opens a video call join URL in a
// new window. Returning an error makes the session fall back to posting the
// link inline.
func WithOpenWindow(open func(url string) error) ClientOption {
	return func(c *Client) {
		c.openWindow = open
	}
}
