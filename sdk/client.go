// Package chatkit provides the Go SDK for the support chat platform: the
// embeddable widget session (chat, voice, calls) and the agent dashboard
// live feed, on top of one reconnecting channel abstraction.
package chatkit

import (
	"log/slog"
	"strings"

	"github.com/leadergroupsaudi/chatkit-go/pkg/channel"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
	"github.com/leadergroupsaudi/chatkit-go/pkg/store"
)

// Client is the main entry point for the SDK.
type Client struct {
	Widget *WidgetService
	Agent  *AgentService

	// Internal
	rest       *restClient
	baseURL    string
	wsBaseURL  string
	apiKey     string
	logger     *slog.Logger
	clk        clock.Clock
	dialer     channel.Dialer
	kv         store.KV
	sessions   *store.SessionStore
	openWindow func(url string) error
	noTyping   bool
}

// NewClient creates a client. The defaults talk to production; tests
// override the base URLs and the dialer.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   "https://chat.leadergroupsaudi.com",
		logger:    slog.Default(),
		clk:       clock.System(),
		dialer:    channel.NewGorillaDialer(),
		rest:      &restClient{httpClient: newDefaultHTTPClient()},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.wsBaseURL == "" {
		c.wsBaseURL = deriveWSBase(c.baseURL)
	}
	if c.kv == nil {
		c.kv, _ = store.NewKV(store.TypeMemory)
	}
	c.sessions = store.NewSessionStore(c.kv, c.clk, c.logger)
	c.rest.baseURL = strings.TrimSuffix(c.baseURL, "/")
	c.rest.apiKey = c.apiKey
	c.rest.logger = c.logger

	c.Widget = &WidgetService{client: c}
	c.Agent = &AgentService{client: c}
	return c
}

// Sessions returns the persistent session identity store. One store lives
// for the client's lifetime so its in-memory fallback keeps the session id
// stable across opens when the backing storage is failing.
func (c *Client) Sessions() *store.SessionStore {
	return c.sessions
}

// Drafts returns a draft store bound to the client's storage.
func (c *Client) Drafts() *store.DraftStore {
	return store.NewDraftStore(c.kv, c.clk, c.logger)
}

func deriveWSBase(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
