package chatkit

import (
	"context"

	"github.com/leadergroupsaudi/chatkit-go/pkg/agent"
	"github.com/leadergroupsaudi/chatkit-go/pkg/channel"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/chat"
)

// AgentService opens dashboard-side conversation feeds.
type AgentService struct {
	client *Client
}

// FeedRequest identifies one conversation detail view. All three fields are
// required; the feed never opens half-configured.
type FeedRequest struct {
	AgentID   string
	SessionID string
	Token     string

	OnMessage     func(m chat.Message)
	OnTyping      func(sender string)
	OnStateChange func(s channel.State)
}

// OpenFeed fetches the stored transcript into a page cache and connects the
// live feed on top of it. Messages that arrive while the fetch is in flight
// de-duplicate against the cache by id.
func (s *AgentService) OpenFeed(ctx context.Context, req FeedRequest) (*agent.Feed, error) {
	if req.AgentID == "" || req.SessionID == "" || req.Token == "" {
		return nil, core.NewInvalidRequestError("agent id, session id and token are all required")
	}
	c := s.client

	cache := agent.NewPageCache()
	feed := agent.NewFeed(agent.FeedConfig{
		WSBase:        c.wsBaseURL,
		AgentID:       req.AgentID,
		SessionID:     req.SessionID,
		Token:         req.Token,
		Dialer:        c.dialer,
		Clock:         c.clk,
		Logger:        c.logger,
		OnMessage:     req.OnMessage,
		OnTyping:      req.OnTyping,
		OnStateChange: req.OnStateChange,
	}, cache)

	if err := feed.Open(ctx); err != nil {
		return nil, err
	}

	history, err := c.ConversationHistory(ctx, req.AgentID, req.SessionID)
	if err != nil {
		c.logger.Warn("conversation history unavailable, feed starts live-only",
			"session", req.SessionID, "error", err)
		return feed, nil
	}
	cache.AddOlderPage(history)
	return feed, nil
}
