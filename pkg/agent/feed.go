package agent

import (
	"context"
	"log/slog"

	"github.com/leadergroupsaudi/chatkit-go/pkg/channel"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/chat"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
	"github.com/leadergroupsaudi/chatkit-go/pkg/metrics"
	"github.com/leadergroupsaudi/chatkit-go/pkg/protocol"
)

// FeedConfig wires a live conversation feed for one dashboard detail view.
type FeedConfig struct {
	WSBase    string
	AgentID   string
	SessionID string
	Token     string

	Dialer channel.Dialer
	Clock  clock.Clock
	Logger *slog.Logger

	// OnMessage fires for every new conversation message admitted to the
	// cache. Duplicates of already-cached ids are dropped silently.
	OnMessage func(m chat.Message)
	// OnTyping fires when the visitor is typing.
	OnTyping func(sender string)
	// OnStateChange observes the underlying channel.
	OnStateChange func(s channel.State)
}

// Feed streams one conversation's live traffic into a PageCache. It rides
// the same reconnecting channel as the widget, so a dropped dashboard tab
// recovers by itself.
type Feed struct {
	cfg   FeedConfig
	cache *PageCache
	ch    *channel.Channel
}

// NewFeed builds a feed around cache. A nil cache gets a fresh one.
func NewFeed(cfg FeedConfig, cache *PageCache) *Feed {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cache == nil {
		cache = NewPageCache()
	}
	f := &Feed{cfg: cfg, cache: cache}
	f.ch = channel.New(channel.Config{
		URL:           protocol.AgentFeedURL(cfg.WSBase, cfg.AgentID, cfg.SessionID, cfg.Token),
		Dialer:        cfg.Dialer,
		Clock:         cfg.Clock,
		Logger:        cfg.Logger,
		OnText:        f.handleText,
		OnStateChange: cfg.OnStateChange,
	})
	return f
}

// Cache exposes the backing page cache for history pagination.
func (f *Feed) Cache() *PageCache { return f.cache }

// Open connects the feed.
func (f *Feed) Open(ctx context.Context) error {
	if f == nil {
		return core.NewInvalidRequestError("feed is nil")
	}
	return f.ch.Open(ctx)
}

// Close tears the feed down without clearing the cache.
func (f *Feed) Close() {
	if f == nil {
		return
	}
	f.ch.Close()
}

// Send delivers an agent reply into the conversation.
func (f *Feed) Send(text string) error {
	return f.ch.Send(protocol.ClientSend{
		Message:     text,
		MessageType: protocol.MessageTypeMessage,
		Sender:      protocol.SenderAgent,
	})
}

func (f *Feed) handleText(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		metrics.FramesDropped.Inc()
		f.cfg.Logger.Warn("dropping undecodable feed frame", "error", err)
		return
	}
	metrics.FramesReceived.WithLabelValues(protocol.Kind(frame)).Inc()

	switch fr := frame.(type) {
	case protocol.TypingFrame:
		if f.cfg.OnTyping != nil {
			f.cfg.OnTyping(fr.Sender)
		}
	case protocol.MessageFrame:
		m := chat.FromFrame(fr)
		if !f.cache.AppendLive(m) {
			return
		}
		if f.cfg.OnMessage != nil {
			f.cfg.OnMessage(m)
		}
	default:
		// Call lifecycle and tool_use frames do not render in the
		// dashboard detail view.
	}
}
