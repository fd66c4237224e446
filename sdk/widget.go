package chatkit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/leadergroupsaudi/chatkit-go/pkg/channel"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/chat"
	"github.com/leadergroupsaudi/chatkit-go/pkg/metrics"
	"github.com/leadergroupsaudi/chatkit-go/pkg/protocol"
	"github.com/leadergroupsaudi/chatkit-go/pkg/store"
)

const defaultWelcome = "Hi! How can we help you today?"

// WidgetService opens widget sessions.
type WidgetService struct {
	client *Client
}

// OpenRequest configures a widget session. CompanyID and AgentID are
// required; callbacks are optional and run on the channel's read goroutine.
type OpenRequest struct {
	CompanyID string
	AgentID   string

	// OnMessage fires whenever the transcript changes: a confirmed send, a
	// new inbound message, or a locally appended system line.
	OnMessage func(m chat.Message)
	// OnTyping fires when the agent side is typing.
	OnTyping func()
	// OnWorking fires when the agent side runs a tool on the
	// conversation's behalf.
	OnWorking func(detail string)
	// OnForm fires when an inline form becomes active.
	OnForm func(f chat.Form)
	// OnConnectionChange observes the chat channel state.
	OnConnectionChange func(s channel.State)
	// OnAudioClip delivers a coalesced inbound voice clip. The session
	// pauses the microphone pipeline until done is called.
	OnAudioClip func(clip []byte, done func())
}

// WidgetSession is one live widget conversation.
type WidgetSession struct {
	client    *Client
	req       OpenRequest
	sessionID string
	resumed   bool
	settings  WidgetSettings

	history *chat.History
	drafts  *store.DraftStore
	loaded  map[string]string

	ch *channel.Channel

	mu            sync.Mutex
	voice         *voiceSession
	voiceStarting bool
	closed        bool
	closeMu       sync.Once
}

// Open resolves the session identity, loads the transcript and drafts, and
// connects the chat channel. The returned session is live; messages can
// arrive before Open returns.
func (s *WidgetService) Open(ctx context.Context, req OpenRequest) (*WidgetSession, error) {
	if req.CompanyID == "" || req.AgentID == "" {
		return nil, core.NewInvalidRequestError("company and agent ids are required")
	}
	c := s.client

	sess := &WidgetSession{
		client:  c,
		req:     req,
		history: chat.NewHistory(),
		drafts:  c.Drafts(),
	}

	if settings, err := c.WidgetSettingsFor(ctx, req.CompanyID); err != nil {
		c.logger.Warn("widget settings unavailable, using defaults", "error", err)
		sess.settings = WidgetSettings{WelcomeMessage: defaultWelcome}
	} else {
		sess.settings = *settings
		if sess.settings.WelcomeMessage == "" {
			sess.settings.WelcomeMessage = defaultWelcome
		}
	}

	sess.sessionID, sess.resumed = c.Sessions().Resolve(ctx, req.CompanyID, req.AgentID)

	if history, err := c.ConversationHistory(ctx, req.AgentID, sess.sessionID); err != nil {
		c.logger.Warn("conversation history unavailable, starting empty",
			"session", sess.sessionID, "error", err)
	} else {
		sess.history.Seed(history)
	}

	sess.loaded = sess.drafts.SwitchSession(ctx, sess.sessionID)

	sess.ch = channel.New(channel.Config{
		URL:    protocol.ChatURL(c.wsBaseURL, req.CompanyID, req.AgentID, sess.sessionID),
		Dialer: c.dialer,
		Clock:  c.clk,
		Logger: c.logger,
		OnOpen: sess.handleOpen,
		OnText: sess.handleText,
		OnStateChange: func(state channel.State) {
			if req.OnConnectionChange != nil {
				req.OnConnectionChange(state)
			}
		},
	})
	if err := sess.ch.Open(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// SessionID returns the resolved session identifier.
func (s *WidgetSession) SessionID() string { return s.sessionID }

// Resumed reports whether an earlier conversation was picked up.
func (s *WidgetSession) Resumed() bool { return s.resumed }

// Settings returns the widget configuration in effect.
func (s *WidgetSession) Settings() WidgetSettings { return s.settings }

// Messages returns the current transcript.
func (s *WidgetSession) Messages() []chat.Message { return s.history.Messages() }

// LoadedDrafts returns the drafts restored when the session opened, by kind.
func (s *WidgetSession) LoadedDrafts() map[string]string { return s.loaded }

// State returns the chat channel connection state.
func (s *WidgetSession) State() channel.State { return s.ch.State() }

// Send delivers a user message optimistically: it lands in the transcript
// with a temporary id immediately and reconciles when the server echoes it
// back. The composer draft clears.
func (s *WidgetSession) Send(ctx context.Context, text string) (chat.Message, error) {
	if text == "" {
		return chat.Message{}, core.NewInvalidRequestError("message text is empty")
	}
	m := chat.NewUserMessage(text, s.client.clk.Now())
	s.history.AppendLocal(m)
	s.notify(m)

	err := s.ch.Send(protocol.ClientSend{
		Message:     text,
		MessageType: protocol.MessageTypeMessage,
		Sender:      protocol.SenderUser,
	})
	if err != nil {
		return m, err
	}
	s.drafts.Clear(ctx, store.DraftKindMessage)
	return m, nil
}

// SendAttachment uploads a file and sends it as an attachment message.
func (s *WidgetSession) SendAttachment(ctx context.Context, name, contentType string, data []byte) (chat.Message, error) {
	uploaded, err := s.client.UploadFile(ctx, name, contentType, data)
	if err != nil {
		return chat.Message{}, err
	}

	att := protocol.Attachment{
		ID:          uploaded.ID,
		Name:        uploaded.Name,
		URL:         uploaded.URL,
		ContentType: uploaded.ContentType,
		Size:        uploaded.Size,
	}
	m := chat.NewUserMessage(name, s.client.clk.Now())
	m.Type = protocol.MessageTypeAttachment
	m.Attachments = []protocol.Attachment{att}
	s.history.AppendLocal(m)
	s.notify(m)

	err = s.ch.Send(protocol.ClientSend{
		Message:     name,
		MessageType: protocol.MessageTypeAttachment,
		Sender:      protocol.SenderUser,
		Attachments: []protocol.Attachment{att},
	})
	return m, err
}

// SubmitForm sends the active form's values and clears it.
func (s *WidgetSession) SubmitForm(values map[string]string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return core.NewInvalidRequestError("encode form values: " + err.Error())
	}
	if err := s.ch.Send(protocol.ClientSend{
		Message:     string(raw),
		MessageType: protocol.MessageTypeForm,
		Sender:      protocol.SenderUser,
	}); err != nil {
		return err
	}
	s.history.ClearForm()
	return nil
}

// SendTyping signals that the visitor is typing. A no-op when the client
// was built with WithTypingIndicator(false).
func (s *WidgetSession) SendTyping() error {
	if s.client.noTyping {
		return nil
	}
	return s.ch.Send(protocol.ClientSend{
		MessageType: protocol.MessageTypeTyping,
		Sender:      protocol.SenderUser,
	})
}

// RequestVideoCall invites the agent to a video call.
func (s *WidgetSession) RequestVideoCall() error {
	return s.ch.Send(protocol.ClientSend{
		MessageType: protocol.MessageTypeVideoCallInvitation,
		Sender:      protocol.SenderUser,
	})
}

// SetDraft records composer text for debounced persistence.
func (s *WidgetSession) SetDraft(ctx context.Context, kind, text string) {
	s.drafts.SetText(ctx, kind, text)
}

// Close tears the session down: drafts flush, the voice pipeline releases
// the microphone, and the channels stop reconnecting. Safe to call twice.
func (s *WidgetSession) Close() {
	s.closeMu.Do(func() {
		s.mu.Lock()
		s.closed = true
		voice := s.voice
		s.voice = nil
		s.mu.Unlock()

		s.drafts.Flush(context.Background())
		if voice != nil {
			voice.close()
		}
		s.ch.Close()
	})
}

func (s *WidgetSession) handleOpen(first bool) {
	if !first {
		return
	}
	if s.history.Len() > 0 {
		return
	}
	m := chat.Message{
		ID:        chat.NewTempID(s.client.clk.Now()),
		Sender:    chat.SenderAgent,
		Text:      s.settings.WelcomeMessage,
		Type:      protocol.MessageTypeMessage,
		Timestamp: s.client.clk.Now(),
	}
	s.history.AppendLocal(m)
	s.notify(m)
}

func (s *WidgetSession) handleText(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		metrics.FramesDropped.Inc()
		s.client.logger.Warn("dropping undecodable chat frame", "error", err)
		return
	}
	metrics.FramesReceived.WithLabelValues(protocol.Kind(frame)).Inc()

	switch fr := frame.(type) {
	case protocol.TypingFrame:
		if s.req.OnTyping != nil {
			s.req.OnTyping()
		}
	case protocol.ToolUseFrame:
		if s.req.OnWorking != nil {
			s.req.OnWorking(fr.Detail)
		}
	case protocol.CallAcceptedFrame:
		s.handleCallAccepted(fr)
	case protocol.CallRejectedFrame:
		s.handleCallRejected(fr)
	case protocol.MessageFrame:
		m := chat.FromFrame(fr)
		if !s.history.ApplyFrame(fr) {
			return
		}
		s.notify(m)
		if m.Type == protocol.MessageTypeForm && s.req.OnForm != nil {
			if form := s.history.ActiveForm(); form != nil {
				s.req.OnForm(*form)
			}
		}
	}
}

func (s *WidgetSession) handleCallAccepted(fr protocol.CallAcceptedFrame) {
	joinURL := protocol.CallJoinURL(fr.LivekitURL, fr.RoomName, fr.Token)
	if s.client.openWindow != nil {
		if err := s.client.openWindow(joinURL); err == nil {
			return
		}
		s.client.logger.Warn("opening call window failed, posting link inline")
	}
	m := chat.Message{
		ID:        chat.NewTempID(s.client.clk.Now()),
		Sender:    chat.SenderSystem,
		Text:      "Join the call: " + joinURL,
		Type:      protocol.MessageTypeMessage,
		Timestamp: s.client.clk.Now(),
	}
	s.history.AppendLocal(m)
	s.notify(m)
}

func (s *WidgetSession) handleCallRejected(fr protocol.CallRejectedFrame) {
	text := fr.Reason
	if text == "" {
		text = "The agent can't take a call right now."
	}
	m := chat.Message{
		ID:        chat.NewTempID(s.client.clk.Now()),
		Sender:    chat.SenderSystem,
		Text:      text,
		Type:      protocol.MessageTypeMessage,
		Timestamp: s.client.clk.Now(),
	}
	s.history.AppendLocal(m)
	s.notify(m)
}

func (s *WidgetSession) notify(m chat.Message) {
	if s.req.OnMessage != nil {
		s.req.OnMessage(m)
	}
}
