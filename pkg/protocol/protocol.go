// Package protocol defines the wire contract for the public chat and voice
// WebSocket channels: frame shapes, a typed parse-or-reject decoder and the
// channel URL builders. Malformed frames come back as a *DecodeError so
// callers can log and drop them instead of throwing into the event loop.
package protocol

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Frame type values carried in the top-level "type" field.
const (
	TypePing         = "ping"
	TypePong         = "pong"
	TypeCallAccepted = "call_accepted"
	TypeCallRejected = "call_rejected"
)

// Message type values carried in the "message_type" field.
const (
	MessageTypeMessage             = "message"
	MessageTypePrompt              = "prompt"
	MessageTypeForm                = "form"
	MessageTypeVideoCallInvitation = "video_call_invitation"
	MessageTypeAttachment          = "attachment"
	MessageTypeTyping              = "typing"
	MessageTypeToolUse             = "tool_use"
)

// Sender values.
const (
	SenderUser   = "user"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

// DecodeError describes an inbound frame the decoder rejected.
type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badFrame(message string) *DecodeError {
	return &DecodeError{Code: "bad_frame", Message: message}
}

// MessageID is a server-assigned identifier. The backend emits both string
// and numeric ids, so it unmarshals from either.
type MessageID string

// UnmarshalJSON accepts a JSON string or number.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*id = ""
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*id = MessageID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*id = MessageID(num.String())
	return nil
}

// MarshalJSON writes numeric ids back as numbers.
func (id MessageID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return json.Marshal(n)
		}
	}
	return json.Marshal(s)
}

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// FormField is one input of an inline form pushed by the agent side.
type FormField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label,omitempty"`
	Type     string   `json:"type,omitempty"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// ServerFrame is the superset shape of inbound JSON frames on both channels.
type ServerFrame struct {
	Type        string    `json:"type,omitempty"`
	ID          MessageID `json:"id,omitempty"`
	Sender      string    `json:"sender,omitempty"`
	Message     string    `json:"message,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
	Timestamp   string    `json:"timestamp,omitempty"`

	Options     []string     `json:"options,omitempty"`
	Fields      []FormField  `json:"fields,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	AssigneeName  string `json:"assignee_name,omitempty"`
	CallInitiated bool   `json:"call_initiated,omitempty"`

	// Call lifecycle metadata.
	Token      string `json:"token,omitempty"`
	UserToken  string `json:"user_token,omitempty"`
	AgentName  string `json:"agent_name,omitempty"`
	RoomName   string `json:"room_name,omitempty"`
	LivekitURL string `json:"livekit_url,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ClientSend is the outbound message frame.
type ClientSend struct {
	Message     string       `json:"message"`
	MessageType string       `json:"message_type"`
	Sender      string       `json:"sender"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Control is a heartbeat frame, sent and received on both channels.
type Control struct {
	Type string `json:"type"`
}

// Ping and Pong are the serialized heartbeat frames.
var (
	Ping = []byte(`{"type":"ping"}`)
	Pong = []byte(`{"type":"pong"}`)
)

// Frame is a decoded inbound frame.
type Frame interface {
	frameKind() string
}

// PingFrame is an inbound keep-alive probe; the channel answers with Pong.
type PingFrame struct{}

func (PingFrame) frameKind() string { return TypePing }

// PongFrame is an inbound keep-alive reply; a no-op.
type PongFrame struct{}

func (PongFrame) frameKind() string { return TypePong }

// TypingFrame toggles the remote-typing indicator.
type TypingFrame struct {
	Sender string
}

func (TypingFrame) frameKind() string { return MessageTypeTyping }

// ToolUseFrame toggles the "agent is working" indicator.
type ToolUseFrame struct {
	Detail string
}

func (ToolUseFrame) frameKind() string { return MessageTypeToolUse }

// CallAcceptedFrame carries the join metadata for an accepted video call.
type CallAcceptedFrame struct {
	Token      string
	UserToken  string
	AgentName  string
	RoomName   string
	LivekitURL string
}

func (CallAcceptedFrame) frameKind() string { return TypeCallAccepted }

// CallRejectedFrame reports a declined video call.
type CallRejectedFrame struct {
	AgentName string
	Reason    string
}

func (CallRejectedFrame) frameKind() string { return TypeCallRejected }

// MessageFrame is a conversation message to hand to the reconciliation engine.
type MessageFrame struct {
	ServerFrame
}

func (MessageFrame) frameKind() string { return "message" }

// Kind names a decoded frame for logging and instrumentation.
func Kind(f Frame) string {
	if f == nil {
		return ""
	}
	return f.frameKind()
}

// Decode classifies an inbound text frame. Classification order matches the
// channel contract: the "type" field first (control and call lifecycle),
// then "message_type" (typing, tool_use), then conversation message.
func Decode(data []byte) (Frame, error) {
	var frame ServerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, badFrame(fmt.Sprintf("undecodable frame: %v", err))
	}

	switch strings.TrimSpace(frame.Type) {
	case TypePing:
		return PingFrame{}, nil
	case TypePong:
		return PongFrame{}, nil
	case TypeCallAccepted:
		return CallAcceptedFrame{
			Token:      frame.Token,
			UserToken:  frame.UserToken,
			AgentName:  frame.AgentName,
			RoomName:   frame.RoomName,
			LivekitURL: frame.LivekitURL,
		}, nil
	case TypeCallRejected:
		return CallRejectedFrame{AgentName: frame.AgentName, Reason: frame.Reason}, nil
	}

	switch strings.TrimSpace(frame.MessageType) {
	case MessageTypeTyping:
		return TypingFrame{Sender: frame.Sender}, nil
	case MessageTypeToolUse:
		return ToolUseFrame{Detail: frame.Message}, nil
	}

	if frame.ID == "" && strings.TrimSpace(frame.Message) == "" {
		return nil, badFrame("frame carries neither id nor message")
	}
	return MessageFrame{ServerFrame: frame}, nil
}

// IsControl reports whether a raw frame is a ping or pong, without a full
// decode. The channel uses it to answer heartbeats before classification.
func IsControl(data []byte) (kind string, ok bool) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return "", false
	}
	switch c.Type {
	case TypePing, TypePong:
		return c.Type, true
	default:
		return "", false
	}
}

// ChatURL builds the public chat channel endpoint.
// Pattern: {wsBase}/ws/public/{companyId}/{agentId}/{sessionId}?user_type=user
func ChatURL(wsBase, companyID, agentID, sessionID string) string {
	u := fmt.Sprintf("%s/ws/public/%s/%s/%s",
		strings.TrimRight(wsBase, "/"),
		url.PathEscape(companyID), url.PathEscape(agentID), url.PathEscape(sessionID))
	q := url.Values{}
	q.Set("user_type", "user")
	return u + "?" + q.Encode()
}

// VoiceURL builds the public voice channel endpoint.
func VoiceURL(wsBase, companyID, agentID, sessionID, voiceID, sttProvider string) string {
	u := fmt.Sprintf("%s/ws/public/voice/%s/%s/%s",
		strings.TrimRight(wsBase, "/"),
		url.PathEscape(companyID), url.PathEscape(agentID), url.PathEscape(sessionID))
	q := url.Values{}
	q.Set("user_type", "user")
	if voiceID != "" {
		q.Set("voice_id", voiceID)
	}
	if sttProvider != "" {
		q.Set("stt_provider", sttProvider)
	}
	return u + "?" + q.Encode()
}

// AgentFeedURL builds the authenticated agent-dashboard channel endpoint for
// one (agentId, sessionId) conversation.
func AgentFeedURL(wsBase, agentID, sessionID, token string) string {
	u := fmt.Sprintf("%s/ws/agent/%s/%s",
		strings.TrimRight(wsBase, "/"),
		url.PathEscape(agentID), url.PathEscape(sessionID))
	q := url.Values{}
	q.Set("token", token)
	return u + "?" + q.Encode()
}

// CallJoinURL builds the browser URL for joining an accepted video call.
func CallJoinURL(livekitURL, roomName, token string) string {
	q := url.Values{}
	q.Set("room", roomName)
	q.Set("token", token)
	return strings.TrimRight(livekitURL, "/") + "/join?" + q.Encode()
}
