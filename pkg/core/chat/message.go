// Package chat holds the conversation message model and the reconciliation
// engine that merges optimistic local sends with server-confirmed messages.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/leadergroupsaudi/chatkit-go/pkg/protocol"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// TempIDPrefix marks client-generated identifiers awaiting server confirmation.
const TempIDPrefix = "temp_"

// Message is a single chat turn.
type Message struct {
	ID          string
	Sender      Sender
	Text        string
	Type        string
	Timestamp   time.Time
	Attachments []protocol.Attachment
	Options     []string
}

// NewTempID generates a client-side identifier for an optimistic message.
func NewTempID(now time.Time) string {
	return fmt.Sprintf("%s%d", TempIDPrefix, now.UnixMilli())
}

// IsTempID reports whether an identifier is client-generated.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// NewUserMessage builds an optimistic user message with a temp identifier.
func NewUserMessage(text string, now time.Time) Message {
	return Message{
		ID:        NewTempID(now),
		Sender:    SenderUser,
		Text:      text,
		Type:      protocol.MessageTypeMessage,
		Timestamp: now,
	}
}

// FromFrame converts a decoded conversation frame into a Message.
func FromFrame(frame protocol.MessageFrame) Message {
	msgType := frame.MessageType
	if msgType == "" {
		msgType = protocol.MessageTypeMessage
	}
	return Message{
		ID:          string(frame.ID),
		Sender:      Sender(frame.Sender),
		Text:        frame.Message,
		Type:        msgType,
		Timestamp:   parseTimestamp(frame.Timestamp),
		Attachments: frame.Attachments,
		Options:     frame.Options,
	}
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}
