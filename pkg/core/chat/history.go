package chat

import (
	"sync"

	"github.com/leadergroupsaudi/chatkit-go/pkg/protocol"
)

// Form is the active inline-form payload, kept outside the message list.
type Form struct {
	MessageID string
	Fields    []protocol.FormField
}

// History is the ordered message list for one conversation. It only appends
// or replaces in place, never reorders, and never removes entries while the
// session lives.
type History struct {
	mu       sync.Mutex
	messages []Message
	form     *Form
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Seed replaces the list with server-side history, oldest first. Used once
// after the initial conversation fetch, before any live frames apply.
func (h *History) Seed(messages []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append([]Message(nil), messages...)
}

// Apply merges an inbound server message. It reports whether the list
// changed (a discarded duplicate returns false).
//
// Reconciliation rules:
//  1. A confirmed user message replaces, in place, the temp-id user message
//     with identical text. This settles an optimistic send exactly once.
//  2. A message whose id is already present is discarded (redelivery after
//     reconnect is idempotent).
//  3. Everything else appends.
//
// Content matching applies only to sender "user"; agent and system messages
// may legitimately repeat text, so they reconcile by id alone.
func (h *History) Apply(incoming Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if incoming.Sender == SenderUser && !IsTempID(incoming.ID) {
		for i, existing := range h.messages {
			if IsTempID(existing.ID) && existing.Sender == SenderUser && existing.Text == incoming.Text {
				h.messages[i] = incoming
				return true
			}
		}
	}

	if incoming.ID != "" {
		for _, existing := range h.messages {
			if existing.ID == incoming.ID {
				return false
			}
		}
	}

	h.messages = append(h.messages, incoming)
	return true
}

// ApplyFrame decodes the form side-channel and merges the frame's message.
func (h *History) ApplyFrame(frame protocol.MessageFrame) bool {
	msg := FromFrame(frame)
	applied := h.Apply(msg)
	if msg.Type == protocol.MessageTypeForm {
		h.mu.Lock()
		h.form = &Form{MessageID: msg.ID, Fields: frame.Fields}
		h.mu.Unlock()
	}
	return applied
}

// AppendLocal records an optimistic outbound message. Quick-reply options on
// earlier messages are single-use, so a new send clears all of them.
func (h *History) AppendLocal(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.messages {
		h.messages[i].Options = nil
	}
	h.messages = append(h.messages, m)
}

// Messages returns a copy of the ordered list.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.messages...)
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// ActiveForm returns the pending form payload, or nil.
func (h *History) ActiveForm() *Form {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.form
}

// ClearForm drops the pending form payload, typically after submission.
func (h *History) ClearForm() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.form = nil
}
