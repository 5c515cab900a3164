// Package conversation holds the message log of the active session and applies
// user input, streamed reply fragments and error fallbacks to it.
package conversation

import (
	"strings"
	"time"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

// FallbackText is shown when a reply stream fails.
const FallbackText = "I encountered an error connecting to the neural innovation network. Please try again."

// ErrInvalidInput is returned for blank submissions and submissions while a
// reply is still streaming.
var ErrInvalidInput = chat.ErrInvalidInput

// Reducer owns an ordered message log. It is not safe for concurrent use; the
// session controller serializes access.
type Reducer struct {
	greeting   string
	now        func() time.Time
	newID      func() string
	messages   []chat.Message
	generating bool
}

// New creates a reducer holding a single greeting message.
func New(greeting string, now func() time.Time, newID func() string) *Reducer {
	r := &Reducer{greeting: greeting, now: now, newID: newID}
	r.Reset()
	return r
}

// Reset replaces the log with a fresh greeting and drops any in-flight reply.
func (r *Reducer) Reset() {
	r.messages = []chat.Message{{
		ID:        r.newID(),
		Role:      chat.RoleModel,
		Text:      r.greeting,
		Timestamp: r.now().UnixMilli(),
	}}
	r.generating = false
}

// Restore installs a stored log verbatim. An empty log falls back to Reset so
// the greeting invariant holds.
func (r *Reducer) Restore(messages []chat.Message) {
	if len(messages) == 0 {
		r.Reset()
		return
	}
	r.messages = chat.CloneMessages(messages)
	r.generating = false
}

// Messages returns a copy of the log.
func (r *Reducer) Messages() []chat.Message {
	return chat.CloneMessages(r.messages)
}

// Len returns the number of messages.
func (r *Reducer) Len() int {
	return len(r.messages)
}

// Generating reports whether a reply is in flight.
func (r *Reducer) Generating() bool {
	return r.generating
}

// Submit appends a user message and marks a reply as in flight.
func (r *Reducer) Submit(text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" || r.generating {
		return chat.Message{}, ErrInvalidInput
	}
	msg := chat.Message{
		ID:        r.newID(),
		Role:      chat.RoleUser,
		Text:      text,
		Timestamp: r.now().UnixMilli(),
	}
	r.messages = append(r.messages, msg)
	r.generating = true
	return msg, nil
}

// BeginStreamingReply appends an empty model message and returns its id.
func (r *Reducer) BeginStreamingReply() string {
	id := r.newID()
	r.messages = append(r.messages, chat.Message{
		ID:        id,
		Role:      chat.RoleModel,
		Timestamp: r.now().UnixMilli(),
	})
	return id
}

// ApplyStreamDelta appends delta to the message with the given id. It reports
// false, changing nothing, when no such message exists.
func (r *Reducer) ApplyStreamDelta(id, delta string) bool {
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].ID == id {
			r.messages[i].Text += delta
			return true
		}
	}
	return false
}

// CompleteStream marks the reply as finished.
func (r *Reducer) CompleteStream() {
	r.generating = false
}

// FailStream ends the reply and appends the fallback error message. The
// placeholder keeps whatever partial text it received.
func (r *Reducer) FailStream() chat.Message {
	r.generating = false
	msg := chat.Message{
		ID:        r.newID(),
		Role:      chat.RoleModel,
		Text:      FallbackText,
		Timestamp: r.now().UnixMilli(),
		IsError:   true,
	}
	r.messages = append(r.messages, msg)
	return msg
}

// Find returns the message with the given id.
func (r *Reducer) Find(id string) (chat.Message, bool) {
	for _, m := range r.messages {
		if m.ID == id {
			return m, true
		}
	}
	return chat.Message{}, false
}

// FirstUserText returns the text of the earliest user message.
func (r *Reducer) FirstUserText() (string, bool) {
	for _, m := range r.messages {
		if m.Role == chat.RoleUser {
			return m.Text, true
		}
	}
	return "", false
}
