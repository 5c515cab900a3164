package chat

// Role identifies who authored a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Message is one entry of a conversation. Text only changes while the message
// is the target of an open reply stream.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	IsError   bool   `json:"isError,omitempty"`
}

// StreamHandle addresses the placeholder message an incremental reply is
// written into. It goes stale once its session is no longer the active one or
// a later reply has been opened; Seq tells reopened sessions apart.
type StreamHandle struct {
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	Seq       uint64 `json:"seq"`
}

// CloneMessages returns an independent copy of msgs.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
