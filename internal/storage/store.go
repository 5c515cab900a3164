// Package storage persists the session list as a single named record.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

// DefaultKey names the record holding the session list.
const DefaultKey = "catalyst_sessions"

// Store loads and overwrites the full session list. A Save either replaces
// the record or leaves the previous value in place.
type Store interface {
	Load(ctx context.Context) ([]chat.Session, error)
	Save(ctx context.Context, sessions []chat.Session) error
	Close() error
}

// Encode serializes sessions into the persisted layout.
func Encode(sessions []chat.Session) ([]byte, error) {
	if sessions == nil {
		sessions = []chat.Session{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return nil, fmt.Errorf("encode sessions: %w", err)
	}
	return data, nil
}

// Decode parses the persisted layout. Unknown fields are ignored and an
// absent analysisResult decodes as nil. Empty input yields an empty list.
func Decode(data []byte) ([]chat.Session, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var sessions []chat.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}
