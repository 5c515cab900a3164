package storage

import (
	"context"
	"sync"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

// MemoryStore keeps the encoded record in memory. Errors can be injected to
// exercise failure handling.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load decodes the last saved record.
func (s *MemoryStore) Load(_ context.Context) ([]chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return Decode(s.data)
}

// Save encodes and keeps sessions.
func (s *MemoryStore) Save(_ context.Context, sessions []chat.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	data, err := Encode(sessions)
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

// SetRaw replaces the stored record bytes.
func (s *MemoryStore) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
}

// Saves returns the number of successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
