package prompt

import "github.com/zhouzirui/catalyst/backend/internal/model/chat"

// Store exposes prompt profiles to services and HTTP handlers.
type Store interface {
	List() []Profile
	FindByMode(mode chat.Mode) (Profile, bool)
}

// MemoryStore implements Store over a fixed slice.
type MemoryStore struct {
	items []Profile
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items []Profile) *MemoryStore {
	return &MemoryStore{items: append([]Profile(nil), items...)}
}

// List returns all profiles.
func (s *MemoryStore) List() []Profile {
	return append([]Profile(nil), s.items...)
}

// FindByMode looks up the profile for a mode.
func (s *MemoryStore) FindByMode(mode chat.Mode) (Profile, bool) {
	for _, item := range s.items {
		if item.Mode == mode {
			return item, true
		}
	}
	return Profile{}, false
}

// Greeting returns the chat greeting, or a generic one if the store has none.
func Greeting(s Store) string {
	if p, ok := s.FindByMode(chat.ModeChat); ok && p.Greeting != "" {
		return p.Greeting
	}
	return "Hello! How can I help you today?"
}

// SystemInstruction returns the instruction configured for mode.
func SystemInstruction(s Store, mode chat.Mode) string {
	if p, ok := s.FindByMode(mode); ok {
		return p.SystemInstruction
	}
	return ""
}
