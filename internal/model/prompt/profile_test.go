package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

func TestSeedProvidesBothModes(t *testing.T) {
	store := NewMemoryStore(Seed())

	chatProfile, ok := store.FindByMode(chat.ModeChat)
	require.True(t, ok)
	assert.Contains(t, chatProfile.SystemInstruction, "Catalyst")
	assert.Len(t, chatProfile.Suggestions, 4)

	analyze, ok := store.FindByMode(chat.ModeAnalyze)
	require.True(t, ok)
	assert.Contains(t, analyze.SystemInstruction, "Feasibility, Desirability, Viability, Novelty, and Timing")

	assert.Contains(t, Greeting(store), "I'm Catalyst")
}

func TestParseRejectsMissingMode(t *testing.T) {
	_, err := Parse([]byte(`
- mode: chat
  name: only chat
  greeting: hi
  systemInstruction: be helpful
`))
	require.Error(t, err)
}

func TestParseRejectsUnknownMode(t *testing.T) {
	_, err := Parse([]byte(`
- mode: poetry
  name: bad
  systemInstruction: rhyme
`))
	require.Error(t, err)
}

func TestLoadFileEmptyPathUsesSeed(t *testing.T) {
	profiles, err := LoadFile("")
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}
