package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	"github.com/zhouzirui/catalyst/backend/internal/storage"
)

func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.json")
	store, err := storage.NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), []chat.Session{
		{
			ID: "s-2", Title: "Rooftop Bees", Date: 2000, Mode: chat.ModeAnalyze,
			Messages: []chat.Message{{ID: "1", Role: chat.RoleModel, Text: "Hello!"}},
			AnalysisResult: &chat.AnalysisResult{
				IdeaName: "Rooftop Bees", Summary: "Urban honey.", OverallScore: 72, Recommendation: "Start small.",
				Metrics: []chat.AnalysisMetric{{Metric: "Feasibility", Score: 80, Reasoning: "Cheap hives."}},
			},
		},
		{
			ID: "s-1", Title: "Night markets", Date: 1000, Mode: chat.ModeChat,
			Messages: []chat.Message{
				{ID: "1", Role: chat.RoleModel, Text: "Hello!"},
				{ID: "2", Role: chat.RoleUser, Text: "Night markets"},
			},
		},
	}))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CATALYST_STORE", "file")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListShowsSessionsInOrder(t *testing.T) {
	path := seedStore(t)
	out, err := run(t, "list", "--path", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Sessions (2)")
	assert.Less(t, strings.Index(out, "Rooftop Bees"), strings.Index(out, "Night markets"))
}

func TestShowPrintsTranscriptAndAnalysis(t *testing.T) {
	path := seedStore(t)
	out, err := run(t, "show", "s-2", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Analysis: Rooftop Bees")
	assert.Contains(t, out, "Cheap hives.")

	_, err = run(t, "show", "missing", "--path", path)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestDeleteRemovesSession(t *testing.T) {
	path := seedStore(t)
	_, err := run(t, "delete", "s-1", "--path", path)
	require.NoError(t, err)

	store, err := storage.NewFileStore(path)
	require.NoError(t, err)
	sessions, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s-2", sessions[0].ID)
}

func TestExportWritesFiles(t *testing.T) {
	path := seedStore(t)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "out.csv")
	_, err := run(t, "export", "csv", "s-2", "--path", path, "-o", csvPath)
	require.NoError(t, err)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `"Idea Name","Rooftop Bees"`))

	pdfPath := filepath.Join(dir, "out.pdf")
	_, err = run(t, "export", "pdf", "s-2", "--path", path, "-o", pdfPath)
	require.NoError(t, err)
	data, err = os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))

	_, err = run(t, "export", "csv", "s-1", "--path", path, "-o", csvPath)
	assert.Error(t, err)

	_, err = run(t, "export", "xml", "s-2", "--path", path)
	assert.Error(t, err)
}
