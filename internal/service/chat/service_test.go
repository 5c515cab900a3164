package chat_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	chatService "github.com/zhouzirui/catalyst/backend/internal/service/chat"
	"github.com/zhouzirui/catalyst/backend/internal/service/conversation"
	"github.com/zhouzirui/catalyst/backend/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const greeting = "Hello! I'm Catalyst."

type fixture struct {
	svc   *chatService.Service
	store *storage.MemoryStore
	clock *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	ids int
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) NewID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids++
	return fmt.Sprintf("id-%03d", c.ids)
}

func newFixture(t *testing.T, store *storage.MemoryStore) fixture {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	svc := chatService.NewService(context.Background(), store, chatService.Options{
		Greeting: greeting,
		Now:      clock.Now,
		NewID:    clock.NewID,
	})
	return fixture{svc: svc, store: store, clock: clock}
}

func sampleResult(name string) *chat.AnalysisResult {
	return &chat.AnalysisResult{
		IdeaName:       name,
		Summary:        "A promising niche.",
		OverallScore:   70,
		Recommendation: "Pilot with ten customers.",
		Metrics: []chat.AnalysisMetric{
			{Metric: "Feasibility", Score: 80, Reasoning: "Off-the-shelf parts."},
			{Metric: "Market Demand", Score: 60, Reasoning: "Crowded space."},
		},
	}
}

func TestNewServiceStartsWithGreeting(t *testing.T) {
	f := newFixture(t, nil)

	snap := f.svc.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, chat.RoleModel, snap.Messages[0].Role)
	assert.Equal(t, greeting, snap.Messages[0].Text)
	assert.Equal(t, chat.ModeChat, snap.Mode)
	assert.Equal(t, chatService.DefaultTitle, snap.Title)
	assert.Nil(t, snap.AnalysisResult)
	assert.Empty(t, f.svc.Sessions())
}

func TestNewServiceSwallowsLoadFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	store.LoadErr = errors.New("disk on fire")

	f := newFixture(t, store)
	assert.Empty(t, f.svc.Sessions())
	assert.Len(t, f.svc.Snapshot().Messages, 1)
}

func TestNewServiceLoadsSavedSessions(t *testing.T) {
	store := storage.NewMemoryStore()
	saved := []chat.Session{
		{ID: "b", Title: "Later", Date: 20, Mode: chat.ModeChat, Messages: []chat.Message{{ID: "m", Role: chat.RoleModel, Text: greeting}}},
		{ID: "a", Title: "Earlier", Date: 10, Mode: chat.ModeAnalyze, Messages: []chat.Message{{ID: "n", Role: chat.RoleModel, Text: greeting}}},
	}
	require.NoError(t, store.Save(context.Background(), saved))

	f := newFixture(t, store)
	assert.Equal(t, saved, f.svc.Sessions())
}

func TestGreetingOnlySessionIsNotPersisted(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.svc.SetMode(context.Background(), chat.ModeAnalyze))
	f.svc.SetDraft("half typed")

	assert.Empty(t, f.svc.Sessions())
	assert.Zero(t, f.store.Saves())
}

func TestSubmitUserTextPersistsSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.svc.SetDraft("Build a carbon tracker for small businesses that audits suppliers")
	msg, err := f.svc.SubmitUserText(ctx, "Build a carbon tracker for small businesses that audits suppliers")
	require.NoError(t, err)
	assert.Equal(t, chat.RoleUser, msg.Role)

	sessions := f.svc.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, f.svc.CurrentID(), sessions[0].ID)
	assert.Equal(t, "Build a carbon tracker for sma...", sessions[0].Title)
	assert.Len(t, sessions[0].Messages, 2)
	assert.Empty(t, f.svc.Snapshot().Draft)

	persisted, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sessions, persisted)
}

func TestSubmitRejectsBlankAndConcurrentTurns(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.SubmitUserText(ctx, "   ")
	assert.ErrorIs(t, err, chatService.ErrInvalidInput)

	_, err = f.svc.SubmitUserText(ctx, "first")
	require.NoError(t, err)
	_, err = f.svc.SubmitUserText(ctx, "second")
	assert.ErrorIs(t, err, chatService.ErrInvalidInput)
	assert.Len(t, f.svc.Snapshot().Messages, 2)
}

func TestDeriveTitle(t *testing.T) {
	ctx := context.Background()

	t.Run("short message kept whole", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.SubmitUserText(ctx, "Solar kiosks")
		require.NoError(t, err)
		assert.Equal(t, "Solar kiosks", f.svc.DeriveTitle())
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		f := newFixture(t, nil)
		text := strings.Repeat("é", 31)
		_, err := f.svc.SubmitUserText(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, string([]rune(text)[:30])+"...", f.svc.DeriveTitle())
	})

	t.Run("analysis name wins", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.SubmitUserText(ctx, "Solar kiosks")
		require.NoError(t, err)
		f.svc.LoadSession(chat.Session{
			ID:             "s",
			Mode:           chat.ModeAnalyze,
			Messages:       f.svc.Snapshot().Messages,
			AnalysisResult: sampleResult("SunBooth"),
		})
		assert.Equal(t, "SunBooth", f.svc.DeriveTitle())
	})

	t.Run("no user message", func(t *testing.T) {
		f := newFixture(t, nil)
		f.svc.LoadSession(chat.Session{ID: "s", Mode: chat.ModeChat, Messages: []chat.Message{
			{ID: "1", Role: chat.RoleModel, Text: greeting},
			{ID: "2", Role: chat.RoleModel, Text: "Anyone there?"},
		}})
		assert.Equal(t, chatService.DefaultTitle, f.svc.DeriveTitle())
	})
}

func TestStreamingLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.BeginStreamingReply(ctx)
	assert.ErrorIs(t, err, chatService.ErrInvalidInput)

	_, err = f.svc.SubmitUserText(ctx, "Idea")
	require.NoError(t, err)
	handle, err := f.svc.BeginStreamingReply(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.svc.CurrentID(), handle.SessionID)

	assert.True(t, f.svc.ApplyStreamDelta(ctx, handle, "Hel"))
	assert.True(t, f.svc.ApplyStreamDelta(ctx, handle, "lo"))
	assert.False(t, f.svc.ApplyStreamDelta(ctx, chat.StreamHandle{SessionID: handle.SessionID, MessageID: "missing"}, "x"))
	assert.True(t, f.svc.CompleteStream(ctx, handle))
	assert.False(t, f.svc.CompleteStream(ctx, handle))

	reply, ok := f.svc.Message(handle)
	require.True(t, ok)
	assert.Equal(t, "Hello", reply.Text)

	snap := f.svc.Snapshot()
	assert.False(t, snap.Generating)
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "Hello", f.svc.Sessions()[0].Messages[2].Text)
}

func TestFailStreamKeepsPartialReply(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.SubmitUserText(ctx, "Idea")
	require.NoError(t, err)
	handle, err := f.svc.BeginStreamingReply(ctx)
	require.NoError(t, err)
	f.svc.ApplyStreamDelta(ctx, handle, "Partial")

	msg, ok := f.svc.FailStream(ctx, handle)
	require.True(t, ok)
	assert.True(t, msg.IsError)
	assert.Equal(t, conversation.FallbackText, msg.Text)

	messages := f.svc.Snapshot().Messages
	require.Len(t, messages, 4)
	assert.Equal(t, "Partial", messages[2].Text)
	assert.True(t, messages[3].IsError)
}

func TestStaleStreamIsIgnoredAfterSwitch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.SubmitUserText(ctx, "First idea")
	require.NoError(t, err)
	handle, err := f.svc.BeginStreamingReply(ctx)
	require.NoError(t, err)
	first := f.svc.CurrentID()

	second := f.svc.StartNewSession()
	require.NotEqual(t, first, second)

	assert.False(t, f.svc.ApplyStreamDelta(ctx, handle, "late"))
	assert.False(t, f.svc.CompleteStream(ctx, handle))
	_, ok := f.svc.FailStream(ctx, handle)
	assert.False(t, ok)

	snap := f.svc.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, greeting, snap.Messages[0].Text)

	saved, err := f.svc.Session(first)
	require.NoError(t, err)
	assert.Empty(t, saved.Messages[2].Text)
}

func TestStaleStreamStaysDeadAfterReload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.BeginTurn(ctx, "first idea")
	require.NoError(t, err)
	sessionA := first.Handle.SessionID

	f.svc.StartNewSession()
	_, err = f.svc.LoadSessionByID(sessionA)
	require.NoError(t, err)

	assert.False(t, f.svc.ApplyStreamDelta(ctx, first.Handle, "LATE"))
	restored, ok := f.svc.Message(chat.StreamHandle{SessionID: sessionA, MessageID: first.Handle.MessageID})
	require.True(t, ok)
	assert.Empty(t, restored.Text)

	second, err := f.svc.BeginTurn(ctx, "second idea")
	require.NoError(t, err)
	assert.NotEqual(t, first.Handle.Seq, second.Handle.Seq)

	assert.False(t, f.svc.CompleteStream(ctx, first.Handle))
	_, failed := f.svc.FailStream(ctx, first.Handle)
	assert.False(t, failed)
	assert.True(t, f.svc.Snapshot().Generating)

	_, err = f.svc.BeginTurn(ctx, "third idea")
	assert.ErrorIs(t, err, chatService.ErrInvalidInput)

	assert.True(t, f.svc.ApplyStreamDelta(ctx, second.Handle, "fresh"))
	assert.True(t, f.svc.CompleteStream(ctx, second.Handle))
	assert.False(t, f.svc.ApplyStreamDelta(ctx, second.Handle, "after end"))

	reply, ok := f.svc.Message(second.Handle)
	require.True(t, ok)
	assert.Equal(t, "fresh", reply.Text)
}

func TestSessionOrderingAfterEdits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	turn := func(text string) string {
		_, err := f.svc.SubmitUserText(ctx, text)
		require.NoError(t, err)
		handle, err := f.svc.BeginStreamingReply(ctx)
		require.NoError(t, err)
		require.True(t, f.svc.CompleteStream(ctx, handle))
		return handle.SessionID
	}

	t1 := turn("one")
	f.svc.StartNewSession()
	t2 := turn("two")
	f.svc.StartNewSession()
	t3 := turn("three")

	ids := func() []string {
		var out []string
		for _, s := range f.svc.Sessions() {
			out = append(out, s.ID)
		}
		return out
	}
	assert.Equal(t, []string{t3, t2, t1}, ids())

	_, err := f.svc.LoadSessionByID(t1)
	require.NoError(t, err)
	assert.Equal(t, []string{t3, t2, t1}, ids())

	turn("one more")
	assert.Equal(t, []string{t1, t3, t2}, ids())
}

func TestLoadSessionByIDNotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.LoadSessionByID("nope")
	assert.ErrorIs(t, err, chatService.ErrSessionNotFound)
}

func TestLoadSessionRestoresVerbatim(t *testing.T) {
	f := newFixture(t, nil)
	session := chat.Session{
		ID:   "stored",
		Mode: chat.ModeAnalyze,
		Messages: []chat.Message{
			{ID: "1", Role: chat.RoleModel, Text: greeting},
			{ID: "2", Role: chat.RoleUser, Text: "Drone deliveries"},
		},
		AnalysisResult: sampleResult("SkyDrop"),
	}
	f.svc.SetDraft("stale draft")
	f.svc.LoadSession(session)

	snap := f.svc.Snapshot()
	assert.Equal(t, "stored", snap.SessionID)
	assert.Equal(t, chat.ModeAnalyze, snap.Mode)
	assert.Equal(t, session.Messages, snap.Messages)
	assert.Equal(t, session.AnalysisResult, snap.AnalysisResult)
	assert.Empty(t, snap.Draft)
}

func TestDeleteCurrentSessionStartsFresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.svc.LoadSession(chat.Session{
		ID:             "current",
		Mode:           chat.ModeAnalyze,
		Messages:       []chat.Message{{ID: "1", Role: chat.RoleModel, Text: greeting}, {ID: "2", Role: chat.RoleUser, Text: "x"}},
		AnalysisResult: sampleResult("X"),
	})
	require.NoError(t, f.svc.SetMode(ctx, chat.ModeAnalyze))
	require.Len(t, f.svc.Sessions(), 1)

	require.NoError(t, f.svc.DeleteSession(ctx, "current"))

	snap := f.svc.Snapshot()
	assert.NotEqual(t, "current", snap.SessionID)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, greeting, snap.Messages[0].Text)
	assert.Nil(t, snap.AnalysisResult)
	assert.Equal(t, chat.ModeChat, snap.Mode)
	assert.Empty(t, f.svc.Sessions())

	persisted, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestDeleteOtherSessionKeepsCurrent(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), []chat.Session{
		{ID: "old", Title: "Old", Date: 1, Mode: chat.ModeChat, Messages: []chat.Message{{ID: "1", Role: chat.RoleModel, Text: greeting}}},
	}))
	f := newFixture(t, store)
	current := f.svc.CurrentID()

	require.NoError(t, f.svc.DeleteSession(context.Background(), "old"))
	assert.Equal(t, current, f.svc.CurrentID())
	assert.Empty(t, f.svc.Sessions())

	assert.ErrorIs(t, f.svc.DeleteSession(context.Background(), "old"), chatService.ErrSessionNotFound)
}

func TestSetModeValidatesAndClearsDraft(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.SetMode(ctx, chat.Mode("poetry")), chatService.ErrInvalidInput)

	f.svc.SetDraft("something")
	require.NoError(t, f.svc.SetMode(ctx, chat.ModeAnalyze))
	snap := f.svc.Snapshot()
	assert.Equal(t, chat.ModeAnalyze, snap.Mode)
	assert.Empty(t, snap.Draft)
}

func TestAnalysisLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ticket, err := f.svc.StartAnalysis(ctx, "SkyDrop")
	require.NoError(t, err)
	assert.True(t, f.svc.Snapshot().AnalysisLoading)

	_, err = f.svc.StartAnalysis(ctx, "again")
	assert.ErrorIs(t, err, chatService.ErrInvalidInput)

	f.svc.SetDraft("SkyDrop")
	require.True(t, f.svc.CompleteAnalysis(ctx, ticket, sampleResult("SkyDrop")))
	assert.False(t, f.svc.CompleteAnalysis(ctx, ticket, sampleResult("Other")))

	snap := f.svc.Snapshot()
	assert.False(t, snap.AnalysisLoading)
	assert.Empty(t, snap.Draft)
	assert.Equal(t, "SkyDrop", snap.Title)

	sessions := f.svc.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "SkyDrop", sessions[0].Title)
	assert.Len(t, sessions[0].Messages, 1)
}

func TestFailAnalysisClearsLoading(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.StartAnalysis(ctx, "   ")
	assert.ErrorIs(t, err, chatService.ErrInvalidInput)

	ticket, err := f.svc.StartAnalysis(ctx, "idea")
	require.NoError(t, err)
	require.True(t, f.svc.FailAnalysis(ctx, ticket))

	snap := f.svc.Snapshot()
	assert.False(t, snap.AnalysisLoading)
	assert.Nil(t, snap.AnalysisResult)
}

func TestStaleAnalysisIsDropped(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ticket, err := f.svc.StartAnalysis(ctx, "idea")
	require.NoError(t, err)
	f.svc.StartNewSession()

	assert.False(t, f.svc.CompleteAnalysis(ctx, ticket, sampleResult("Late")))
	assert.Nil(t, f.svc.Snapshot().AnalysisResult)
	assert.Empty(t, f.svc.Sessions())
}

func TestStoreSaveFailureKeepsMemoryState(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SaveErr = errors.New("quota exceeded")
	f := newFixture(t, store)

	_, err := f.svc.SubmitUserText(context.Background(), "Idea")
	require.NoError(t, err)
	assert.Len(t, f.svc.Sessions(), 1)
	assert.Zero(t, store.Saves())
}

func TestPersistenceRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	f := newFixture(t, store)
	ctx := context.Background()

	_, err := f.svc.SubmitUserText(ctx, "Idea")
	require.NoError(t, err)
	ticket, err := f.svc.StartAnalysis(ctx, "Idea")
	require.NoError(t, err)
	require.True(t, f.svc.CompleteAnalysis(ctx, ticket, sampleResult("Idea")))

	reloaded := newFixture(t, store)
	assert.Equal(t, f.svc.Sessions(), reloaded.svc.Sessions())
}
