package chat

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/catalyst/backend/internal/logging"
	"github.com/zhouzirui/catalyst/backend/internal/metrics"
	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	"github.com/zhouzirui/catalyst/backend/internal/service/analysis"
	"github.com/zhouzirui/catalyst/backend/internal/service/conversation"
	"github.com/zhouzirui/catalyst/backend/internal/storage"
)

var (
	ErrInvalidInput    = chat.ErrInvalidInput
	ErrSessionNotFound = chat.ErrSessionNotFound
	// ErrStale is returned when the active session changed while a reply or
	// analysis was in flight; its output was discarded.
	ErrStale = errors.New("session changed while request was in flight")
)

// DefaultTitle names sessions with no user input and no analysis.
const DefaultTitle = "New Session"

const (
	titleLimit   = 30
	storeTimeout = 5 * time.Second
)

// Options customises a Service. Zero values fall back to wall-clock time and
// UUIDv7 identifiers.
type Options struct {
	Greeting string
	Now      func() time.Time
	NewID    func() string
}

// Service owns the active session and the saved session list. All methods are
// safe for concurrent use; mutations are serialized and followed by a sync to
// the store when the session has content.
type Service struct {
	mu    sync.Mutex
	store storage.Store
	now   func() time.Time
	newID func() string
	log   *logrus.Entry

	sessions     []chat.Session
	currentID    string
	mode         chat.Mode
	draft        string
	conversation *conversation.Reducer
	analysis     *analysis.Reducer
	analysisSeq  uint64
	streamSeq    uint64
}

// Snapshot is a read-only view of the active session.
type Snapshot struct {
	SessionID       string               `json:"sessionId"`
	Title           string               `json:"title"`
	Mode            chat.Mode            `json:"mode"`
	Draft           string               `json:"draft"`
	Messages        []chat.Message       `json:"messages"`
	AnalysisResult  *chat.AnalysisResult `json:"analysisResult"`
	Generating      bool                 `json:"generating"`
	AnalysisLoading bool                 `json:"analysisLoading"`
}

// NewService loads the saved session list and opens a fresh session. A store
// that fails to load yields an empty list.
func NewService(ctx context.Context, store storage.Store, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = newSessionID
	}

	s := &Service{
		store:        store,
		now:          now,
		newID:        newID,
		log:          logging.For("session"),
		mode:         chat.ModeChat,
		conversation: conversation.New(opts.Greeting, now, newID),
		analysis:     analysis.New(),
	}
	s.currentID = newID()

	sessions, err := store.Load(ctx)
	if err != nil {
		s.log.WithError(err).Warn("failed to load saved sessions, starting empty")
		sessions = nil
	}
	s.sessions = sessions
	metrics.Sessions.Set(float64(len(s.sessions)))
	s.log.WithField("sessions", len(s.sessions)).Info("session history loaded")
	return s
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Snapshot returns the active session state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:       s.currentID,
		Title:           s.deriveTitleLocked(),
		Mode:            s.mode,
		Draft:           s.draft,
		Messages:        s.conversation.Messages(),
		AnalysisResult:  s.analysis.Result(),
		Generating:      s.conversation.Generating(),
		AnalysisLoading: s.analysis.Loading(),
	}
}

// Sessions returns the saved sessions, most recent first.
func (s *Service) Sessions() []chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.CloneSessions(s.sessions)
}

// Session returns a saved session by id.
func (s *Service) Session(id string) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return chat.Session{}, ErrSessionNotFound
	}
	return s.sessions[idx].Clone(), nil
}

// CurrentID returns the id of the active session.
func (s *Service) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// DeriveTitle names the active session: the analysed idea if there is one,
// else the first user message cut to 30 characters, else DefaultTitle.
func (s *Service) DeriveTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deriveTitleLocked()
}

func (s *Service) deriveTitleLocked() string {
	if s.analysis.HasResult() {
		return s.analysis.Result().IdeaName
	}
	if s.conversation.Len() > 1 {
		if text, ok := s.conversation.FirstUserText(); ok {
			return truncateTitle(text)
		}
	}
	return DefaultTitle
}

func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}

// StartNewSession discards the active session state and opens an empty one.
// Nothing is written to the store.
func (s *Service) StartNewSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return s.currentID
}

func (s *Service) resetLocked() {
	s.streamSeq++
	s.conversation.Reset()
	s.analysis.Clear()
	s.currentID = s.newID()
	s.mode = chat.ModeChat
	s.draft = ""
}

// LoadSession makes session the active one, replacing the reducers' state
// verbatim.
func (s *Service) LoadSession(session chat.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(session)
}

// LoadSessionByID activates a saved session.
func (s *Service) LoadSessionByID(id string) (Snapshot, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	s.loadLocked(s.sessions[idx])
	s.mu.Unlock()
	return s.Snapshot(), nil
}

func (s *Service) loadLocked(session chat.Session) {
	s.streamSeq++
	s.currentID = session.ID
	s.conversation.Restore(session.Messages)
	s.analysis.Restore(session.AnalysisResult)
	s.mode = session.Mode
	if !s.mode.Valid() {
		s.mode = chat.ModeChat
	}
	s.draft = ""
}

// DeleteSession removes a session from the list and persists the result.
// Deleting the active session also starts a new one.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 && id != s.currentID {
		return ErrSessionNotFound
	}
	if idx >= 0 {
		s.sessions = slices.Delete(s.sessions, idx, idx+1)
		s.persistLocked(ctx)
	}
	if id == s.currentID {
		s.resetLocked()
	}
	s.log.WithField("session_id", id).Info("session deleted")
	return nil
}

// Mode returns the active mode.
func (s *Service) Mode() chat.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between chat and analyze. The draft is cleared.
func (s *Service) SetMode(ctx context.Context, mode chat.Mode) error {
	if !mode.Valid() {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.draft = ""
	s.syncLocked(ctx)
	return nil
}

// SetDraft records unsent input text.
func (s *Service) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// SubmitUserText appends a user message to the active conversation.
func (s *Service) SubmitUserText(ctx context.Context, text string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, err := s.conversation.Submit(text)
	if err != nil {
		return chat.Message{}, err
	}
	s.draft = ""
	s.syncLocked(ctx)
	return msg, nil
}

// BeginStreamingReply appends the reply placeholder and returns a handle that
// ties later deltas to the active session.
func (s *Service) BeginStreamingReply(ctx context.Context) (chat.StreamHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.conversation.Generating() {
		return chat.StreamHandle{}, ErrInvalidInput
	}
	handle := s.openReplyLocked()
	s.syncLocked(ctx)
	return handle, nil
}

// openReplyLocked appends the reply placeholder and issues a handle that
// invalidates every earlier one.
func (s *Service) openReplyLocked() chat.StreamHandle {
	s.streamSeq++
	return chat.StreamHandle{
		SessionID: s.currentID,
		MessageID: s.conversation.BeginStreamingReply(),
		Seq:       s.streamSeq,
	}
}

// handleLiveLocked reports whether handle names the reply currently streaming
// into the active session.
func (s *Service) handleLiveLocked(handle chat.StreamHandle) bool {
	return handle.SessionID == s.currentID && handle.Seq == s.streamSeq && s.conversation.Generating()
}

// ApplyStreamDelta appends delta to the placeholder named by handle. It
// reports false when the handle is stale or the message is gone.
func (s *Service) ApplyStreamDelta(ctx context.Context, handle chat.StreamHandle, delta string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.handleLiveLocked(handle) {
		return false
	}
	if !s.conversation.ApplyStreamDelta(handle.MessageID, delta) {
		return false
	}
	s.syncLocked(ctx)
	return true
}

// CompleteStream ends the reply. Stale handles are ignored.
func (s *Service) CompleteStream(ctx context.Context, handle chat.StreamHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.handleLiveLocked(handle) {
		return false
	}
	s.conversation.CompleteStream()
	s.syncLocked(ctx)
	return true
}

// FailStream ends the reply with the fallback error message. Stale handles
// are ignored.
func (s *Service) FailStream(ctx context.Context, handle chat.StreamHandle) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.handleLiveLocked(handle) {
		return chat.Message{}, false
	}
	msg := s.conversation.FailStream()
	s.syncLocked(ctx)
	return msg, true
}

// Message returns a message of the active session.
func (s *Service) Message(handle chat.StreamHandle) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle.SessionID != s.currentID {
		return chat.Message{}, false
	}
	return s.conversation.Find(handle.MessageID)
}

// StartAnalysis marks an analysis of idea as loading.
func (s *Service) StartAnalysis(ctx context.Context, idea string) (chat.AnalysisTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.analysis.Start(idea); err != nil {
		return chat.AnalysisTicket{}, err
	}
	s.analysisSeq++
	s.syncLocked(ctx)
	return chat.AnalysisTicket{SessionID: s.currentID, Seq: s.analysisSeq}, nil
}

// CompleteAnalysis installs result if ticket still names the in-flight
// analysis of the active session. The draft is cleared on success.
func (s *Service) CompleteAnalysis(ctx context.Context, ticket chat.AnalysisTicket, result *chat.AnalysisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ticketLiveLocked(ticket) {
		return false
	}
	s.analysis.Complete(result)
	s.draft = ""
	s.syncLocked(ctx)
	return true
}

// FailAnalysis clears the loading flag for ticket.
func (s *Service) FailAnalysis(ctx context.Context, ticket chat.AnalysisTicket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ticketLiveLocked(ticket) {
		return false
	}
	s.analysis.Fail()
	s.syncLocked(ctx)
	return true
}

func (s *Service) ticketLiveLocked(ticket chat.AnalysisTicket) bool {
	return ticket.SessionID == s.currentID && ticket.Seq == s.analysisSeq && s.analysis.Loading()
}

func (s *Service) indexLocked(id string) int {
	return slices.IndexFunc(s.sessions, func(session chat.Session) bool {
		return session.ID == id
	})
}

// syncLocked upserts the active session into the list when it has content,
// keeps the list ordered by date descending and persists it.
func (s *Service) syncLocked(ctx context.Context) {
	if s.conversation.Len() <= 1 && !s.analysis.HasResult() {
		return
	}

	snapshot := chat.Session{
		ID:             s.currentID,
		Title:          s.deriveTitleLocked(),
		Date:           s.now().UnixMilli(),
		Mode:           s.mode,
		Messages:       s.conversation.Messages(),
		AnalysisResult: s.analysis.Result(),
	}

	if idx := s.indexLocked(s.currentID); idx >= 0 {
		s.sessions[idx] = snapshot
	} else {
		s.sessions = append([]chat.Session{snapshot}, s.sessions...)
	}
	slices.SortStableFunc(s.sessions, func(a, b chat.Session) int {
		return cmp.Compare(b.Date, a.Date)
	})
	s.persistLocked(ctx)
}

// persistLocked writes the list. Failures are logged and otherwise ignored;
// the in-memory list stays authoritative.
func (s *Service) persistLocked(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	metrics.Sessions.Set(float64(len(s.sessions)))
	if err := s.store.Save(ctx, s.sessions); err != nil {
		metrics.StoreWrites.WithLabelValues("failed").Inc()
		s.log.WithError(err).Warn("failed to persist sessions")
		return
	}
	metrics.StoreWrites.WithLabelValues("ok").Inc()
}
