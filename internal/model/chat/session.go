package chat

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrSessionNotFound = errors.New("session not found")
)

// Mode selects between brainstorming chat and feasibility analysis.
type Mode string

const (
	ModeChat    Mode = "chat"
	ModeAnalyze Mode = "analyze"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeChat || m == ModeAnalyze
}

// Session is the persisted unit of user activity.
type Session struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Date           int64           `json:"date"`
	Mode           Mode            `json:"mode"`
	Messages       []Message       `json:"messages"`
	AnalysisResult *AnalysisResult `json:"analysisResult"`
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	s.Messages = CloneMessages(s.Messages)
	s.AnalysisResult = s.AnalysisResult.Clone()
	return s
}

// CloneSessions deep-copies a session list.
func CloneSessions(sessions []Session) []Session {
	if sessions == nil {
		return nil
	}
	out := make([]Session, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}
