package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zhouzirui/catalyst/backend/internal/analysis/feasibility"
	"github.com/zhouzirui/catalyst/backend/internal/metrics"
	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	"github.com/zhouzirui/catalyst/backend/internal/service/ai"
)

// Turn is one user message and the reply placeholder opened for it.
type Turn struct {
	User    chat.Message
	Handle  chat.StreamHandle
	History []chat.Message
}

// BeginTurn submits text and opens the reply placeholder in one step. History
// is the conversation as it stood before text was added.
func (s *Service) BeginTurn(ctx context.Context, text string) (*Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.conversation.Messages()
	user, err := s.conversation.Submit(text)
	if err != nil {
		return nil, err
	}
	s.draft = ""
	handle := s.openReplyLocked()
	s.syncLocked(ctx)

	return &Turn{User: user, Handle: handle, History: history}, nil
}

// StreamTurn drives the gateway reply for turn into the active session.
// onDelta, if set, sees every fragment that was applied. It returns the final
// reply on success. On failure the fallback error message is returned together
// with an error wrapping ai.ErrGateway. ErrStale means the session changed and
// the rest of the stream was dropped.
func (s *Service) StreamTurn(ctx context.Context, gw ai.Gateway, turn *Turn, onDelta func(string)) (chat.Message, error) {
	log := s.log.WithField("session_id", turn.Handle.SessionID)

	stream, err := gw.StreamReply(ctx, turn.History, turn.User.Text)
	if err != nil {
		return s.failTurn(ctx, turn, err)
	}
	defer stream.Close()

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.failTurn(ctx, turn, err)
		}
		if delta == "" {
			continue
		}
		if !s.ApplyStreamDelta(ctx, turn.Handle, delta) {
			metrics.ChatTurns.WithLabelValues("stale").Inc()
			log.Info("active session changed, dropping reply stream")
			return chat.Message{}, ErrStale
		}
		metrics.StreamDeltas.Inc()
		if onDelta != nil {
			onDelta(delta)
		}
	}

	if !s.CompleteStream(ctx, turn.Handle) {
		metrics.ChatTurns.WithLabelValues("stale").Inc()
		return chat.Message{}, ErrStale
	}
	metrics.ChatTurns.WithLabelValues("completed").Inc()

	reply, _ := s.Message(turn.Handle)
	return reply, nil
}

func (s *Service) failTurn(ctx context.Context, turn *Turn, cause error) (chat.Message, error) {
	err := ai.GatewayErr(cause)
	msg, ok := s.FailStream(ctx, turn.Handle)
	if !ok {
		metrics.ChatTurns.WithLabelValues("stale").Inc()
		return chat.Message{}, errors.Join(ErrStale, err)
	}
	metrics.ChatTurns.WithLabelValues("failed").Inc()
	s.log.WithError(err).WithField("session_id", turn.Handle.SessionID).Error("reply stream failed")
	return msg, err
}

// Analyze runs a feasibility analysis of idea against gw and installs the
// result into the active session.
func (s *Service) Analyze(ctx context.Context, gw ai.Gateway, idea string) (*chat.AnalysisResult, error) {
	ticket, err := s.StartAnalysis(ctx, idea)
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("session_id", ticket.SessionID)

	result, err := gw.Analyze(ctx, idea)
	if err == nil {
		if verr := feasibility.Validate(result); verr != nil {
			err = fmt.Errorf("%w: %v", ai.ErrSchema, verr)
		}
	}
	if err != nil {
		err = ai.GatewayErr(err)
		if !s.FailAnalysis(ctx, ticket) {
			metrics.Analyses.WithLabelValues("stale").Inc()
			return nil, errors.Join(ErrStale, err)
		}
		metrics.Analyses.WithLabelValues("failed").Inc()
		log.WithError(err).Error("analysis failed")
		return nil, err
	}

	if !s.CompleteAnalysis(ctx, ticket, result) {
		metrics.Analyses.WithLabelValues("stale").Inc()
		log.Info("active session changed, dropping analysis result")
		return nil, ErrStale
	}
	metrics.Analyses.WithLabelValues("completed").Inc()
	return result.Clone(), nil
}
