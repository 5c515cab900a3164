// Package aitest provides a scripted Gateway for tests.
package aitest

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

// Gateway replays canned fragments and analysis results.
type Gateway struct {
	// Fragments are sent in order by every StreamReply call.
	Fragments []string
	// StreamErr fails StreamReply before any fragment is produced.
	StreamErr error
	// RecvErr is delivered after Fragments instead of a clean end of stream.
	RecvErr error

	Result     *chat.AnalysisResult
	AnalyzeErr error
	// OnAnalyze runs inside Analyze before it returns.
	OnAnalyze func()

	mu          sync.Mutex
	wg          sync.WaitGroup
	streamCalls int
	lastHistory []chat.Message
	lastMessage string
	lastIdea    string
}

func (g *Gateway) StreamReply(_ context.Context, history []chat.Message, newMessage string) (*schema.StreamReader[string], error) {
	g.mu.Lock()
	g.streamCalls++
	g.lastHistory = chat.CloneMessages(history)
	g.lastMessage = newMessage
	g.mu.Unlock()

	if g.StreamErr != nil {
		return nil, g.StreamErr
	}

	reader, writer := schema.Pipe[string](0)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer writer.Close()
		for _, fragment := range g.Fragments {
			if closed := writer.Send(fragment, nil); closed {
				return
			}
		}
		if g.RecvErr != nil {
			writer.Send("", g.RecvErr)
		}
	}()
	return reader, nil
}

func (g *Gateway) Analyze(_ context.Context, idea string) (*chat.AnalysisResult, error) {
	g.mu.Lock()
	g.lastIdea = idea
	g.mu.Unlock()

	if g.OnAnalyze != nil {
		g.OnAnalyze()
	}
	if g.AnalyzeErr != nil {
		return nil, g.AnalyzeErr
	}
	return g.Result.Clone(), nil
}

// Wait blocks until every producer goroutine has exited.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

func (g *Gateway) StreamCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.streamCalls
}

func (g *Gateway) LastHistory() []chat.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return chat.CloneMessages(g.lastHistory)
}

func (g *Gateway) LastMessage() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastMessage
}

func (g *Gateway) LastIdea() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastIdea
}
