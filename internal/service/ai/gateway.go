package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

var (
	// ErrGateway covers connection, auth and quota failures of the model API.
	ErrGateway = errors.New("model gateway error")
	// ErrSchema reports a structured response that does not parse into an analysis.
	ErrSchema = errors.New("model response schema error")
	// ErrDisabled is returned when no gateway is configured.
	ErrDisabled = errors.New("model gateway not configured")
)

// Gateway is the external model service.
type Gateway interface {
	// StreamReply returns the reply to newMessage as a finite stream of text
	// fragments whose concatenation is the full reply.
	StreamReply(ctx context.Context, history []chat.Message, newMessage string) (*schema.StreamReader[string], error)
	// Analyze returns a complete feasibility report for idea.
	Analyze(ctx context.Context, idea string) (*chat.AnalysisResult, error)
}

// AnalysisRequest builds the user turn sent for an analysis.
func AnalysisRequest(idea string) string {
	return fmt.Sprintf("Analyze this innovation idea: \"%s\"", strings.TrimSpace(idea))
}

// analysisShapeHint is appended to the analyst instruction for providers that
// cannot enforce a response schema.
const analysisShapeHint = `Respond with a single JSON object and nothing else, shaped as:
{"ideaName": string, "summary": string, "overallScore": number (average score out of 100), "recommendation": string,
 "metrics": [{"metric": string (e.g. Feasibility), "score": number (0-100), "reasoning": string}]}`

// ConversationHistory filters messages down to what the model should see:
// error notices and empty placeholders are dropped.
func ConversationHistory(messages []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsError || strings.TrimSpace(m.Text) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// GatewayErr wraps err as ErrGateway unless it already is one of the package
// sentinels.
func GatewayErr(err error) error {
	if err == nil || errors.Is(err, ErrGateway) || errors.Is(err, ErrSchema) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrGateway, err)
}
