package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/catalyst/backend/internal/analysis/feasibility"
	"github.com/zhouzirui/catalyst/backend/internal/logging"
	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	promptModel "github.com/zhouzirui/catalyst/backend/internal/model/prompt"
)

// ArkGateway runs chat and analysis through an eino chain on an Ark model.
type ArkGateway struct {
	prompts promptModel.Store
	chain   compose.Runnable[map[string]any, *schema.Message]
}

// NewArkGateway compiles the prompt chain around chatModel.
func NewArkGateway(ctx context.Context, chatModel model.ChatModel, prompts promptModel.Store) (*ArkGateway, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkGateway{
		prompts: prompts,
		chain:   runnable,
	}, nil
}

// StreamReply streams the chat reply as plain text fragments.
func (g *ArkGateway) StreamReply(ctx context.Context, history []chat.Message, newMessage string) (*schema.StreamReader[string], error) {
	input := g.buildChainInput(chat.ModeChat, history, newMessage)

	stream, err := g.chain.Stream(ctx, input)
	if err != nil {
		return nil, GatewayErr(fmt.Errorf("failed to stream chat chain output: %w", err))
	}

	return schema.StreamReaderWithConvert(stream, func(msg *schema.Message) (string, error) {
		if msg == nil || msg.Content == "" {
			return "", schema.ErrNoValue
		}
		return msg.Content, nil
	}), nil
}

// Analyze asks the analyst profile for a JSON report and validates it.
func (g *ArkGateway) Analyze(ctx context.Context, idea string) (*chat.AnalysisResult, error) {
	input := g.buildChainInput(chat.ModeAnalyze, nil, AnalysisRequest(idea))
	input["system"] = input["system"].(string) + "\n" + analysisShapeHint

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return nil, GatewayErr(fmt.Errorf("failed to run analysis chain: %w", err))
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return nil, fmt.Errorf("%w: no analysis generated", ErrSchema)
	}

	result, err := feasibility.Parse(response.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	logging.For("ai").WithFields(map[string]any{
		"provider": "ark",
		"idea":     result.IdeaName,
		"overall":  result.OverallScore,
	}).Info("analysis generated")
	return result, nil
}

func (g *ArkGateway) buildChainInput(mode chat.Mode, history []chat.Message, query string) map[string]any {
	return map[string]any{
		"system":  promptModel.SystemInstruction(g.prompts, mode),
		"history": buildHistoryMessages(history),
		"query":   query,
	}
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	filtered := ConversationHistory(messages)
	history := make([]*schema.Message, 0, len(filtered))
	for _, msg := range filtered {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Text))
		default:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
