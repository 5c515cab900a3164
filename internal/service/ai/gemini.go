package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/zhouzirui/catalyst/backend/internal/analysis/feasibility"
	"github.com/zhouzirui/catalyst/backend/internal/config"
	"github.com/zhouzirui/catalyst/backend/internal/logging"
	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	promptModel "github.com/zhouzirui/catalyst/backend/internal/model/prompt"
)

// GeminiGateway talks to the Gemini API through the genai SDK.
type GeminiGateway struct {
	client      *genai.Client
	modelName   string
	prompts     promptModel.Store
	temperature *float32
	topP        *float32
	maxTokens   int32
}

// NewGeminiGateway creates a Gemini API client from cfg.
func NewGeminiGateway(ctx context.Context, cfg config.AIConfig, prompts promptModel.Store) (*GeminiGateway, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	g := &GeminiGateway{
		client:    client,
		modelName: cfg.Model,
		prompts:   prompts,
	}
	if cfg.Temperature != nil {
		v := float32(*cfg.Temperature)
		g.temperature = &v
	}
	if cfg.TopP != nil {
		v := float32(*cfg.TopP)
		g.topP = &v
	}
	if cfg.MaxTokens != nil {
		g.maxTokens = int32(*cfg.MaxTokens)
	}
	return g, nil
}

// StreamReply pipes Gemini's streamed chunks into a StreamReader. The
// producing goroutine stops when the reader is closed or the stream ends.
func (g *GeminiGateway) StreamReply(ctx context.Context, history []chat.Message, newMessage string) (*schema.StreamReader[string], error) {
	contents := geminiContents(history, newMessage)
	cfg := g.generateConfig(promptModel.SystemInstruction(g.prompts, chat.ModeChat))

	reader, writer := schema.Pipe[string](8)
	go func() {
		defer writer.Close()
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.modelName, contents, cfg) {
			if err != nil {
				writer.Send("", GatewayErr(fmt.Errorf("gemini stream: %w", err)))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if closed := writer.Send(text, nil); closed {
				return
			}
		}
	}()
	return reader, nil
}

// Analyze requests a JSON report constrained by a response schema.
func (g *GeminiGateway) Analyze(ctx context.Context, idea string) (*chat.AnalysisResult, error) {
	cfg := g.generateConfig(promptModel.SystemInstruction(g.prompts, chat.ModeAnalyze))
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = analysisSchema()

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(AnalysisRequest(idea)), cfg)
	if err != nil {
		return nil, GatewayErr(fmt.Errorf("gemini generate content: %w", err))
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no analysis generated", ErrSchema)
	}

	result, err := feasibility.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	logging.For("ai").WithFields(map[string]any{
		"provider": "gemini",
		"idea":     result.IdeaName,
		"overall":  result.OverallScore,
	}).Info("analysis generated")
	return result, nil
}

func (g *GeminiGateway) generateConfig(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     g.temperature,
		TopP:            g.topP,
		MaxOutputTokens: g.maxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

func geminiContents(history []chat.Message, newMessage string) []*genai.Content {
	filtered := ConversationHistory(history)
	contents := make([]*genai.Content, 0, len(filtered)+1)
	for _, m := range filtered {
		var role genai.Role
		switch m.Role {
		case chat.RoleUser:
			role = genai.RoleUser
		default:
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return append(contents, genai.NewContentFromText(newMessage, genai.RoleUser))
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"ideaName":       {Type: genai.TypeString},
			"summary":        {Type: genai.TypeString},
			"overallScore":   {Type: genai.TypeNumber, Description: "Average score out of 100"},
			"recommendation": {Type: genai.TypeString},
			"metrics": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"metric":    {Type: genai.TypeString, Description: "Name of the metric (e.g., Feasibility)"},
						"score":     {Type: genai.TypeNumber, Description: "Score from 0 to 100"},
						"reasoning": {Type: genai.TypeString, Description: "Brief explanation of the score"},
					},
					Required: []string{"metric", "score", "reasoning"},
				},
			},
		},
		Required:         []string{"ideaName", "summary", "overallScore", "recommendation", "metrics"},
		PropertyOrdering: []string{"ideaName", "summary", "overallScore", "recommendation", "metrics"},
	}
}
