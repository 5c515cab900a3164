package ai

import (
	"context"
	"fmt"

	"github.com/zhouzirui/catalyst/backend/internal/config"
	promptModel "github.com/zhouzirui/catalyst/backend/internal/model/prompt"
)

// NewGateway builds the gateway for the configured provider.
func NewGateway(ctx context.Context, cfg config.AIConfig, prompts promptModel.Store) (Gateway, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: provider %q lacks model or credentials", ErrDisabled, cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiGateway(ctx, cfg, prompts)
	case config.ProviderArk:
		chatModel, err := cfg.NewArkChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewArkGateway(ctx, chatModel, prompts)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrDisabled, cfg.Provider)
	}
}
