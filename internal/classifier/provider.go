package classifier

import (
	"fmt"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// NewProvider selects the configured chat-completion provider. A disabled
// classifier needs no provider and gets nil.
func NewProvider(cfg config.ClassifierConfig) (ChatCompleter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens), nil
	case "anthropic":
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}
