package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"
)

type AnthropicModel string

const (
	Claude4Sonnet AnthropicModel = "claude-sonnet-4-20250514"
	Claude4Opus   AnthropicModel = "claude-opus-4-20250514"
	Claude35Haiku AnthropicModel = "claude-3-5-haiku-20241022"
)

func AnthropicAI(model AnthropicModel, apiKey string) (*anthropic.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is not set")
	}

	var modelName string
	switch model {
	case Claude4Sonnet, "":
		modelName = string(Claude4Sonnet)
	case Claude4Opus:
		modelName = string(Claude4Opus)
	case Claude35Haiku:
		modelName = string(Claude35Haiku)
	default:
		return nil, fmt.Errorf("invalid model type: %s", model)
	}

	llm, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(modelName))
	if err != nil {
		return nil, fmt.Errorf("failed to init anthropic: %w", err)
	}

	return llm, nil
}
