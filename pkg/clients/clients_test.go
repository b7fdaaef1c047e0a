package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/config"
)

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), &config.Config{LLMProvider: "llama"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

func TestNewRequiresKey(t *testing.T) {
	for _, provider := range []string{"google", "openai", "anthropic"} {
		t.Run(provider, func(t *testing.T) {
			_, err := New(context.Background(), &config.Config{LLMProvider: provider})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "api key is not set")
		})
	}
}

func TestInvalidModelType(t *testing.T) {
	_, err := GoogleAi(context.Background(), ModelType("gemini-0"), "key")
	require.Error(t, err)

	_, err = AnthropicAI(AnthropicModel("claude-0"), "key")
	require.Error(t, err)
}

func TestOpenAIWithBaseURL(t *testing.T) {
	llm, err := OpenAI("", "key", "https://gateway.example.com/v1")
	require.NoError(t, err)
	assert.NotNil(t, llm)
}
