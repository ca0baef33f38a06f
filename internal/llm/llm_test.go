package llm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/registry"
)

func TestParseToolArgs(t *testing.T) {
	args := parseToolArgs(`{"identifier":"FD-1001"}`)
	assert.Equal(t, "FD-1001", args["identifier"])

	assert.Empty(t, parseToolArgs(""))
	assert.Empty(t, parseToolArgs("not json"), "malformed arguments degrade to an empty map")
}

func TestSchemaRequired(t *testing.T) {
	assert.Equal(t, []string{"identifier"}, schemaRequired(map[string]any{
		"required": []string{"identifier"},
	}))
	assert.Equal(t, []string{"query"}, schemaRequired(map[string]any{
		"required": []any{"query"},
	}))
	assert.Nil(t, schemaRequired(map[string]any{}))
}

func TestNewClientDispatch(t *testing.T) {
	cfg := config.ProvidersConfig{
		OpenAI:    config.ProviderConfig{APIKey: "sk-test-1234567890"},
		Anthropic: config.ProviderConfig{APIKey: "sk-ant-1234567890"},
	}

	openAI, err := NewClient(registry.ProviderOpenAI, cfg)
	require.NoError(t, err)
	assert.Equal(t, registry.ProviderOpenAI, openAI.Provider())

	anthropic, err := NewClient(registry.ProviderAnthropic, cfg)
	require.NoError(t, err)
	assert.Equal(t, registry.ProviderAnthropic, anthropic.Provider())

	_, err = NewClient(registry.ProviderID("mystery"), cfg)
	assert.Error(t, err)
}

func TestFactoryCachesClients(t *testing.T) {
	factory := NewFactory(config.ProvidersConfig{
		OpenAI: config.ProviderConfig{APIKey: "sk-test-1234567890"},
	})

	a, err := factory(registry.ProviderOpenAI)
	require.NoError(t, err)
	b, err := factory(registry.ProviderOpenAI)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestFactorySafeUnderConcurrentFirstUse(t *testing.T) {
	factory := NewFactory(config.ProvidersConfig{
		OpenAI:    config.ProviderConfig{APIKey: "sk-test-1234567890"},
		Anthropic: config.ProviderConfig{APIKey: "sk-ant-1234567890"},
	})

	// One shared factory serves all request handlers; hammer the cold cache
	// from many goroutines and verify every caller sees the same client.
	const goroutines = 16
	clients := make([]Client, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			provider := registry.ProviderOpenAI
			if i%2 == 1 {
				provider = registry.ProviderAnthropic
			}
			c, err := factory(provider)
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	for i := 2; i < goroutines; i++ {
		assert.Same(t, clients[i%2], clients[i])
	}
}

func TestToOpenAITools(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"identifier": map[string]any{"type": "string"}},
		"required":   []string{"identifier"},
	}
	out := toOpenAITools([]ToolSchema{{Name: "get_load", Description: "look up a load", Parameters: params}})
	require.Len(t, out, 1)
	assert.Equal(t, "get_load", out[0].Function.Name)
}

func TestToAnthropicTools(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"identifier": map[string]any{"type": "string"}},
		"required":   []string{"identifier"},
	}
	out := toAnthropicTools([]ToolSchema{{Name: "get_load", Description: "look up a load", Parameters: params}})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfTool)
	assert.Equal(t, "get_load", out[0].OfTool.Name)
	assert.Equal(t, []string{"identifier"}, out[0].OfTool.InputSchema.Required)
}

func TestMaxTokensOrDefault(t *testing.T) {
	assert.Equal(t, int64(defaultAnthropicMaxTokens), maxTokensOrDefault(0))
	assert.Equal(t, int64(2048), maxTokensOrDefault(2048))
}
