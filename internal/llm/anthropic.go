package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anth_opt "github.com/anthropics/anthropic-sdk-go/option"
	anth_param "github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/registry"
)

// Anthropic requires an explicit max_tokens; this is the ceiling used when
// the caller does not set one.
const defaultAnthropicMaxTokens = 4096

type anthropicClient struct {
	client  *anthropic.Client
	timeout time.Duration
}

func newAnthropicClient(cfg config.ProviderConfig) *anthropicClient {
	opts := []anth_opt.RequestOption{anth_opt.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, anth_opt.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &anthropicClient{
		client:  &client,
		timeout: cfg.RequestTimeout,
	}
}

func (c *anthropicClient) Provider() registry.ProviderID { return registry.ProviderAnthropic }

func (c *anthropicClient) NewConversation(req ChatRequest) Conversation {
	var system []anthropic.TextBlockParam
	if req.System != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.System})
	}
	return &anthropicConversation{
		c:           c,
		model:       req.Model,
		maxTokens:   req.MaxTokens,
		temperature: req.Temperature,
		system:      system,
		tools:       toAnthropicTools(req.Tools),
		messages:    toAnthropicMessages(req.Messages),
	}
}

func (c *anthropicClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	var system []anthropic.TextBlockParam
	if req.System != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.System})
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokensOrDefault(req.MaxTokens),
		System:    system,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = anth_param.NewOpt(req.Temperature)
	}

	result, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return &Completion{
		Text:         text,
		InputTokens:  totalAnthropicInput(result),
		OutputTokens: result.Usage.OutputTokens,
	}, nil
}

func (c *anthropicClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type anthropicConversation struct {
	c           *anthropicClient
	model       string
	maxTokens   int
	temperature float64
	system      []anthropic.TextBlockParam
	tools       []anthropic.ToolUnionParam
	messages    []anthropic.MessageParam
}

func (v *anthropicConversation) Send(ctx context.Context) (*Turn, error) {
	ctx, cancel := v.c.callContext(ctx)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(v.model),
		MaxTokens: maxTokensOrDefault(v.maxTokens),
		System:    v.system,
		Messages:  v.messages,
		Tools:     v.tools,
	}
	if v.temperature > 0 {
		params.Temperature = anth_param.NewOpt(v.temperature)
	}

	result, err := v.c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}

	turn := &Turn{
		InputTokens:  totalAnthropicInput(result),
		OutputTokens: result.Usage.OutputTokens,
		StopReason:   string(result.StopReason),
	}

	var respBlocks []anthropic.ContentBlockParamUnion
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			txt := block.AsText()
			turn.Text += txt.Text
			respBlocks = append(respBlocks, anthropic.ContentBlockParamUnion{
				OfText: &anthropic.TextBlockParam{Text: txt.Text},
			})
		case "tool_use":
			toolUse := block.AsToolUse()
			turn.ToolCalls = append(turn.ToolCalls, ToolCall{
				ID:      toolUse.ID,
				Name:    toolUse.Name,
				Args:    parseToolArgs(string(toolUse.Input)),
				RawArgs: string(toolUse.Input),
			})
			respBlocks = append(respBlocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    toolUse.ID,
					Name:  toolUse.Name,
					Input: json.RawMessage(toolUse.Input),
				},
			})
		}
	}
	if len(respBlocks) > 0 {
		v.messages = append(v.messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleAssistant,
			Content: respBlocks,
		})
	}

	return turn, nil
}

func (v *anthropicConversation) AddToolResults(results []ToolResult) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, r := range results {
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfToolResult: &anthropic.ToolResultBlockParam{
				ToolUseID: r.CallID,
				Content: []anthropic.ToolResultBlockParamContentUnion{
					{OfText: &anthropic.TextBlockParam{Text: r.Content}},
				},
			},
		})
	}
	if len(blocks) > 0 {
		v.messages = append(v.messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: blocks,
		})
	}
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		role := anthropic.MessageParamRoleUser
		if m.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{
			Role: role,
			Content: []anthropic.ContentBlockParamUnion{
				{OfText: &anthropic.TextBlockParam{Text: m.Content}},
			},
		})
	}
	return out
}

func toAnthropicTools(schemas []ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anth_param.NewOpt(s.Description),
				Type:        "custom",
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: s.Parameters["properties"],
					Required:   schemaRequired(s.Parameters),
				},
			},
		})
	}
	return out
}

func maxTokensOrDefault(n int) int64 {
	if n > 0 {
		return int64(n)
	}
	return defaultAnthropicMaxTokens
}

func totalAnthropicInput(msg *anthropic.Message) int64 {
	return msg.Usage.InputTokens + msg.Usage.CacheCreationInputTokens + msg.Usage.CacheReadInputTokens
}
