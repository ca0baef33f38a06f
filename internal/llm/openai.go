package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	openai_opt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/registry"
)

type openAIClient struct {
	client  openai.Client
	timeout time.Duration
}

func newOpenAIClient(cfg config.ProviderConfig) *openAIClient {
	opts := []openai_opt.RequestOption{openai_opt.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai_opt.WithBaseURL(cfg.BaseURL))
	}
	return &openAIClient{
		client:  openai.NewClient(opts...),
		timeout: cfg.RequestTimeout,
	}
}

func (c *openAIClient) Provider() registry.ProviderID { return registry.ProviderOpenAI }

func (c *openAIClient) NewConversation(req ChatRequest) Conversation {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.NewOpt(req.System),
				},
			},
		})
	}
	messages = append(messages, toOpenAIMessages(req.Messages)...)

	return &openAIConversation{
		c:           c,
		model:       req.Model,
		maxTokens:   req.MaxTokens,
		temperature: req.Temperature,
		tools:       toOpenAITools(req.Tools),
		messages:    messages,
	}
}

func (c *openAIClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.NewOpt(req.System),
				},
			},
		})
	}
	messages = append(messages, toOpenAIMessages(req.Messages)...)

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
		N:        param.NewOpt(int64(1)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	result, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: response has no choices")
	}
	return &Completion{
		Text:         result.Choices[0].Message.Content,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}, nil
}

func (c *openAIClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type openAIConversation struct {
	c           *openAIClient
	model       string
	maxTokens   int
	temperature float64
	tools       []openai.ChatCompletionToolParam
	messages    []openai.ChatCompletionMessageParamUnion
}

func (v *openAIConversation) Send(ctx context.Context) (*Turn, error) {
	ctx, cancel := v.c.callContext(ctx)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    v.model,
		Messages: v.messages,
		Tools:    v.tools,
		N:        param.NewOpt(int64(1)),
	}
	if v.maxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(v.maxTokens))
	}
	if v.temperature > 0 {
		params.Temperature = param.NewOpt(v.temperature)
	}

	result, err := v.c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: response has no choices")
	}
	choice := result.Choices[0]

	turn := &Turn{
		Text:         choice.Message.Content,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		StopReason:   string(choice.FinishReason),
	}

	if choice.Message.Content != "" {
		v.messages = append(v.messages, openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(choice.Message.Content),
				},
			},
		})
	}

	var recordToolCalls []openai.ChatCompletionMessageToolCallParam
	for _, tc := range choice.Message.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, ToolCall{
			ID:      tc.ID,
			Name:    tc.Function.Name,
			Args:    parseToolArgs(tc.Function.Arguments),
			RawArgs: tc.Function.Arguments,
		})
		recordToolCalls = append(recordToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	if len(recordToolCalls) > 0 {
		v.messages = append(v.messages, openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: recordToolCalls,
			},
		})
	}

	return turn, nil
}

func (v *openAIConversation) AddToolResults(results []ToolResult) {
	for _, r := range results {
		v.messages = append(v.messages, openai.ChatCompletionMessageParamUnion{
			OfTool: &openai.ChatCompletionToolMessageParam{
				ToolCallID: r.CallID,
				Content: openai.ChatCompletionToolMessageParamContentUnion{
					OfString: param.NewOpt(r.Content),
				},
			},
		})
	}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		if m.Role == "assistant" {
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: param.NewOpt(m.Content),
					},
				},
			})
			continue
		}
		out = append(out, openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.NewOpt(m.Content),
				},
			},
		})
	}
	return out
}

func toOpenAITools(schemas []ToolSchema) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: param.NewOpt(s.Description),
				Parameters:  openai.FunctionParameters(s.Parameters),
			},
		})
	}
	return out
}
