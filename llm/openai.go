package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/httpx"
	"github.com/neuralmind-ai/nsx-chatbot/config"
)

// OpenAIClient calls an OpenAI-compatible chat completions API. The SDK's own
// retries are disabled; timeouts go through httpx.Retry.
type OpenAIClient struct {
	client   openai.Client
	timeout  time.Duration
	attempts int
}

func NewOpenAIClient(cfg config.LLMConfig, attempts int) *OpenAIClient {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		timeout:  time.Duration(cfg.TimeoutMs) * time.Millisecond,
		attempts: attempts,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}

	completion, err := httpx.Retry(ctx, c.attempts, c.timeout, "chat completion",
		func(actx context.Context) (*openai.ChatCompletion, error) {
			return c.client.Chat.Completions.New(actx, params)
		}, nil)
	if err != nil {
		return nil, classifyOpenAI(errs.KindCompletion, "chat completion", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errs.Ef(errs.KindCompletion, "chat completion", "no choices returned")
	}

	choice := completion.Choices[0]
	resp := &Response{
		Text:         choice.Message.Content,
		TotalTokens:  int(completion.Usage.TotalTokens),
		FinishReason: string(choice.FinishReason),
	}
	resp.Reply = Message{Role: RoleAssistant, Content: choice.Message.Content, native: choice.Message}
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		resp.ToolCall = &ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
		resp.Reply.ToolCall = resp.ToolCall
	}
	if err := checkContentFilter(resp, ""); err != nil {
		return nil, err
	}
	return resp, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if native, ok := m.native.(openai.ChatCompletionMessage); ok {
			out = append(out, native.ToParam())
			continue
		}
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classifyOpenAI keeps timeouts as-is and files everything else under kind.
func classifyOpenAI(kind errs.Kind, op string, err error) error {
	if errs.IsTimeout(err) {
		return err
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return errs.E(kind, op, fmt.Errorf("status %d: %w", apierr.StatusCode, err))
	}
	return errs.E(kind, op, err)
}
