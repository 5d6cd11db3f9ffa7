package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/httpx"
)

// AnswererClient talks to a prompt-answerer gateway that fronts the model
// provider. Request:
//
//	{"service": "ChatBot", "prompt": [...], "model": "...",
//	 "configurations": {...}, "functions": [...]}
//
// Response: {"text", "function_call": {"name", "arguments"},
// "tokens_usage": {"total_tokens"}, "finish_reason", "content_filter_results"}.
type AnswererClient struct {
	Endpoint string
	HTTP     *httpx.Client
	Timeout  time.Duration
}

type answererMessage struct {
	Role         string            `json:"role"`
	Content      string            `json:"content,omitempty"`
	Name         string            `json:"name,omitempty"`
	FunctionCall map[string]string `json:"function_call,omitempty"`
}

func (c *AnswererClient) Complete(ctx context.Context, req Request) (*Response, error) {
	stop := req.Stop
	if stop == nil {
		stop = []string{}
	}
	prompt := make([]answererMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		am := answererMessage{Role: m.Role, Content: m.Content}
		switch {
		case m.Role == RoleTool:
			am.Role = "function"
			am.Name = m.Name
		case m.ToolCall != nil:
			am.Content = ""
			am.FunctionCall = map[string]string{"name": m.ToolCall.Name, "arguments": m.ToolCall.Arguments}
		}
		prompt = append(prompt, am)
	}
	body := map[string]any{
		"service": "ChatBot",
		"prompt":  prompt,
		"model":   req.Model,
		"configurations": map[string]any{
			"temperature":       req.Temperature,
			"max_tokens":        req.MaxTokens,
			"top_p":             1,
			"frequency_penalty": 0,
			"presence_penalty":  0,
			"stop":              stop,
		},
	}
	if len(req.Tools) > 0 {
		fns := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			fns = append(fns, map[string]any{"name": t.Name, "description": t.Description, "parameters": t.Parameters})
		}
		body["functions"] = fns
	}

	resp, err := c.HTTP.Execute(ctx, httpx.Request{
		Method:  http.MethodPost,
		URL:     c.Endpoint,
		Body:    body,
		Timeout: c.Timeout,
	})
	if err != nil {
		if errs.IsTimeout(err) {
			return nil, err
		}
		return nil, errs.E(errs.KindCompletion, "prompt answerer", err)
	}
	if !resp.OK() {
		return nil, errs.Ef(errs.KindCompletion, "prompt answerer", "status %d: %s", resp.StatusCode, string(resp.Body))
	}

	js := resp.JSON()
	out := &Response{
		Text:         js.Get("text").String(),
		TotalTokens:  int(js.Get("tokens_usage.total_tokens").Int()),
		FinishReason: js.Get("finish_reason").String(),
	}
	out.Reply = Message{Role: RoleAssistant, Content: out.Text}
	if fc := js.Get("function_call"); fc.IsObject() {
		out.ToolCall = &ToolCall{Name: fc.Get("name").String(), Arguments: fc.Get("arguments").String()}
		out.Reply.ToolCall = out.ToolCall
	}
	if err := checkContentFilter(out, contentFilterReason(js)); err != nil {
		return nil, err
	}
	return out, nil
}

// contentFilterReason names the first filtered category, prompt side first.
func contentFilterReason(js gjson.Result) string {
	results := js.Get("content_filter_results")
	if !results.Exists() {
		return ""
	}
	for _, side := range []string{"prompt", "completion"} {
		var reason string
		results.Get(side).ForEach(func(category, v gjson.Result) bool {
			if v.Get("filtered").Bool() {
				reason = fmt.Sprintf("the %s was filtered by %s content with severity %s", side, category.String(), v.Get("severity").String())
				return false
			}
			return true
		})
		if reason != "" {
			return reason
		}
	}
	return ""
}
