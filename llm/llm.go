// Package llm talks to the completion service.
package llm

import (
	"context"
	"strings"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleTool carries a tool result back to the model.
	RoleTool = "tool"
)

// Message is one role-tagged entry of a conversation sent to the model.
type Message struct {
	Role    string
	Content string
	// ToolCallID and Name identify the call a RoleTool message answers.
	ToolCallID string
	Name       string
	// ToolCall echoes a structured call made by the assistant.
	ToolCall *ToolCall
	// native is the provider's own representation of an assistant reply,
	// replayed verbatim when present.
	native any
}

// ToolCall is a structured function call emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool describes a callable function. Parameters is a JSON schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Request struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
	Stop        []string
	Tools       []Tool
}

type Response struct {
	Text         string
	ToolCall     *ToolCall
	TotalTokens  int
	FinishReason string
	// Reply is the assistant message to append when continuing the conversation.
	Reply Message
}

// Client is the completion service.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

const finishContentFilter = "content_filter"

func checkContentFilter(resp *Response, reason string) error {
	if resp.FinishReason != finishContentFilter {
		return nil
	}
	if reason == "" {
		reason = "the message was filtered by content filter but the reason could not be determined"
	}
	return errs.E(errs.KindContentFilter, "complete", errorString(reason))
}

type errorString string

func (e errorString) Error() string { return string(e) }

// Reasoner issues single-prompt completions with fixed generation settings.
type Reasoner struct {
	Client      Client
	Model       string
	Temperature float64
	MaxTokens   int
}

// Reason sends prompt as one user message and returns the trimmed text. A nil
// stop defaults to a newline.
func (r *Reasoner) Reason(ctx context.Context, prompt string, stop []string) (string, error) {
	if stop == nil {
		stop = []string{"\n"}
	}
	resp, err := r.Client.Complete(ctx, Request{
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		Stop:        stop,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// WithModel returns a copy using another model, e.g. a per-user override.
func (r *Reasoner) WithModel(model string) *Reasoner {
	if model == "" || model == r.Model {
		return r
	}
	cp := *r
	cp.Model = model
	return &cp
}
