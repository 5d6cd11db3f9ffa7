package safety

import (
	"context"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/httpx"
	"github.com/neuralmind-ai/nsx-chatbot/config"
)

// HTTPModerator posts {"service": "ChatBot", "input": [text]} and reads
// results[0].flagged.
type HTTPModerator struct {
	Endpoint string
	HTTP     *httpx.Client
	Timeout  time.Duration
}

func (m *HTTPModerator) Flagged(ctx context.Context, text string) (bool, error) {
	resp, err := m.HTTP.Execute(ctx, httpx.Request{
		Method:  http.MethodPost,
		URL:     m.Endpoint,
		Body:    map[string]any{"service": "ChatBot", "input": []string{text}},
		Timeout: m.Timeout,
	})
	if err != nil {
		return false, err
	}
	if !resp.OK() {
		return false, errs.Ef(errs.KindModeration, "moderation", "status %d: %s", resp.StatusCode, string(resp.Body))
	}
	flagged := resp.JSON().Get("results.0.flagged")
	if !flagged.Exists() {
		return false, errs.Ef(errs.KindModeration, "moderation", "malformed response: %s", string(resp.Body))
	}
	return flagged.Bool(), nil
}

// OpenAIModerator uses the moderations endpoint of an OpenAI-compatible API.
type OpenAIModerator struct {
	client   openai.Client
	model    string
	timeout  time.Duration
	attempts int
}

func NewOpenAIModerator(cfg config.ModerationConfig, attempts int) *OpenAIModerator {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIModerator{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		timeout:  time.Duration(cfg.TimeoutMs) * time.Millisecond,
		attempts: attempts,
	}
}

func (m *OpenAIModerator) Flagged(ctx context.Context, text string) (bool, error) {
	params := openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{OfString: openai.String(text)},
	}
	if m.model != "" {
		params.Model = openai.ModerationModel(m.model)
	}
	resp, err := httpx.Retry(ctx, m.attempts, m.timeout, "moderation",
		func(actx context.Context) (*openai.ModerationNewResponse, error) {
			return m.client.Moderations.New(actx, params)
		}, nil)
	if err != nil {
		return false, err
	}
	if len(resp.Results) == 0 {
		return false, errs.Ef(errs.KindModeration, "moderation", "no results returned")
	}
	return resp.Results[0].Flagged, nil
}
