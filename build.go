package chatbot

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/httpx"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
	"github.com/neuralmind-ai/nsx-chatbot/config"
	"github.com/neuralmind-ai/nsx-chatbot/history"
	"github.com/neuralmind-ai/nsx-chatbot/llm"
	"github.com/neuralmind-ai/nsx-chatbot/memory"
	"github.com/neuralmind-ai/nsx-chatbot/orchestrator"
	"github.com/neuralmind-ai/nsx-chatbot/retriever"
	"github.com/neuralmind-ai/nsx-chatbot/safety"
	"github.com/neuralmind-ai/nsx-chatbot/tokenizer"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// NewFromConfig wires every component from cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Engine, error) {
	hc := httpx.NewFromConfig(&cfg.HTTP)
	attempts := hc.MaxRetries()

	client, err := completionClient(cfg.Completion, hc, attempts)
	if err != nil {
		return nil, err
	}
	moderator, err := moderationBackend(cfg.Moderation, hc, attempts)
	if err != nil {
		return nil, err
	}

	var counter tokenizer.Counter
	if tk, err := tokenizer.NewTiktoken(cfg.Reasoning.EncodingModel); err == nil {
		counter = tk
	} else {
		logger.Warnf("tokenizer: %v, counting words instead", err)
		counter = tokenizer.Words{}
	}

	reasoner := &llm.Reasoner{
		Client:      client,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
	}

	store, err := memory.New(ctx, cfg.Session)
	if err != nil {
		return nil, err
	}
	hist, err := history.Open(ctx, cfg.History)
	if err != nil {
		return nil, multierror.Append(err, store.Close())
	}
	info := history.NewCachedProvider(hist, cfg.History.CacheSize, time.Duration(cfg.History.CacheTTLSecond)*time.Second)

	dispatcher, err := newDispatcher(cfg, hc, reasoner, counter)
	if err != nil {
		return nil, multierror.Append(err, store.Close(), hist.Close())
	}
	handler, err := orchestrator.New(orchestrator.Deps{
		Reasoner:   reasoner,
		Client:     client,
		Dispatcher: dispatcher,
		Counter:    counter,
		Info:       info,
		Reasoning:  cfg.Reasoning,
		NumDocs:    cfg.Search.NumDocs,
	})
	if err != nil {
		return nil, multierror.Append(err, store.Close(), hist.Close())
	}

	return New(Components{
		Gate:  safety.NewGate(moderator, cfg.ModerationFailOpen()),
		Store: store,
		Summarizer: &orchestrator.Summarizer{
			Store:     store,
			Reasoner:  reasoner,
			Counter:   counter,
			MaxTokens: cfg.Reasoning.MaxTokensChatHistory,
		},
		Handler: handler,
		History: hist,
		Info:    info,
		APIKey:  cfg.Search.APIKey,
	}), nil
}

func completionClient(cfg config.LLMConfig, hc *httpx.Client, attempts int) (llm.Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return llm.NewOpenAIClient(cfg, attempts), nil
	case "prompt_answerer":
		return &llm.AnswererClient{Endpoint: cfg.BaseURL, HTTP: hc, Timeout: ms(cfg.TimeoutMs)}, nil
	default:
		return nil, errs.Ef(errs.KindConfig, "completion", "unknown provider %q", cfg.Provider)
	}
}

func moderationBackend(cfg config.ModerationConfig, hc *httpx.Client, attempts int) (safety.Moderator, error) {
	switch cfg.Provider {
	case "", "openai":
		return safety.NewOpenAIModerator(cfg, attempts), nil
	case "http":
		return &safety.HTTPModerator{Endpoint: cfg.BaseURL, HTTP: hc, Timeout: ms(cfg.TimeoutMs)}, nil
	default:
		return nil, errs.Ef(errs.KindConfig, "moderation", "unknown provider %q", cfg.Provider)
	}
}

func newDispatcher(cfg *config.Config, hc *httpx.Client, reasoner *llm.Reasoner, counter tokenizer.Counter) (*retriever.Dispatcher, error) {
	search := &retriever.NSXSearch{
		Endpoint:        cfg.Search.Endpoint,
		HTTP:            hc,
		Timeout:         ms(cfg.Search.TimeoutMs),
		MaxDocsToReturn: cfg.Search.MaxDocsToReturn,
		NumDocs:         cfg.Search.NumDocs,
	}
	d := &retriever.Dispatcher{
		Search: search,
		Sense: &retriever.SenseTool{
			Search:    search,
			Endpoint:  cfg.Search.SenseEndpoint,
			HTTP:      hc,
			Language:  cfg.Search.Language,
			Timeout:   ms(cfg.Search.TimeoutMs),
			QATimeout: ms(cfg.Search.SenseTimeoutMs),
		},
		UseSense:   cfg.Reasoning.UseSense,
		DisableFAQ: cfg.Reasoning.DisableFAQ,
	}
	if cfg.Search.FAQDir != "" && !cfg.Reasoning.DisableFAQ {
		catalog, err := retriever.LoadFAQDir(cfg.Search.FAQDir)
		if err != nil {
			return nil, err
		}
		d.FAQ = &retriever.FAQTool{
			Catalog:         catalog,
			ScoreEndpoint:   cfg.Search.ScoreEndpoint,
			HTTP:            hc,
			Timeout:         ms(cfg.Search.TimeoutMs),
			Language:        cfg.Search.Language,
			Reasoner:        reasoner,
			Counter:         counter,
			MaxQuestions:    cfg.Reasoning.MaxFAQQuestions,
			MaxPromptTokens: cfg.Reasoning.MaxTokensFAQPrompt,
		}
	}
	return d, nil
}
