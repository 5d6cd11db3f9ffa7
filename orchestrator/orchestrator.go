// Package orchestrator drives the reasoning that turns one user message
// plus conversation history into an answer.
package orchestrator

import (
	"context"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/config"
	"github.com/neuralmind-ai/nsx-chatbot/llm"
	"github.com/neuralmind-ai/nsx-chatbot/retriever"
	"github.com/neuralmind-ai/nsx-chatbot/tokenizer"
)

// Outcome tells how a turn ended.
type Outcome int

const (
	OutcomeFinish Outcome = iota
	OutcomeForcedFinish
	// OutcomeDirect is a function-call turn the model answered without searching.
	OutcomeDirect
	OutcomeFunctionCall
	OutcomeTooLong
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFinish:
		return "finish"
	case OutcomeForcedFinish:
		return "forced_finish"
	case OutcomeDirect:
		return "direct"
	case OutcomeFunctionCall:
		return "function_call"
	case OutcomeTooLong:
		return "too_long"
	default:
		return "unknown"
	}
}

// Input is one turn as seen by a handler.
type Input struct {
	Message string
	// History is the formatted conversation, summary included.
	History  string
	Index    string
	APIKey   string
	BM25Only bool
	// Model overrides the configured model for this turn.
	Model   string
	Verbose bool
	Turn    *retriever.Turn
}

type Result struct {
	Answer     string
	Outcome    Outcome
	Iterations int
	Trace      *Trace
}

// Handler answers one turn.
type Handler interface {
	FindAnswer(ctx context.Context, in Input) (*Result, error)
}

// IndexInfo is the domain metadata provider.
type IndexInfo interface {
	IndexInformation(ctx context.Context, index, field string) (string, error)
}

// domainOf falls back to the index name when no description is known.
func domainOf(ctx context.Context, info IndexInfo, index string) string {
	if info == nil {
		return index
	}
	d, err := info.IndexInformation(ctx, index, "domain")
	if err != nil || d == "" {
		return index
	}
	return d
}

// Deps are the collaborators shared by both handlers.
type Deps struct {
	Reasoner   *llm.Reasoner
	Client     llm.Client
	Dispatcher *retriever.Dispatcher
	Counter    tokenizer.Counter
	Info       IndexInfo
	Prompts    Prompts
	Reasoning  config.ReasoningConfig
	NumDocs    int
}

// New builds the handler named by cfg.Handler.
func New(d Deps) (Handler, error) {
	d.Prompts = d.Prompts.withDefaults()
	switch d.Reasoning.Handler {
	case "", config.HandlerReAct, "ChatHandler":
		return &ReActHandler{
			Reasoner:        d.Reasoner,
			Dispatcher:      d.Dispatcher,
			Counter:         d.Counter,
			Info:            d.Info,
			Prompts:         d.Prompts,
			MaxIterations:   d.Reasoning.MaxIterations,
			MaxTokensPrompt: d.Reasoning.MaxTokensPrompt,
			NumDocs:         d.NumDocs,
		}, nil
	case config.HandlerFunctionCall, "ChatHandlerFunctionCall":
		client := d.Client
		if client == nil && d.Reasoner != nil {
			client = d.Reasoner.Client
		}
		model := ""
		if d.Reasoner != nil {
			model = d.Reasoner.Model
		}
		return &FunctionCallHandler{
			Client:                client,
			Model:                 model,
			Dispatcher:            d.Dispatcher,
			Counter:               d.Counter,
			Info:                  d.Info,
			Prompts:               d.Prompts,
			MaxTokensPrompt:       d.Reasoning.MaxTokensPrompt,
			MaxTokensFunctionCall: d.Reasoning.MaxTokensFunctionCall,
			Parallel:              d.Reasoning.ParallelObservations,
			NumDocs:               d.NumDocs,
		}, nil
	default:
		return nil, errs.Ef(errs.KindConfig, "handler", "could not find handler %q", d.Reasoning.Handler)
	}
}
