// Package chatbot answers messages of a retrieval-grounded chat assistant.
// Engine is the single entry point used by the MCP server, the HTTP API and
// the CLI.
package chatbot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
	"github.com/neuralmind-ai/nsx-chatbot/history"
	"github.com/neuralmind-ai/nsx-chatbot/memory"
	"github.com/neuralmind-ai/nsx-chatbot/metrics"
	"github.com/neuralmind-ai/nsx-chatbot/orchestrator"
	"github.com/neuralmind-ai/nsx-chatbot/retriever"
	"github.com/neuralmind-ai/nsx-chatbot/safety"
)

// User config keys that override per-turn options.
const (
	ConfigVerbose = "verbose"
	ConfigModel   = "model"
)

// Options tune one turn.
type Options struct {
	Verbose bool
	// ReturnDebug prefixes the answer with the reasoning trace.
	ReturnDebug   bool
	BM25Only      bool
	DisableMemory bool
	DisableFAQ    bool
	UseSense      bool
	Model         string
}

type AnswerRequest struct {
	UserID    string
	ChatbotID string
	Index     string
	Message   string
	// APIKey for the search service. Empty uses the configured key.
	APIKey  string
	Options Options
}

// Reply is what the user sees. On failure Text is still set to the fixed
// apology so callers can always deliver something.
type Reply struct {
	TurnID  string
	Text    string
	Outcome string
	Harmful bool
}

// Components are the collaborators of an Engine.
type Components struct {
	Gate       *safety.Gate
	Store      memory.Store
	Summarizer *orchestrator.Summarizer
	Handler    orchestrator.Handler
	History    history.Store
	Info       history.Provider
	APIKey     string
}

type Engine struct {
	gate       *safety.Gate
	store      memory.Store
	summarizer *orchestrator.Summarizer
	handler    orchestrator.Handler
	history    history.Store
	info       history.Provider
	apiKey     string

	now   func() time.Time
	newID func() string
}

func New(c Components) *Engine {
	e := &Engine{
		gate:       c.Gate,
		store:      c.Store,
		summarizer: c.Summarizer,
		handler:    c.Handler,
		history:    c.History,
		info:       c.Info,
		apiKey:     c.APIKey,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	if e.history == nil {
		e.history = history.NewNopStore(nil)
	}
	if e.info == nil {
		e.info = e.history
	}
	return e
}

// Answer runs one turn: moderate the message, load (and maybe summarize)
// memory, reason, moderate the answer, then store the interaction.
func (e *Engine) Answer(ctx context.Context, req AnswerRequest) (*Reply, error) {
	begin := e.now()
	ev := logger.TurnEvent{
		TurnID:      e.newID(),
		UserID:      req.UserID,
		ChatbotID:   req.ChatbotID,
		Index:       req.Index,
		UserMessage: req.Message,
		Timestamp:   begin,
	}
	key := memory.Key{User: req.UserID, Bot: req.ChatbotID, Index: req.Index}
	turn := retriever.NewTurn()
	ledger := turn.Ledger
	fail := func(err error) (*Reply, error) { return e.fail(ev, ledger, begin, err) }
	refuse := func(side, reason string) (*Reply, error) { return e.refuse(ev, ledger, begin, side, reason), nil }

	opts, err := e.userOptions(ctx, req)
	if err != nil {
		return fail(err)
	}
	turn.DisableFAQ, turn.UseSense = opts.DisableFAQ, opts.UseSense

	harmful, err := e.gate.IsHarmful(ctx, req.Message)
	if err != nil {
		return fail(err)
	}
	if harmful {
		return refuse("message", "user message flagged by moderation")
	}

	var hist string
	if !opts.DisableMemory {
		if hist, err = e.summarizer.History(ctx, key, ledger); err != nil {
			return fail(err)
		}
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = e.apiKey
	}
	stop := ledger.Start(metrics.StageReasoning)
	res, err := e.handler.FindAnswer(ctx, orchestrator.Input{
		Message:  req.Message,
		History:  hist,
		Index:    req.Index,
		APIKey:   apiKey,
		BM25Only: opts.BM25Only,
		Model:    opts.Model,
		Verbose:  opts.Verbose,
		Turn:     turn,
	})
	stop()
	if err != nil {
		if errs.Is(err, errs.KindContentFilter) {
			return refuse("completion", err.Error())
		}
		return fail(err)
	}
	metrics.ObserveIterations(res.Iterations)
	ev.Answer, ev.Reasoning = res.Answer, res.Trace.String()
	if res.Outcome == orchestrator.OutcomeTooLong {
		// Not moderated and not kept in memory, but logged and audited.
		logger.Chat(ev)
		e.audit(ctx, ev, ledger, begin)
		metrics.IncTurn(res.Outcome.String())
		return &Reply{TurnID: ev.TurnID, Text: res.Answer, Outcome: res.Outcome.String()}, nil
	}

	harmful, err = e.gate.IsHarmful(ctx, res.Answer)
	if err != nil {
		return fail(err)
	}
	if harmful {
		return refuse("answer", "answer flagged by moderation")
	}

	if !opts.DisableMemory {
		stop := ledger.Start(metrics.StageMemorySet)
		err := e.store.AppendInteraction(ctx, key, fmt.Sprintf("Usuário: %s\nAssistente: %s\n", req.Message, res.Answer))
		stop()
		if err != nil {
			return fail(err)
		}
	}

	logger.Chat(ev)
	e.audit(ctx, ev, ledger, begin)
	metrics.IncTurn(res.Outcome.String())

	text := res.Answer
	if opts.ReturnDebug {
		text = fmt.Sprintf("%s\nAnswer: %s", ev.Reasoning, res.Answer)
	}
	return &Reply{TurnID: ev.TurnID, Text: text, Outcome: res.Outcome.String()}, nil
}

// audit writes the history row and the latency log. Failures are logged
// and never fail the turn.
func (e *Engine) audit(ctx context.Context, ev logger.TurnEvent, ledger *metrics.LatencyLedger, begin time.Time) {
	stop := ledger.Start(metrics.StageHistory)
	rec := &history.ChatRecord{
		TurnID:      ev.TurnID,
		UserID:      ev.UserID,
		Index:       ev.Index,
		Timestamp:   ev.Timestamp,
		UserMessage: ev.UserMessage,
		Answer:      ev.Answer,
		Reasoning:   ev.Reasoning,
	}
	rec.SetLatency(ledger.Seconds())
	if err := e.history.UpsertChatHistory(ctx, rec); err != nil {
		logger.Failure(ev, err)
	}
	stop()

	e.closeLedger(ev, ledger, begin)
}

// closeLedger records the total and emits the latency log. Every turn ends
// here, whatever its outcome.
func (e *Engine) closeLedger(ev logger.TurnEvent, ledger *metrics.LatencyLedger, begin time.Time) {
	ledger.Record(metrics.StageTotal, e.now().Sub(begin))
	logger.Latency(ev, ledger.Seconds())
	ledger.Observe()
}

func (e *Engine) refuse(ev logger.TurnEvent, ledger *metrics.LatencyLedger, begin time.Time, side, reason string) *Reply {
	logger.Harmful(ev, reason)
	e.closeLedger(ev, ledger, begin)
	metrics.IncHarmful(side)
	metrics.IncTurn("harmful")
	return &Reply{TurnID: ev.TurnID, Text: errs.HarmfulContentMessage, Outcome: "harmful", Harmful: true}
}

func (e *Engine) fail(ev logger.TurnEvent, ledger *metrics.LatencyLedger, begin time.Time, err error) (*Reply, error) {
	logger.Failure(ev, err)
	e.closeLedger(ev, ledger, begin)
	metrics.IncTurn("error")
	return &Reply{TurnID: ev.TurnID, Text: errs.UserMessage(err), Outcome: "error"}, err
}

// userOptions applies the stored per-user overrides on top of req.Options.
func (e *Engine) userOptions(ctx context.Context, req AnswerRequest) (Options, error) {
	opts := req.Options
	if v, ok, err := e.store.UserConfig(ctx, req.UserID, req.ChatbotID, ConfigVerbose); err != nil {
		return opts, err
	} else if ok {
		if b, perr := strconv.ParseBool(v); perr == nil {
			opts.Verbose = b
		}
	}
	if v, ok, err := e.store.UserConfig(ctx, req.UserID, req.ChatbotID, ConfigModel); err != nil {
		return opts, err
	} else if ok && v != "" && opts.Model == "" {
		opts.Model = v
	}
	return opts, nil
}

// Close releases the session store and the history database.
func (e *Engine) Close() error {
	var result error
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if e.history != nil {
		if err := e.history.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
