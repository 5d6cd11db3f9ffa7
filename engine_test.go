package chatbot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
	"github.com/neuralmind-ai/nsx-chatbot/history"
	"github.com/neuralmind-ai/nsx-chatbot/memory"
	"github.com/neuralmind-ai/nsx-chatbot/orchestrator"
	"github.com/neuralmind-ai/nsx-chatbot/safety"
	"github.com/neuralmind-ai/nsx-chatbot/tokenizer"
)

// wordModerator flags any text containing one of its words.
type wordModerator struct {
	words []string
	err   error
}

func (m wordModerator) Flagged(_ context.Context, text string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, w := range m.words {
		if strings.Contains(text, w) {
			return true, nil
		}
	}
	return false, nil
}

type fakeHandler struct {
	mu     sync.Mutex
	inputs []orchestrator.Input
	result *orchestrator.Result
	err    error
}

func (h *fakeHandler) FindAnswer(_ context.Context, in orchestrator.Input) (*orchestrator.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputs = append(h.inputs, in)
	if h.err != nil {
		return nil, h.err
	}
	return h.result, nil
}

type recordingHistory struct {
	history.NopStore
	mu   sync.Mutex
	recs []*history.ChatRecord
	err  error
}

func (r *recordingHistory) UpsertChatHistory(_ context.Context, rec *history.ChatRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return r.err
}

type fixture struct {
	engine  *Engine
	store   *memory.InMemoryStore
	handler *fakeHandler
	history *recordingHistory
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, mod safety.Moderator) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(nil) })

	store := memory.NewInMemoryStore(memory.Options{})
	h := &fakeHandler{result: &orchestrator.Result{Answer: "A prova é dia 25/03.", Outcome: orchestrator.OutcomeFinish, Iterations: 2, Trace: &orchestrator.Trace{}}}
	hist := &recordingHistory{}
	e := New(Components{
		Gate:       safety.NewGate(mod, true),
		Store:      store,
		Summarizer: &orchestrator.Summarizer{Store: store, Counter: tokenizer.Words{}, MaxTokens: 1000},
		Handler:    h,
		History:    hist,
		APIKey:     "default-key",
	})
	e.newID = func() string { return "turn-1" }
	return &fixture{engine: e, store: store, handler: h, history: hist, logs: logs}
}

func (f *fixture) stream(name string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range f.logs.All() {
		if e.ContextMap()["stream"] == name {
			out = append(out, e)
		}
	}
	return out
}

func request(msg string) AnswerRequest {
	return AnswerRequest{UserID: "5511", ChatbotID: "bot", Index: "FUNDEP", Message: msg}
}

func TestAnswer_StoresInteractionAndAudits(t *testing.T) {
	f := newFixture(t, wordModerator{})
	ctx := context.Background()
	require.NoError(t, f.store.AppendInteraction(ctx, memory.Key{User: "5511", Bot: "bot", Index: "FUNDEP"}, "Usuário: oi\nAssistente: olá\n"))

	reply, err := f.engine.Answer(ctx, request("Quando é a prova?"))
	require.NoError(t, err)
	assert.Equal(t, "A prova é dia 25/03.", reply.Text)
	assert.Equal(t, "turn-1", reply.TurnID)
	assert.Equal(t, "finish", reply.Outcome)

	require.Len(t, f.handler.inputs, 1)
	in := f.handler.inputs[0]
	assert.Equal(t, "Usuário: oi\nAssistente: olá\n", in.History)
	assert.Equal(t, "default-key", in.APIKey)
	assert.Equal(t, "FUNDEP", in.Index)
	require.NotNil(t, in.Turn)

	conv, err := f.store.Get(ctx, memory.Key{User: "5511", Bot: "bot", Index: "FUNDEP"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Usuário: oi\nAssistente: olá\n",
		"Usuário: Quando é a prova?\nAssistente: A prova é dia 25/03.\n",
	}, conv.Interactions)

	require.Len(t, f.history.recs, 1)
	rec := f.history.recs[0]
	assert.Equal(t, "turn-1", rec.TurnID)
	assert.Equal(t, "A prova é dia 25/03.", rec.Answer)
	assert.Contains(t, rec.Latency, "memory_get")

	assert.Len(t, f.stream(logger.StreamChat), 1)
	latency := f.stream(logger.StreamLatency)
	require.Len(t, latency, 1)
	assert.Contains(t, latency[0].ContextMap(), "total")
	assert.Contains(t, latency[0].ContextMap(), "reasoning")
}

func TestAnswer_HarmfulMessageSkipsEverything(t *testing.T) {
	f := newFixture(t, wordModerator{words: []string{"ofensa"}})

	reply, err := f.engine.Answer(context.Background(), request("uma ofensa"))
	require.NoError(t, err)
	assert.True(t, reply.Harmful)
	assert.Equal(t, errs.HarmfulContentMessage, reply.Text)
	assert.Empty(t, f.handler.inputs)
	assert.Empty(t, f.history.recs)
	assert.Len(t, f.stream(logger.StreamHarmful), 1)
	assert.Len(t, f.stream(logger.StreamLatency), 1)
}

func TestAnswer_HarmfulAnswerIsNotStored(t *testing.T) {
	f := newFixture(t, wordModerator{words: []string{"25/03"}})

	reply, err := f.engine.Answer(context.Background(), request("Quando é a prova?"))
	require.NoError(t, err)
	assert.True(t, reply.Harmful)
	conv, err := f.store.Get(context.Background(), memory.Key{User: "5511", Bot: "bot", Index: "FUNDEP"})
	require.NoError(t, err)
	assert.Empty(t, conv.Interactions)
	harmful := f.stream(logger.StreamHarmful)
	require.Len(t, harmful, 1)
	assert.Equal(t, "A prova é dia 25/03.", harmful[0].ContextMap()["answer"])
	latency := f.stream(logger.StreamLatency)
	require.Len(t, latency, 1)
	assert.IsType(t, float64(0), latency[0].ContextMap()["reasoning"])
	assert.NotContains(t, latency[0].ContextMap(), "answer")
}

func TestAnswer_Failures(t *testing.T) {
	t.Run("auth error becomes fixed apology", func(t *testing.T) {
		f := newFixture(t, wordModerator{})
		f.handler.err = errs.Ef(errs.KindAuth, "nsx search", "invalid API key")

		reply, err := f.engine.Answer(context.Background(), request("m"))
		require.Error(t, err)
		assert.Equal(t, errs.InvalidAPIKeyMessage, reply.Text)
		failures := f.stream(logger.StreamError)
		require.Len(t, failures, 1)
		assert.Contains(t, failures[0].ContextMap(), "traceback")
	})

	t.Run("search failure still logs latency", func(t *testing.T) {
		f := newFixture(t, wordModerator{})
		f.handler.err = errs.Ef(errs.KindSearch, "nsx search", "status 500")

		reply, err := f.engine.Answer(context.Background(), request("m"))
		assert.Equal(t, errs.KindSearch, errs.KindOf(err))
		assert.Equal(t, errs.ApologyMessage, reply.Text)
		latency := f.stream(logger.StreamLatency)
		require.Len(t, latency, 1)
		assert.IsType(t, float64(0), latency[0].ContextMap()["reasoning"])
		assert.IsType(t, float64(0), latency[0].ContextMap()["total"])
		assert.Empty(t, f.history.recs)
	})

	t.Run("content filter is a refusal", func(t *testing.T) {
		f := newFixture(t, wordModerator{})
		f.handler.err = errs.E(errs.KindContentFilter, "complete", errors.New("the prompt was filtered by hate content with severity high"))

		reply, err := f.engine.Answer(context.Background(), request("m"))
		require.NoError(t, err)
		assert.True(t, reply.Harmful)
		assert.Len(t, f.stream(logger.StreamHarmful), 1)
		assert.Len(t, f.stream(logger.StreamLatency), 1)
	})

	t.Run("moderation unreachable", func(t *testing.T) {
		f := newFixture(t, wordModerator{err: errs.E(errs.KindTimeout, "moderation", context.DeadlineExceeded)})

		reply, err := f.engine.Answer(context.Background(), request("m"))
		assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
		assert.Equal(t, errs.ApologyMessage, reply.Text)
		assert.Empty(t, f.handler.inputs)
		assert.Len(t, f.stream(logger.StreamLatency), 1)
	})

	t.Run("history failure does not fail the turn", func(t *testing.T) {
		f := newFixture(t, wordModerator{})
		f.history.err = errors.New("db down")

		reply, err := f.engine.Answer(context.Background(), request("m"))
		require.NoError(t, err)
		assert.Equal(t, "A prova é dia 25/03.", reply.Text)
		assert.Len(t, f.stream(logger.StreamError), 1)
	})
}

func TestAnswer_OptionsAndUserConfig(t *testing.T) {
	f := newFixture(t, wordModerator{})
	ctx := context.Background()
	require.NoError(t, f.engine.SetUserConfig(ctx, "5511", "bot", ConfigModel, "gpt-4"))
	require.NoError(t, f.engine.SetUserConfig(ctx, "5511", "bot", ConfigVerbose, "true"))
	f.handler.result.Trace = nil

	req := request("m")
	req.APIKey = "user-key"
	req.Options = Options{ReturnDebug: true, DisableMemory: true, DisableFAQ: true, UseSense: true, BM25Only: true}
	reply, err := f.engine.Answer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "\nAnswer: A prova é dia 25/03.", reply.Text)

	in := f.handler.inputs[0]
	assert.Equal(t, "gpt-4", in.Model)
	assert.True(t, in.Verbose)
	assert.True(t, in.BM25Only)
	assert.Equal(t, "user-key", in.APIKey)
	assert.True(t, in.Turn.DisableFAQ)
	assert.True(t, in.Turn.UseSense)

	conv, err := f.store.Get(ctx, memory.Key{User: "5511", Bot: "bot", Index: "FUNDEP"})
	require.NoError(t, err)
	assert.True(t, conv.Empty())
}

func TestAnswer_TooLongIsAuditedNotStored(t *testing.T) {
	f := newFixture(t, wordModerator{})
	f.handler.result = &orchestrator.Result{Answer: errs.MessageTooLongMessage, Outcome: orchestrator.OutcomeTooLong}

	reply, err := f.engine.Answer(context.Background(), request("m"))
	require.NoError(t, err)
	assert.Equal(t, errs.MessageTooLongMessage, reply.Text)

	conv, err := f.store.Get(context.Background(), memory.Key{User: "5511", Bot: "bot", Index: "FUNDEP"})
	require.NoError(t, err)
	assert.True(t, conv.Empty())
	require.Len(t, f.history.recs, 1)
	assert.Equal(t, errs.MessageTooLongMessage, f.history.recs[0].Answer)
	assert.Len(t, f.stream(logger.StreamChat), 1)
	assert.Len(t, f.stream(logger.StreamLatency), 1)
}

func TestGreetingAndReset(t *testing.T) {
	f := newFixture(t, wordModerator{})
	ctx := context.Background()

	msgs, err := f.engine.Greeting(ctx, "5511", "bot", "FUNDEP")
	require.NoError(t, err)
	assert.Equal(t, []string{history.DefaultIntro, history.DefaultDisclaimer}, msgs)

	msgs, err = f.engine.Greeting(ctx, "5511", "bot", "FUNDEP")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	last, err := f.engine.LastIndex(ctx, "5511", "bot")
	require.NoError(t, err)
	assert.Equal(t, "FUNDEP", last)

	require.NoError(t, f.engine.Reset(ctx, "5511", "bot"))
	msgs, err = f.engine.Greeting(ctx, "5511", "bot", "FUNDEP")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

type failingCloser struct {
	history.NopStore
}

func (failingCloser) Close() error { return errors.New("history close") }

func TestClose(t *testing.T) {
	e := New(Components{Store: memory.NewInMemoryStore(memory.Options{}), History: &failingCloser{}})
	err := e.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history close")
}
