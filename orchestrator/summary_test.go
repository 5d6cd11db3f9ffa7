package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/llm"
	"github.com/neuralmind-ai/nsx-chatbot/memory"
	"github.com/neuralmind-ai/nsx-chatbot/metrics"
	"github.com/neuralmind-ai/nsx-chatbot/tokenizer"
)

func seeded(t *testing.T, k memory.Key, interactions ...string) memory.Store {
	t.Helper()
	store := memory.NewInMemoryStore(memory.Options{})
	for _, it := range interactions {
		require.NoError(t, store.AppendInteraction(context.Background(), k, it))
	}
	return store
}

func TestSummarizer_UnderBudgetLeavesHistory(t *testing.T) {
	k := memory.Key{User: "5511", Bot: "bot", Index: "FUNDEP"}
	store := seeded(t, k, "Usuário: oi\nAssistente: olá\n")
	c := texts()
	s := &Summarizer{Store: store, Reasoner: &llm.Reasoner{Client: c}, Counter: tokenizer.Words{}, MaxTokens: 100}

	ledger := metrics.NewLatencyLedger()
	h, err := s.History(context.Background(), k, ledger)
	require.NoError(t, err)
	assert.Equal(t, "Usuário: oi\nAssistente: olá\n", h)
	assert.Zero(t, c.calls())
	_, ok := ledger.Get(metrics.StageMemoryGet)
	assert.True(t, ok)
	_, ok = ledger.Get(metrics.StageSummary)
	assert.False(t, ok)
}

func TestSummarizer_ReplacesOversizedHistory(t *testing.T) {
	k := memory.Key{User: "5511", Bot: "bot", Index: "FUNDEP"}
	store := seeded(t, k,
		"Usuário: quando é a prova?\nAssistente: dia 25/03.\n",
		"Usuário: e o local?\nAssistente: no campus central.\n",
	)
	c := texts("O usuário perguntou a data e o local da prova.")
	s := &Summarizer{Store: store, Reasoner: &llm.Reasoner{Client: c}, Counter: tokenizer.Words{}, MaxTokens: 5}

	h, err := s.History(context.Background(), k, nil)
	require.NoError(t, err)
	assert.Equal(t, "Resumo de conversas anteriores: O usuário perguntou a data e o local da prova.\n", h)

	require.Equal(t, 1, c.calls())
	assert.Contains(t, c.prompt(0), "Usuário: e o local?")
	assert.NotNil(t, c.reqs[0].Stop)
	assert.Empty(t, c.reqs[0].Stop)

	got, err := store.Get(context.Background(), k)
	require.NoError(t, err)
	assert.Equal(t, memory.Conversation{Interactions: []string{}, Summary: "O usuário perguntou a data e o local da prova."}, got)

	// The summary itself is carried into the next summarization.
	require.NoError(t, store.AppendInteraction(context.Background(), k, "Usuário: e o horário?\nAssistente: 9h.\n"))
	c.replies = append(c.replies, llm.Response{Text: "novo resumo"})
	_, err = s.History(context.Background(), k, nil)
	require.NoError(t, err)
	assert.Contains(t, c.prompt(1), "O usuário perguntou a data e o local da prova.")
}

func TestSummarizer_FailurePropagatesAndKeepsHistory(t *testing.T) {
	k := memory.Key{User: "u", Bot: "b", Index: "i"}
	store := seeded(t, k, "Usuário: uma mensagem longa\nAssistente: uma resposta longa\n")
	s := &Summarizer{Store: store, Reasoner: &llm.Reasoner{Client: texts()}, Counter: tokenizer.Words{}, MaxTokens: 2}

	_, err := s.History(context.Background(), k, nil)
	assert.Equal(t, errs.KindCompletion, errs.KindOf(err))

	got, err := store.Get(context.Background(), k)
	require.NoError(t, err)
	assert.Len(t, got.Interactions, 1)
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "", FormatHistory(memory.Conversation{}))
	assert.Equal(t, "Resumo de conversas anteriores: S\nA\nB\n",
		FormatHistory(memory.Conversation{Summary: "S", Interactions: []string{"A\n", "B\n"}}))
}
