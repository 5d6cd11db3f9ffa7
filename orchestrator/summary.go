package orchestrator

import (
	"context"
	"strings"

	"github.com/neuralmind-ai/nsx-chatbot/llm"
	"github.com/neuralmind-ai/nsx-chatbot/memory"
	"github.com/neuralmind-ai/nsx-chatbot/metrics"
	"github.com/neuralmind-ai/nsx-chatbot/tokenizer"
)

// Summarizer reads the conversation history of a session and folds it into
// a rolling summary once it grows past MaxTokens.
type Summarizer struct {
	Store     memory.Store
	Reasoner  *llm.Reasoner
	Counter   tokenizer.Counter
	MaxTokens int
	// Prompt has {old_summary} and {interactions}. Empty uses the default.
	Prompt string
}

// FormatHistory renders a stored conversation the way it is given to the model.
func FormatHistory(c memory.Conversation) string {
	var b strings.Builder
	if c.Summary != "" {
		b.WriteString(summaryLabel)
		b.WriteString(c.Summary)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Join(c.Interactions, ""))
	return b.String()
}

// History returns the formatted history of k. When it is over budget the
// stored interactions are replaced by a fresh summary first, and the
// returned history is the summarized one. Summarization errors propagate.
func (s *Summarizer) History(ctx context.Context, k memory.Key, ledger *metrics.LatencyLedger) (string, error) {
	stop := ledger.Start(metrics.StageMemoryGet)
	conv, err := s.Store.Get(ctx, k)
	stop()
	if err != nil {
		return "", err
	}
	history := FormatHistory(conv)
	if s.MaxTokens <= 0 || s.Counter.Count(history) <= s.MaxTokens {
		return history, nil
	}

	defer ledger.Start(metrics.StageSummary)()
	prompt := s.Prompt
	if prompt == "" {
		prompt = DefaultPrompts().Summary
	}
	summary, err := s.Reasoner.Reason(ctx, fill(prompt,
		"old_summary", conv.Summary,
		"interactions", strings.Join(conv.Interactions, "")), []string{})
	if err != nil {
		return "", err
	}
	if err := s.Store.Clear(ctx, k); err != nil {
		return "", err
	}
	summarized := memory.Conversation{Interactions: []string{}, Summary: summary}
	if err := s.Store.Replace(ctx, k, summarized); err != nil {
		return "", err
	}
	return FormatHistory(summarized), nil
}
