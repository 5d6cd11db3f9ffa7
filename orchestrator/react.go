package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
	"github.com/neuralmind-ai/nsx-chatbot/llm"
	"github.com/neuralmind-ai/nsx-chatbot/retriever"
	"github.com/neuralmind-ai/nsx-chatbot/tokenizer"
)

// ReActHandler runs the think/act/observe loop. A turn is strictly
// sequential: one completion, then at most one lookup, per iteration.
type ReActHandler struct {
	Reasoner        *llm.Reasoner
	Dispatcher      *retriever.Dispatcher
	Counter         tokenizer.Counter
	Info            IndexInfo
	Prompts         Prompts
	MaxIterations   int
	MaxTokensPrompt int
	NumDocs         int
}

func (h *ReActHandler) FindAnswer(ctx context.Context, in Input) (*Result, error) {
	prompts := h.Prompts.withDefaults()
	chat := fill(prompts.Chat, "domain", domainOf(ctx, h.Info, in.Index))
	prompt := fmt.Sprintf("%s\n%s\n%s %s\n", chat, in.History, labelMessage, in.Message)

	trace := &Trace{Tokens: h.Counter.Count(prompt)}
	if trace.Tokens > h.MaxTokensPrompt {
		return &Result{Answer: errs.MessageTooLongMessage, Outcome: OutcomeTooLong, Trace: trace}, nil
	}

	turn := in.Turn
	if turn == nil {
		turn = retriever.NewTurn()
	}
	if turn.Model == "" {
		turn.Model = in.Model
	}
	reasoner := h.Reasoner.WithModel(in.Model)

	for i := 1; i <= h.MaxIterations; i++ {
		step, err := h.step(ctx, reasoner, prompt, i)
		if err != nil {
			return nil, err
		}
		if in.Verbose {
			logger.Infof("Thought %d: %s", i, step.Thought)
			logger.Infof("Action %d: %s", i, step.Action)
		}

		if step.Kind == ActionFinish {
			trace.add(step)
			return &Result{Answer: step.ActionText, Outcome: OutcomeFinish, Iterations: i, Trace: trace}, nil
		}

		// i counts from 1, so the last iteration searches with nothing left.
		obs, err := h.Dispatcher.Dispatch(ctx, retriever.Query{
			Text:         step.ActionText,
			Index:        in.Index,
			APIKey:       in.APIKey,
			SearchesLeft: h.MaxIterations - i,
			NumDocs:      h.NumDocs,
			BM25Only:     in.BM25Only,
		}, turn)
		if err != nil {
			return nil, err
		}
		step.Observation, step.Source, step.Observed = obs.Text, obs.Source, true
		trace.add(step)
		if in.Verbose {
			logger.Infof("Observation %d (%s): %s", i, obs.Source, obs.Text)
		}

		block := fmt.Sprintf("%s %s\n%s %s\n%s %s\n",
			thoughtLabel(i), step.Thought, actionLabel(i), step.Action, observationLabel(i), obs.Text)
		tokens := h.Counter.Count(prompt + block)
		if tokens > h.MaxTokensPrompt {
			trace.BudgetExceeded = true
			break
		}
		prompt += block
		trace.Tokens = tokens
	}

	raw, err := reasoner.Reason(ctx, prompt+prompts.ForcedFinish, nil)
	if err != nil {
		return nil, err
	}
	trace.Forced = raw
	if in.Verbose {
		logger.Infof("Forced Finish: %s", raw)
	}
	return &Result{Answer: forcedAnswer(raw), Outcome: OutcomeForcedFinish, Iterations: len(trace.Steps), Trace: trace}, nil
}

// step asks for thought and action of iteration i, forcing an action when
// the model stopped after the thought and repairing a missing action text.
func (h *ReActHandler) step(ctx context.Context, r *llm.Reasoner, prompt string, i int) (Step, error) {
	stop := []string{observationLabel(i), labelMessage}
	reasoning, err := r.Reason(ctx, prompt+thoughtLabel(i), stop)
	if err != nil {
		return Step{}, err
	}

	s := Step{N: i}
	if thought, action, ok := strings.Cut(reasoning, "\n"+actionLabel(i)); ok {
		s.Thought, s.Action = strings.TrimSpace(thought), strings.TrimSpace(action)
	} else {
		s.Thought = firstLine(reasoning)
		s.Action, err = r.Reason(ctx, fmt.Sprintf("%s%s %s\n%s", prompt, thoughtLabel(i), s.Thought, actionLabel(i)), stop)
		if err != nil {
			return Step{}, err
		}
	}

	a := ParseAction(s.Action)
	if a.Kind == ActionMalformed {
		text, err := r.Reason(ctx, h.Prompts.withDefaults().Extractor+s.Action+"\n\nResposta:", nil)
		if err != nil {
			return Step{}, err
		}
		a.Kind, a.Text = a.Intent, strings.TrimSpace(text)
	}
	s.Kind, s.ActionText = a.Kind, a.Text
	return s, nil
}
