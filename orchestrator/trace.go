package orchestrator

import (
	"fmt"
	"strings"

	"github.com/neuralmind-ai/nsx-chatbot/retriever"
)

// Step is one think/act/observe record.
type Step struct {
	N           int
	Thought     string
	Action      string
	Kind        ActionKind
	ActionText  string
	Observation string
	Source      retriever.Source
	Observed    bool
}

// Trace is the per-turn reasoning record. Only its String form outlives the
// turn, in the logs and in debug answers.
type Trace struct {
	Steps []Step
	// Forced holds the raw forced-finish completion, if one was made.
	Forced string
	// Tokens is the token count of the accumulated prompt.
	Tokens int
	// BudgetExceeded is set when the prompt ceiling ended the loop.
	BudgetExceeded bool

	notes []string
}

func (t *Trace) add(s Step) { t.Steps = append(t.Steps, s) }

// note appends a free-form line, used by the function-call handler.
func (t *Trace) note(format string, args ...any) {
	t.notes = append(t.notes, fmt.Sprintf(format, args...))
}

func (t *Trace) String() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range t.Steps {
		fmt.Fprintf(&b, "Thought %d: %s\nAction %d: %s\n", s.N, s.Thought, s.N, s.Action)
		if s.Observed {
			fmt.Fprintf(&b, "Observation %d (%s): %s\n", s.N, s.Source, s.Observation)
		}
	}
	if t.Forced != "" {
		fmt.Fprintf(&b, "Forced Finish: %s\n", t.Forced)
	}
	for _, n := range t.notes {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return b.String()
}
