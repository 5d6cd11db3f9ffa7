package orchestrator

import (
	"regexp"
	"strings"
)

// ActionKind tags a parsed action.
type ActionKind int

const (
	// ActionMalformed means the action text could not be found and must be
	// recovered with a repair call. Intent still tells Finish from Search.
	ActionMalformed ActionKind = iota
	ActionFinish
	ActionSearch
)

func (k ActionKind) String() string {
	switch k {
	case ActionFinish:
		return "finish"
	case ActionSearch:
		return "search"
	default:
		return "malformed"
	}
}

// Action is the parsed "Ação i:" section of one model step.
type Action struct {
	Kind ActionKind
	// Intent is Finish or Search, from the action verb. Unknown verbs are
	// searches.
	Intent ActionKind
	Text   string
}

var (
	finishVerbs = []string{"finalizar", "finish"}

	// actionTextLabel matches "Texto da Ação 3:" or "Action Text:" at a line start.
	actionTextLabel = regexp.MustCompile(`(?im)^\s*(?:Texto da Ação|Action Text)(?:\s+\d+)?\s*:`)
)

const (
	openers = "[({<\"'"
	closers = "])}>\"'"
)

// ParseAction reads raw, the text that follows "Ação i:". The action text
// is taken from an explicit "Texto da Ação" line first, then from a
// bracketed argument such as Pesquisar[query]; an unclosed bracket runs to
// the end of raw.
func ParseAction(raw string) Action {
	raw = strings.TrimSpace(raw)
	a := Action{Intent: intentOf(raw)}

	if loc := actionTextLabel.FindStringIndex(raw); loc != nil {
		if text := strings.TrimSpace(raw[loc[1]:]); text != "" {
			a.Kind, a.Text = a.Intent, text
			return a
		}
	}

	if open := strings.IndexAny(raw, openers); open >= 0 {
		rest := raw[open+1:]
		if end := strings.LastIndexAny(rest, closers); end >= 0 {
			rest = rest[:end]
		}
		if text := strings.TrimSpace(rest); text != "" {
			a.Kind, a.Text = a.Intent, text
			return a
		}
	}

	a.Kind = ActionMalformed
	return a
}

func intentOf(raw string) ActionKind {
	lower := strings.ToLower(raw)
	for _, v := range finishVerbs {
		if strings.HasPrefix(lower, v) {
			return ActionFinish
		}
	}
	return ActionSearch
}

// forcedAnswer takes the text before the first "]" of a forced-finish
// completion, or all of it when the bracket was never closed.
func forcedAnswer(text string) string {
	if i := strings.Index(text, "]"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// firstLine returns the first line of s, trimmed.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
