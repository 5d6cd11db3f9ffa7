// Package retriever resolves one sub-query into an observation using the
// FAQ, the ranked document search or the multi-document QA service.
package retriever

import (
	"strings"
	"sync"

	"github.com/neuralmind-ai/nsx-chatbot/metrics"
)

// Source tags which tool produced an observation.
type Source int

const (
	SourceFAQ Source = iota
	SourceNSX
	SourceSense
)

func (s Source) String() string {
	switch s {
	case SourceFAQ:
		return "faq"
	case SourceNSX:
		return "nsx"
	case SourceSense:
		return "sense"
	default:
		return "unknown"
	}
}

// Observation is the text fed back to the reasoning prompt.
type Observation struct {
	Text   string
	Source Source
	// Sentinel is set when Text is one of the fixed "nothing found" texts.
	Sentinel bool
}

// Query is one lookup request.
type Query struct {
	Text         string
	Index        string
	APIKey       string
	SearchesLeft int
	// NumDocs caps how many documents are concatenated. Zero means the
	// tool default.
	NumDocs  int
	BM25Only bool
}

// UnanswerableMarker is what the FAQ selector and the multi-document QA
// service answer when they cannot help.
const UnanswerableMarker = "irrespondível"

// Sentinels are the two fixed "nothing found" observations.
type Sentinels struct {
	NotFound  string
	Exhausted string
}

var DefaultSentinels = Sentinels{
	NotFound:  "Não encontrei informações sobre isso na base de dados. Posso tentar pesquisar de outra forma.",
	Exhausted: "Não encontrei informações sobre isso na base de dados e não posso mais pesquisar. Devo responder com o que já sei ou informar que não encontrei a resposta.",
}

// For picks the sentinel by the remaining search budget.
func (s Sentinels) For(searchesLeft int) Observation {
	if s.NotFound == "" && s.Exhausted == "" {
		s = DefaultSentinels
	}
	text := s.NotFound
	if searchesLeft <= 0 {
		text = s.Exhausted
	}
	return Observation{Text: text, Sentinel: true}
}

// UsedFAQ is the set of FAQ questions already returned in one turn.
type UsedFAQ struct {
	mu   sync.Mutex
	used map[string]struct{}
}

func NewUsedFAQ() *UsedFAQ { return &UsedFAQ{used: make(map[string]struct{})} }

func (u *UsedFAQ) Has(question string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.used[question]
	return ok
}

// Claim marks question as used. It reports false when it was already used,
// which can happen when parallel lookups select the same question.
func (u *UsedFAQ) Claim(question string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.used[question]; ok {
		return false
	}
	u.used[question] = struct{}{}
	return true
}

func (u *UsedFAQ) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.used)
}

// Turn carries the per-turn state shared by every lookup of one answer.
type Turn struct {
	Used   *UsedFAQ
	Ledger *metrics.LatencyLedger
	// DisableFAQ and UseSense add to the dispatcher's static settings.
	DisableFAQ bool
	UseSense   bool
	// Model overrides the completion model for lookups that call it.
	Model string
}

func NewTurn() *Turn {
	return &Turn{Used: NewUsedFAQ(), Ledger: metrics.NewLatencyLedger()}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
