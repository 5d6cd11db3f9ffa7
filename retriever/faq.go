package retriever

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/httpx"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
	"github.com/neuralmind-ai/nsx-chatbot/llm"
	"github.com/neuralmind-ai/nsx-chatbot/metrics"
	"github.com/neuralmind-ai/nsx-chatbot/tokenizer"
)

// FAQ holds the canned answers of one index, questions in file order.
type FAQ struct {
	Questions []string
	Answers   map[string]string
}

// FAQCatalog maps a domain index to its FAQ.
type FAQCatalog map[string]*FAQ

// LoadFAQDir reads every <index>.json in dir. Each file is a JSON object
// {"question": "answer", ...}.
func LoadFAQDir(dir string) (FAQCatalog, error) {
	cat := FAQCatalog{}
	if dir == "" {
		return cat, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errs.E(errs.KindConfig, "load faq", err)
	}
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, errs.E(errs.KindConfig, "load faq", err)
		}
		if !gjson.ValidBytes(raw) {
			return nil, errs.Ef(errs.KindConfig, "load faq", "%s: invalid JSON", f)
		}
		faq := &FAQ{Answers: map[string]string{}}
		gjson.ParseBytes(raw).ForEach(func(q, a gjson.Result) bool {
			faq.Questions = append(faq.Questions, q.String())
			faq.Answers[q.String()] = a.String()
			return true
		})
		cat[strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))] = faq
	}
	return cat, nil
}

// DefaultFAQPrompt has the {queries} and {search_input} placeholders.
const DefaultFAQPrompt = `Você compara pesquisas feitas em um sistema de busca.
Dada a lista de pesquisas abaixo e uma nova pesquisa, verifique se a nova pesquisa pede
a mesma informação que alguma pesquisa da lista. Se pedir, responda apenas com a pesquisa
da lista, exatamente como está escrita. Se não pedir, responda apenas 'irrespondível'.

Lista de pesquisas:
{queries}
Nova pesquisa:
{search_input}

Resposta:
`

// FAQTool matches a query against the canned questions of an index.
// Ranking is done by the score service:
//
//	POST {score endpoint} {"query", "documents": [questions], "language"} -> {"results": [{"score"}]}
//
// and the final choice by a completion call.
type FAQTool struct {
	Catalog         FAQCatalog
	ScoreEndpoint   string
	HTTP            *httpx.Client
	Timeout         time.Duration
	Language        string
	Reasoner        *llm.Reasoner
	Counter         tokenizer.Counter
	Prompt          string
	MaxQuestions    int
	MaxPromptTokens int
}

// Resolve returns ok=false when no FAQ answers the query. Ranking failures
// are logged and reported as ok=false; selection failures propagate.
func (t *FAQTool) Resolve(ctx context.Context, q Query, turn *Turn) (Observation, bool, error) {
	faq := t.Catalog[q.Index]
	if faq == nil || len(faq.Questions) == 0 {
		return Observation{}, false, nil
	}

	stop := turn.Ledger.Start(metrics.StageNSXScore)
	top, err := t.topQuestions(ctx, q.Text, faq)
	stop()
	if err != nil {
		logger.Stream(logger.StreamError).Sugar().Warnw("faq ranking failed", "index", q.Index, "error", err)
		return Observation{}, false, nil
	}

	candidates := t.candidates(q.Text, top, turn.Used)
	if len(candidates) == 0 {
		return Observation{}, false, nil
	}

	prompt := strings.NewReplacer(
		"{queries}", strings.Join(candidates, "\n")+"\n",
		"{search_input}", q.Text,
	).Replace(t.prompt())
	stop = turn.Ledger.Start(metrics.StageFAQSelection)
	choice, err := t.Reasoner.WithModel(turn.Model).Reason(ctx, prompt, []string{"\n"})
	stop()
	if err != nil {
		return Observation{}, false, err
	}

	question, ok := match(choice, candidates)
	if !ok || !turn.Used.Claim(question) {
		return Observation{}, false, nil
	}
	return Observation{Text: faq.Answers[question], Source: SourceFAQ}, true, nil
}

func (t *FAQTool) prompt() string {
	if t.Prompt != "" {
		return t.Prompt
	}
	return DefaultFAQPrompt
}

// topQuestions ranks questions by score, highest first.
func (t *FAQTool) topQuestions(ctx context.Context, query string, faq *FAQ) ([]string, error) {
	resp, err := t.HTTP.Execute(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    t.ScoreEndpoint,
		Body: map[string]any{
			"query":     query,
			"documents": faq.Questions,
			"language":  t.Language,
		},
		Timeout: t.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, errs.Ef(errs.KindSearch, "faq score", "status %d", resp.StatusCode)
	}
	results := resp.JSON().Get("results").Array()
	if len(results) != len(faq.Questions) {
		return nil, errs.Ef(errs.KindSearch, "faq score", "got %d scores for %d questions", len(results), len(faq.Questions))
	}

	type scored struct {
		question string
		score    float64
	}
	ranked := make([]scored, len(results))
	for i, r := range results {
		ranked[i] = scored{question: faq.Questions[i], score: r.Get("score").Float()}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	n := t.MaxQuestions
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = ranked[i].question
	}
	return out, nil
}

// candidates drops used questions and those that would overflow the FAQ
// prompt budget.
func (t *FAQTool) candidates(query string, top []string, used *UsedFAQ) []string {
	size := t.Counter.Count(t.prompt() + query)
	var out []string
	for _, question := range top {
		qs := t.Counter.Count(question)
		if used.Has(question) || (t.MaxPromptTokens > 0 && size+qs >= t.MaxPromptTokens) {
			continue
		}
		out = append(out, question)
		size += qs
	}
	return out
}

// match accepts an exact answer first, then the first candidate contained
// in the answer.
func match(choice string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if choice == c {
			return c, true
		}
	}
	for _, c := range candidates {
		if strings.Contains(choice, c) {
			return c, true
		}
	}
	return "", false
}
