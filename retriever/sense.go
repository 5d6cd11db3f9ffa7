package retriever

import (
	"context"
	"net/http"
	"time"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/httpx"
)

// SenseTool runs the same retrieval as NSXSearch and asks the multi-document
// QA service to answer from the passages:
//
//	POST {endpoint} {"query", "documents": [{"paragraphs"}], "language", "index"}
//
// and reads pred_answer.
type SenseTool struct {
	Search    *NSXSearch
	Endpoint  string
	HTTP      *httpx.Client
	Language  string
	Timeout   time.Duration
	QATimeout time.Duration
	Sentinels Sentinels
}

func (t *SenseTool) Resolve(ctx context.Context, q Query) (Observation, error) {
	paras, err := t.Search.paragraphs(ctx, q, t.Timeout)
	if err != nil {
		return Observation{}, err
	}
	if len(paras) == 0 {
		return t.sentinel(q.SearchesLeft), nil
	}
	docs := make([]map[string]string, 0, len(paras))
	for _, p := range paras {
		docs = append(docs, map[string]string{"paragraphs": p})
	}

	resp, err := t.HTTP.Execute(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    t.Endpoint,
		Body: map[string]any{
			"query":     q.Text,
			"documents": docs,
			"language":  t.Language,
			"index":     q.Index,
		},
		Timeout: t.QATimeout,
	})
	if err != nil {
		if errs.IsTimeout(err) {
			return Observation{}, err
		}
		return Observation{}, errs.E(errs.KindSynthesis, "multidoc qa", err)
	}
	if !resp.OK() {
		if detail := resp.JSON().Get("detail"); detail.Exists() {
			return Observation{}, errs.Ef(errs.KindSynthesis, "multidoc qa", "%s", detail.String())
		}
		return Observation{}, errs.Ef(errs.KindSynthesis, "multidoc qa", "%s, status: %d", string(resp.Body), resp.StatusCode)
	}

	answer := resp.JSON().Get("pred_answer").String()
	if containsFold(answer, UnanswerableMarker) {
		return t.sentinel(q.SearchesLeft), nil
	}
	return Observation{Text: answer, Source: SourceSense}, nil
}

func (t *SenseTool) sentinel(searchesLeft int) Observation {
	obs := t.Sentinels.For(searchesLeft)
	obs.Source = SourceSense
	return obs
}
