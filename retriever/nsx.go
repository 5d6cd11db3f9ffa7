package retriever

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/httpx"
)

// NSXSearch queries the ranked search service.
//
//	GET {endpoint}?index=&query=&max_docs_to_return=&format_response=false
//	Authorization: APIKey <key>
//
// The reply lists documents under response_reranker, or response_reference
// in BM25-only mode; each document has a paragraphs array.
type NSXSearch struct {
	Endpoint        string
	HTTP            *httpx.Client
	Timeout         time.Duration
	MaxDocsToReturn int
	NumDocs         int
	Sentinels       Sentinels
}

// paragraphs returns the first paragraph of every ranked document.
func (s *NSXSearch) paragraphs(ctx context.Context, q Query, timeout time.Duration) ([]string, error) {
	maxDocs := s.MaxDocsToReturn
	if maxDocs <= 0 {
		maxDocs = 5
	}
	params := url.Values{}
	params.Set("index", q.Index)
	params.Set("query", q.Text)
	params.Set("max_docs_to_return", strconv.Itoa(maxDocs))
	params.Set("format_response", "false")
	if q.BM25Only {
		params.Set("return_reference", "1")
		params.Set("neural_ranking", "false")
	}

	resp, err := s.HTTP.Execute(ctx, httpx.Request{
		Method:  http.MethodGet,
		URL:     s.Endpoint,
		Params:  params,
		Headers: map[string]string{"Authorization": "APIKey " + q.APIKey},
		Timeout: timeout,
	})
	if err != nil {
		if errs.IsTimeout(err) {
			return nil, err
		}
		return nil, errs.E(errs.KindSearch, "nsx search", err)
	}
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, errs.Ef(errs.KindAuth, "nsx search", "invalid API key")
	case !resp.OK():
		msg := resp.JSON().Get("message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body))
		}
		return nil, errs.Ef(errs.KindSearch, "nsx search", "status %d: %s", resp.StatusCode, msg)
	}

	field := "response_reranker"
	if q.BM25Only {
		field = "response_reference"
	}
	docs := resp.JSON().Get(field).Array()
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Get("paragraphs.0").String())
	}
	return out, nil
}

// Resolve concatenates the top documents, newline separated.
func (s *NSXSearch) Resolve(ctx context.Context, q Query) (Observation, error) {
	paras, err := s.paragraphs(ctx, q, s.Timeout)
	if err != nil {
		return Observation{}, err
	}
	if len(paras) == 0 {
		obs := s.Sentinels.For(q.SearchesLeft)
		obs.Source = SourceNSX
		return obs, nil
	}
	n := q.NumDocs
	if n <= 0 {
		n = s.NumDocs
	}
	if n <= 0 {
		n = 1
	}
	if n > len(paras) {
		n = len(paras)
	}
	var b strings.Builder
	for _, p := range paras[:n] {
		fmt.Fprintf(&b, "%s\n", p)
	}
	return Observation{Text: strings.TrimSpace(b.String()), Source: SourceNSX}, nil
}
