package main

import (
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Corpus maps an index name to its paragraphs.
type Corpus map[string][]string

var defaultCorpus = Corpus{
	"demo": {
		"O prazo de inscrição termina em 30 de novembro.",
		"A taxa de inscrição é de R$ 120,00 e pode ser paga por boleto.",
		"Candidatos com deficiência têm direito a atendimento especial.",
	},
}

func loadCorpus(path string) (Corpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Corpus
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return c, nil
}

func newRouter(c Corpus) http.Handler {
	r := chi.NewRouter()
	r.Get("/search", c.search)
	r.Post("/score", score)
	r.Post("/multidocqa", multidocQA)
	r.Post("/completion", completion)
	r.Post("/moderation", moderation)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// overlap counts the lowercase words of q that appear in text.
func overlap(q, text string) int {
	text = strings.ToLower(text)
	n := 0
	for _, w := range strings.Fields(strings.ToLower(q)) {
		if len(w) > 2 && strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func (c Corpus) search(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "APIKey invalid" {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
		return
	}
	q := r.URL.Query()
	paras, ok := c[q.Get("index")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "index not found"})
		return
	}
	limit, err := strconv.Atoi(q.Get("max_docs_to_return"))
	if err != nil || limit <= 0 {
		limit = 5
	}

	type hit struct {
		text  string
		score int
	}
	var hits []hit
	for _, p := range paras {
		if s := overlap(q.Get("query"), p); s > 0 {
			hits = append(hits, hit{p, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	docs := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, map[string]any{"paragraphs": []string{h.text}})
	}

	field := "response_reranker"
	if q.Get("return_reference") == "1" {
		field = "response_reference"
	}
	writeJSON(w, http.StatusOK, map[string]any{field: docs})
}

func readBody(w http.ResponseWriter, r *http.Request) (gjson.Result, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(raw), true
}

func score(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	query := body.Get("query").String()
	results := []map[string]float64{}
	for _, d := range body.Get("documents").Array() {
		results = append(results, map[string]float64{"score": float64(overlap(query, d.String()))})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func multidocQA(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	answer := "Não é possível responder"
	if docs := body.Get("documents.#.paragraphs").Array(); len(docs) > 0 {
		answer = docs[0].String()
	}
	writeJSON(w, http.StatusOK, map[string]string{"pred_answer": answer})
}

var stepLabel = regexp.MustCompile(`(?m)^Pensamento (\d+):\s*$`)

// completion finishes at once, answering with the user's message echoed
// back. Prompts that end in "Pensamento N:" get an "Ação N:" line.
func completion(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	msgs := body.Get("prompt").Array()
	last := ""
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1].Get("content").String()
	}
	question := ""
	for _, line := range strings.Split(last, "\n") {
		for _, label := range []string{"Mensagem:", "Pergunta:"} {
			if strings.HasPrefix(line, label) {
				question = strings.TrimSpace(strings.TrimPrefix(line, label))
			}
		}
	}
	text := "Resposta simulada: " + question
	if m := stepLabel.FindAllStringSubmatch(last, -1); len(m) > 0 {
		text = " Eu sei a resposta.\nAção " + m[len(m)-1][1] + ": Finalizar[" + text + "]"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":          text,
		"finish_reason": "stop",
		"tokens_usage":  map[string]int{"total_tokens": len(strings.Fields(last)) + len(strings.Fields(text))},
	})
}

func moderation(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	results := []map[string]bool{}
	for _, in := range body.Get("input").Array() {
		results = append(results, map[string]bool{"flagged": strings.Contains(strings.ToLower(in.String()), "bomba")})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
