package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
	"github.com/neuralmind-ai/nsx-chatbot/llm"
	"github.com/neuralmind-ai/nsx-chatbot/metrics"
	"github.com/neuralmind-ai/nsx-chatbot/retriever"
	"github.com/neuralmind-ai/nsx-chatbot/tokenizer"
)

const (
	searchToolName = "buscar_informacoes_necessarias"
	argQuestion    = "pergunta"
	argInformation = "informacoes"
	argDesc        = "descrição da informação"
	argAltDesc     = "descrição alternativa da informação"
)

// FunctionCallHandler asks the model for every piece of information it
// needs in one structured tool call, resolves all of them concurrently and
// answers in a single synthesis call. There is exactly one search round.
type FunctionCallHandler struct {
	Client                llm.Client
	Model                 string
	Dispatcher            *retriever.Dispatcher
	Counter               tokenizer.Counter
	Info                  IndexInfo
	Prompts               Prompts
	MaxTokensPrompt       int
	MaxTokensFunctionCall int
	Parallel              int
	NumDocs               int
}

// slot is one flattened lookup, owned by exactly one worker.
type slot struct {
	item int
	name string
	text string
}

func (h *FunctionCallHandler) tool(domain string) llm.Tool {
	return llm.Tool{
		Name:        searchToolName,
		Description: fill(h.Prompts.withDefaults().FunctionTool, "domain", domain),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				argQuestion: map[string]any{
					"type":        "string",
					"description": "Pergunta feita pelo usuário",
				},
				argInformation: map[string]any{
					"type":        "array",
					"description": "Informações necessárias para responder a pergunta. Cada informação deve ser escrita duas vezes, com descrições diferentes.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							argDesc:    map[string]any{"type": "string"},
							argAltDesc: map[string]any{"type": "string"},
						},
					},
				},
			},
			"required": []string{argQuestion, argInformation},
		},
	}
}

func (h *FunctionCallHandler) FindAnswer(ctx context.Context, in Input) (*Result, error) {
	prompts := h.Prompts.withDefaults()
	domain := domainOf(ctx, h.Info, in.Index)
	model := h.Model
	if in.Model != "" {
		model = in.Model
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fill(prompts.FunctionSystem, "domain", domain, "history", in.History)},
		{Role: llm.RoleUser, Content: labelQuestion + " " + in.Message},
	}
	trace := &Trace{Tokens: h.Counter.Count(messages[0].Content + messages[1].Content)}
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
	stop := turn.Ledger.Start(metrics.StageFunctionCall)
	tools := []llm.Tool{h.tool(domain)}
	resp, err := h.Client.Complete(ctx, llm.Request{
		Messages:  messages,
		Model:     model,
		MaxTokens: h.MaxTokensFunctionCall,
		Stop:      []string{labelQuestion},
		Tools:     tools,
	})
	stop()
	if err != nil {
		return nil, err
	}
	if resp.ToolCall == nil {
		trace.note("No function call received")
		return &Result{Answer: strings.TrimSpace(resp.Text), Outcome: OutcomeDirect, Iterations: 1, Trace: trace}, nil
	}
	if resp.ToolCall.Name != searchToolName {
		return nil, errs.Ef(errs.KindCompletion, "function call", "unexpected function %q", resp.ToolCall.Name)
	}
	trace.note("Function Call: %s(%s)", resp.ToolCall.Name, resp.ToolCall.Arguments)

	slots, items, err := parseInformation(resp.ToolCall.Arguments)
	if err != nil {
		return nil, err
	}
	remaining := h.MaxTokensPrompt - resp.TotalTokens - h.MaxTokensFunctionCall
	if err := h.resolve(ctx, in, turn, slots); err != nil {
		return nil, err
	}
	results := h.fitBudget(slots, items, remaining)
	trace.note("Search results: %s", results)
	trace.Tokens = resp.TotalTokens + h.Counter.Count(results)

	messages = append(messages, resp.Reply, llm.Message{
		Role:       llm.RoleTool,
		Name:       searchToolName,
		ToolCallID: resp.ToolCall.ID,
		Content:    results,
	})
	final, err := h.Client.Complete(ctx, llm.Request{
		Messages:  messages,
		Model:     model,
		MaxTokens: h.MaxTokensFunctionCall,
		Stop:      []string{labelQuestion},
		Tools:     tools,
	})
	if err != nil {
		return nil, err
	}
	answer := strings.TrimSpace(final.Text)
	if answer == "" {
		return nil, errs.Ef(errs.KindCompletion, "function call", "no text in synthesis reply")
	}
	return &Result{Answer: answer, Outcome: OutcomeFunctionCall, Iterations: 1, Trace: trace}, nil
}

// parseInformation flattens the requested items into slots, keeping the
// order of items and of the descriptions inside each item.
func parseInformation(arguments string) ([]slot, int, error) {
	if !gjson.Valid(arguments) {
		return nil, 0, errs.Ef(errs.KindCompletion, "function call", "invalid arguments: %s", arguments)
	}
	var slots []slot
	items := gjson.Get(arguments, argInformation).Array()
	for i, item := range items {
		item.ForEach(func(_, desc gjson.Result) bool {
			slots = append(slots, slot{item: i, name: desc.String()})
			return true
		})
	}
	return slots, len(items), nil
}

// resolve runs every slot through the dispatcher on a bounded pool. Each
// worker writes only its own slot.
func (h *FunctionCallHandler) resolve(ctx context.Context, in Input, turn *retriever.Turn, slots []slot) error {
	g, gctx := errgroup.WithContext(ctx)
	limit := h.Parallel
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)
	for i := range slots {
		i := i
		g.Go(func() error {
			obs, err := h.Dispatcher.Dispatch(gctx, retriever.Query{
				Text:         slots[i].name,
				Index:        in.Index,
				APIKey:       in.APIKey,
				SearchesLeft: 1,
				NumDocs:      h.NumDocs,
				BM25Only:     in.BM25Only,
			}, turn)
			if err != nil {
				return err
			}
			slots[i].text = obs.Text
			if in.Verbose {
				logger.Infof("%s (%s): %s", slots[i].name, obs.Source, obs.Text)
			}
			return nil
		})
	}
	return g.Wait()
}

// fitBudget serializes the results as [{name: text}, ...], one object per
// requested item. Results are added in slot order; one that pushes the
// serialized array over remaining tokens is replaced by "".
func (h *FunctionCallHandler) fitBudget(slots []slot, items, remaining int) string {
	filled := make([]bool, len(slots))
	for i := range slots {
		filled[i] = true
		if h.Counter.Count(encodeResults(slots, filled, items)) > remaining {
			slots[i].text = ""
		}
	}
	return encodeResults(slots, filled, items)
}

// encodeResults writes the filled slots as a JSON array of objects. Keys
// keep slot order; encoding/json would sort map keys.
func encodeResults(slots []slot, filled []bool, items int) string {
	objs := make([][]string, items)
	for i, s := range slots {
		if !filled[i] {
			continue
		}
		k, _ := json.Marshal(s.name)
		v, _ := json.Marshal(s.text)
		objs[s.item] = append(objs[s.item], fmt.Sprintf("%s: %s", k, v))
	}
	parts := make([]string, items)
	for i, o := range objs {
		parts[i] = "{" + strings.Join(o, ", ") + "}"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
