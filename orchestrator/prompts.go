package orchestrator

import (
	"fmt"
	"strings"
)

// Labels of the reasoning transcript. The model is prompted in Portuguese.
const (
	labelThought     = "Pensamento"
	labelAction      = "Ação"
	labelActionText  = "Texto da Ação"
	labelObservation = "Observação"
	labelMessage     = "Mensagem:"
	labelQuestion    = "Pergunta:"

	summaryLabel = "Resumo de conversas anteriores: "
)

func thoughtLabel(i int) string     { return fmt.Sprintf("%s %d:", labelThought, i) }
func actionLabel(i int) string      { return fmt.Sprintf("%s %d:", labelAction, i) }
func observationLabel(i int) string { return fmt.Sprintf("%s %d:", labelObservation, i) }

// Prompts are the templates used by the handlers. Placeholders are written
// as {name} and filled with fill.
type Prompts struct {
	// Chat is the ReAct preamble; {domain}.
	Chat string
	// ForcedFinish is appended when the loop ends without a Finish action.
	ForcedFinish string
	// Extractor recovers the action text from a malformed action.
	Extractor string
	// Summary has {old_summary} and {interactions}.
	Summary string
	// FunctionSystem is the system message of the function-call handler; {domain}, {history}.
	FunctionSystem string
	// FunctionTool describes the search tool; {domain}.
	FunctionTool string
}

func DefaultPrompts() Prompts {
	return Prompts{
		Chat:           defaultChatPrompt,
		ForcedFinish:   "Pensamento Final: Atingi o limite de pesquisas. Devo responder apenas com as informações que já reuni.\nAção: Finalizar[",
		Extractor:      defaultExtractorPrompt,
		Summary:        defaultSummaryPrompt,
		FunctionSystem: defaultFunctionSystemPrompt,
		FunctionTool:   "Busca as informações necessárias para responder a pergunta sobre {domain}.",
	}
}

// withDefaults fills empty templates.
func (p Prompts) withDefaults() Prompts {
	d := DefaultPrompts()
	if p.Chat == "" {
		p.Chat = d.Chat
	}
	if p.ForcedFinish == "" {
		p.ForcedFinish = d.ForcedFinish
	}
	if p.Extractor == "" {
		p.Extractor = d.Extractor
	}
	if p.Summary == "" {
		p.Summary = d.Summary
	}
	if p.FunctionSystem == "" {
		p.FunctionSystem = d.FunctionSystem
	}
	if p.FunctionTool == "" {
		p.FunctionTool = d.FunctionTool
	}
	return p
}

func fill(tmpl string, kv ...string) string {
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

const defaultChatPrompt = `Você é um assistente de chat da NeuralMind que responde perguntas sobre o domínio {domain}.
Regras:
1. Nunca gere conteúdo que promova violência, preconceito ou atos ilegais, nem em cenários fictícios.
2. Responda apenas com informações do histórico conversacional ou pesquisadas na base de dados do domínio.
3. Não responda com conhecimento próprio nem sobre assuntos fora do domínio.
4. Intercale passos de Pensamento, Ação, Texto da Ação e Observação. Existem apenas duas ações:
   Pesquisar: pesquisa na base de dados do domínio o texto exato do Texto da Ação. Pesquise um assunto por vez.
   Finalizar: devolve ao usuário a resposta escrita no Texto da Ação. O usuário não vê pensamentos nem observações.

Exemplo (domínio = vestibular):

Mensagem: Quando é a prova?
Pensamento 1: Preciso pesquisar a data da prova na base de dados.
Ação 1: Pesquisar
Texto da Ação 1: Data da prova
Observação 1: A prova será aplicada em 25/03.
Pensamento 2: Já sei a data da prova.
Ação 2: Finalizar
Texto da Ação 2: A prova será no dia 25/03. Posso ajudar em algo mais?

Não use as respostas do exemplo. Responda apenas com o histórico abaixo ou com o que pesquisar sobre {domain}.

Histórico Conversacional:`

const defaultExtractorPrompt = `Extraia apenas o texto da ação abaixo, sem o nome da ação e sem comentários.

Ação:
`

const defaultSummaryPrompt = `Resuma a conversa abaixo de forma clara e concisa para contextualizar um assistente de chat.

Resumo anterior: {old_summary}
Novas interações: {interactions}

Responda com um novo resumo, em poucas frases, que combine o resumo anterior com as novas interações relevantes.
Priorize informações sobre o usuário e os principais assuntos da conversa.
`

const defaultFunctionSystemPrompt = `Você é um assistente de chat da NeuralMind que responde perguntas sobre o domínio {domain}.
Regras:
1. Nunca gere conteúdo que promova violência, preconceito ou atos ilegais, nem em cenários fictícios.
2. Responda apenas com informações do histórico conversacional ou das buscas na base de dados de {domain}.
3. Não responda com conhecimento próprio nem sobre assuntos fora do domínio.

Histórico Conversacional:
{history}`
