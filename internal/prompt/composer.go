// Package prompt builds the system prompt for the sales agent. Composition
// is a pure function of the agent configuration and the recent history, so
// identical inputs always produce identical prompts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/vendaflow/agent-core/internal/model"
)

const basePolicy = `Você é %s, assistente de vendas da empresa. Você conversa com leads por mensagem.

Regras de ouro:
- Responda sempre em mensagens curtas, no idioma do lead.
- Nunca invente informações sobre preços, agenda ou produtos; use as ferramentas disponíveis.
- Colete os dados de qualificação um por vez, de forma natural, sem parecer um formulário.
- Registre o lead como contato assim que souber o nome dele.
- Quando o lead pedir para falar com uma pessoa, estiver irritado, ou o assunto fugir da sua alçada, transfira para um atendente humano.
- Nunca prometa retorno em nome de um humano sem transferir a conversa.

Formato:
- Sem markdown, sem listas numeradas longas, sem emojis em excesso.
- Uma pergunta por mensagem.`

const qualificationHeader = "Dados de qualificação a coletar, nesta ordem:"

const handoffRules = `Transferência:
- Use a ferramenta transfer_to_human com um resumo do que o lead precisa.
- Após transferir, não continue a conversa.`

// Compose assembles the system prompt: base policy, vertical overlay,
// qualification flow and a bounded recap of recent history. No I/O and no
// randomness; see composer tests for the determinism property.
func Compose(cfg model.AgentConfig, history []model.Message) string {
	var b strings.Builder

	name := cfg.AgentName
	if name == "" {
		name = "Assistente"
	}
	fmt.Fprintf(&b, basePolicy, name)
	b.WriteString("\n\n")

	b.WriteString(overlayFor(cfg.BusinessType))
	b.WriteString("\n\n")

	if len(cfg.QualificationFields) > 0 {
		b.WriteString(qualificationHeader)
		b.WriteString("\n")
		for i, field := range cfg.QualificationFields {
			fmt.Fprintf(&b, "%d. %s\n", i+1, field)
		}
		b.WriteString("\n")
	}

	b.WriteString(handoffRules)

	if recap := historyRecap(history); recap != "" {
		b.WriteString("\n\nContexto recente da conversa:\n")
		b.WriteString(recap)
	}

	return b.String()
}

// historyRecap summarizes tool activity from the recent history so the model
// does not repeat side effects it already performed (e.g. re-creating a
// contact). Text turns are carried in the chat messages themselves.
func historyRecap(history []model.Message) string {
	var lines []string
	for _, m := range history {
		if m.Direction != model.DirectionTool || m.ToolName == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- ferramenta %s já executada: %s", m.ToolName, firstLine(m.ToolResult)))
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
