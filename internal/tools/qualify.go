package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vendaflow/agent-core/internal/llm"
)

type qualifyLeadArgs struct {
	Answers map[string]string `json:"answers"`
}

var qualifyLeadDef = llm.ToolDefinition{
	Name:        string(ToolQualifyLead),
	Description: "Registra respostas de qualificação do lead (ex: nome, convênio, especialidade). Chame sempre que o lead responder um dado de qualificação.",
	Parameters: objectSchema([]string{"answers"}, map[string]any{
		"answers": map[string]any{
			"type":                 "object",
			"description":          "Mapa campo -> resposta do lead",
			"additionalProperties": map[string]any{"type": "string"},
		},
	}),
}

func execQualifyLead(ctx context.Context, tc Context, rawArgs string) Result {
	var args qualifyLeadArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return fail("invalid arguments: %v", err)
	}
	if len(args.Answers) == 0 {
		return fail("answers is required")
	}

	contact, err := leadContact(ctx, tc)
	if err != nil {
		return fail("contact lookup failed: %v", err)
	}

	merged, err := tc.Store.MergeQualification(ctx, tc.OrganizationID, contact.ID, args.Answers)
	if err != nil {
		return fail("failed to record qualification: %v", err)
	}

	fields := make([]string, 0, len(merged))
	for k, v := range merged {
		fields = append(fields, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(fields)

	return ok(contact.ID, "qualificação registrada: %s", strings.Join(fields, ", "))
}
