package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vendaflow/agent-core/internal/llm"
)

type checkAvailabilityArgs struct {
	From string `json:"from,omitempty"`
}

var checkAvailabilityDef = llm.ToolDefinition{
	Name:        string(ToolCheckAvailability),
	Description: "Consulta os próximos horários livres na agenda. Use antes de sugerir qualquer horário ao lead.",
	Parameters: objectSchema(nil, map[string]any{
		"from": stringProp("Data mínima no formato 2006-01-02; por padrão, agora"),
	}),
}

func execCheckAvailability(ctx context.Context, tc Context, rawArgs string) Result {
	var args checkAvailabilityArgs
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fail("invalid arguments: %v", err)
		}
	}

	from := time.Now().UTC()
	if args.From != "" {
		parsed, err := time.Parse("2006-01-02", args.From)
		if err != nil {
			return fail("invalid from date %q, expected 2006-01-02", args.From)
		}
		from = parsed
	}

	slots, err := tc.Store.OpenSlots(ctx, tc.OrganizationID, from, 5)
	if err != nil {
		return fail("availability lookup failed: %v", err)
	}
	if len(slots) == 0 {
		return ok("", "nenhum horário livre a partir de %s", from.Format("02/01/2006"))
	}

	lines := make([]string, len(slots))
	for i, slot := range slots {
		lines[i] = fmt.Sprintf("%s às %s", slot.StartsAt.Format("02/01/2006"), slot.StartsAt.Format("15:04"))
	}

	return ok("", "horários livres: %s", strings.Join(lines, "; "))
}
