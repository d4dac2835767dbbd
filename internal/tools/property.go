package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vendaflow/agent-core/internal/llm"
)

type propertyMatchArgs struct {
	Neighborhood string `json:"neighborhood,omitempty"`
	Bedrooms     int    `json:"bedrooms,omitempty"`
	MaxPrice     int64  `json:"max_price,omitempty"`
}

var propertyMatchDef = llm.ToolDefinition{
	Name:        string(ToolPropertyMatch),
	Description: "Busca imóveis do portfólio que atendem aos critérios do lead. Nunca descreva um imóvel que não veio desta busca.",
	Parameters: objectSchema(nil, map[string]any{
		"neighborhood": stringProp("Bairro desejado"),
		"bedrooms":     integerProp("Número mínimo de quartos"),
		"max_price":    integerProp("Preço máximo em centavos"),
	}),
}

func execPropertyMatch(ctx context.Context, tc Context, rawArgs string) Result {
	var args propertyMatchArgs
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fail("invalid arguments: %v", err)
		}
	}

	matches, err := tc.Store.MatchProperties(ctx, tc.OrganizationID, args.Neighborhood, args.Bedrooms, args.MaxPrice, 5)
	if err != nil {
		return fail("property lookup failed: %v", err)
	}
	if len(matches) == 0 {
		return ok("", "nenhum imóvel encontrado com esses critérios")
	}

	lines := make([]string, len(matches))
	for i, p := range matches {
		lines[i] = fmt.Sprintf("%s (%s, %d quartos, R$ %d,%02d)",
			p.Title, p.Neighborhood, p.Bedrooms, p.Price/100, p.Price%100)
	}

	return ok("", "imóveis encontrados: %s", strings.Join(lines, "; "))
}
