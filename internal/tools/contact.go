package tools

import (
	"context"
	"encoding/json"

	"github.com/vendaflow/agent-core/internal/llm"
	"github.com/vendaflow/agent-core/internal/model"
)

type createContactArgs struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

var createContactDef = llm.ToolDefinition{
	Name:        string(ToolCreateContact),
	Description: "Registra o lead desta conversa como contato no CRM. Reaproveita o contato existente se já houver um com o mesmo telefone.",
	Parameters: objectSchema([]string{"name"}, map[string]any{
		"name":  stringProp("Nome do lead"),
		"phone": stringProp("Telefone; por padrão usa a identidade do canal desta conversa"),
		"email": stringProp("E-mail, se informado pelo lead"),
	}),
}

func execCreateContact(ctx context.Context, tc Context, rawArgs string) Result {
	var args createContactArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return fail("invalid arguments: %v", err)
	}
	if args.Name == "" {
		return fail("name is required")
	}

	phone := args.Phone
	if phone == "" {
		phone = tc.LeadIdentity
	}

	// Replay of the same turn must not create a duplicate: the contact is
	// keyed on (organization, phone) and reused when already present.
	existing, err := tc.Store.FindContactByPhone(ctx, tc.OrganizationID, phone)
	if err != nil {
		return fail("contact lookup failed: %v", err)
	}
	if existing != nil {
		return ok(existing.ID, "contato já cadastrado: %s (id %s)", existing.Name, existing.ID)
	}

	contact := &model.Contact{
		OrganizationID: tc.OrganizationID,
		ConversationID: tc.ConversationID,
		Name:           args.Name,
		Phone:          phone,
		Email:          args.Email,
	}
	if err := tc.Store.UpsertContact(ctx, contact); err != nil {
		return fail("failed to create contact: %v", err)
	}

	return ok(contact.ID, "contato criado: %s (id %s)", contact.Name, contact.ID)
}
