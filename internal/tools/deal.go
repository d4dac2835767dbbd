package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vendaflow/agent-core/internal/llm"
	"github.com/vendaflow/agent-core/internal/model"
	"github.com/vendaflow/agent-core/internal/store"
)

type createDealArgs struct {
	Title  string `json:"title"`
	Amount int64  `json:"amount,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

var createDealDef = llm.ToolDefinition{
	Name:        string(ToolCreateDeal),
	Description: "Cria uma oportunidade no funil de vendas para o contato desta conversa. Reaproveita a oportunidade aberta se já existir uma com o mesmo título.",
	Parameters: objectSchema([]string{"title"}, map[string]any{
		"title":  stringProp("Título da oportunidade, ex: 'Consulta cardiologia'"),
		"amount": integerProp("Valor estimado em centavos, se conhecido"),
		"stage":  stringProp("Etapa inicial do funil; por padrão a primeira"),
	}),
}

func execCreateDeal(ctx context.Context, tc Context, rawArgs string) Result {
	var args createDealArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return fail("invalid arguments: %v", err)
	}
	if args.Title == "" {
		return fail("title is required")
	}

	contact, err := leadContact(ctx, tc)
	if err != nil {
		return fail("contact lookup failed: %v", err)
	}

	// Same-turn replay: an open deal with this title for this contact is
	// the deal this call meant to create.
	existing, err := tc.Store.FindOpenDeal(ctx, tc.OrganizationID, contact.ID, args.Title)
	if err != nil {
		return fail("deal lookup failed: %v", err)
	}
	if existing != nil {
		return ok(existing.ID, "oportunidade já existe: %s (id %s)", existing.Title, existing.ID)
	}

	board, stages, err := tc.Store.DefaultBoard(ctx, tc.OrganizationID)
	if err != nil {
		return fail("board lookup failed: %v", err)
	}

	stage := stages[0]
	if args.Stage != "" {
		found, err := tc.Store.StageByName(ctx, board.ID, args.Stage)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return fail("stage lookup failed: %v", err)
			}
			return fail("unknown stage %q; available: %s", args.Stage, stageNames(stages))
		}
		stage = *found
	}

	deal := &model.Deal{
		OrganizationID: tc.OrganizationID,
		ContactID:      contact.ID,
		BoardID:        board.ID,
		StageID:        stage.ID,
		Title:          args.Title,
		Amount:         args.Amount,
	}
	if err := tc.Store.CreateDeal(ctx, deal); err != nil {
		return fail("failed to create deal: %v", err)
	}

	return ok(deal.ID, "oportunidade criada: %s na etapa %s (id %s)", deal.Title, stage.Name, deal.ID)
}

type moveDealArgs struct {
	DealID string `json:"deal_id,omitempty"`
	Title  string `json:"title,omitempty"`
	Stage  string `json:"stage"`
}

var moveDealDef = llm.ToolDefinition{
	Name:        string(ToolMoveDeal),
	Description: "Move uma oportunidade do contato desta conversa para outra etapa do funil.",
	Parameters: objectSchema([]string{"stage"}, map[string]any{
		"deal_id": stringProp("ID da oportunidade; se omitido, usa a oportunidade aberta mais recente do contato"),
		"title":   stringProp("Título da oportunidade, para desambiguar sem o ID"),
		"stage":   stringProp("Nome da etapa de destino"),
	}),
}

func execMoveDeal(ctx context.Context, tc Context, rawArgs string) Result {
	var args moveDealArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return fail("invalid arguments: %v", err)
	}
	if args.Stage == "" {
		return fail("stage is required")
	}

	contact, err := leadContact(ctx, tc)
	if err != nil {
		return fail("contact lookup failed: %v", err)
	}

	deal, err := tc.Store.FindOpenDeal(ctx, tc.OrganizationID, contact.ID, args.Title)
	if err != nil {
		return fail("deal lookup failed: %v", err)
	}
	if deal == nil {
		return fail("no open deal found for this contact")
	}
	if args.DealID != "" && deal.ID != args.DealID {
		return fail("deal %s does not belong to this conversation's contact", args.DealID)
	}

	stage, err := tc.Store.StageByName(ctx, deal.BoardID, args.Stage)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("unknown stage %q", args.Stage)
		}
		return fail("stage lookup failed: %v", err)
	}

	if err := tc.Store.MoveDeal(ctx, tc.OrganizationID, deal.ID, stage.ID); err != nil {
		return fail("failed to move deal: %v", err)
	}

	return ok(deal.ID, "oportunidade %s movida para %s", deal.Title, stage.Name)
}

// leadContact resolves the CRM contact for this conversation's lead,
// creating a minimal record when the lead was never registered (the model
// usually calls create_contact first, but tools must not depend on it).
func leadContact(ctx context.Context, tc Context) (*model.Contact, error) {
	contact, err := tc.Store.FindContactByPhone(ctx, tc.OrganizationID, tc.LeadIdentity)
	if err != nil {
		return nil, err
	}
	if contact != nil {
		return contact, nil
	}

	name := tc.LeadName
	if name == "" {
		name = tc.LeadIdentity
	}
	contact = &model.Contact{
		OrganizationID: tc.OrganizationID,
		ConversationID: tc.ConversationID,
		Name:           name,
		Phone:          tc.LeadIdentity,
	}
	if err := tc.Store.UpsertContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func stageNames(stages []model.BoardStage) string {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name
	}
	return strings.Join(names, ", ")
}
