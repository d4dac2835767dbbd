package tools

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vendaflow/agent-core/internal/model"
	"github.com/vendaflow/agent-core/internal/store"
)

type fakeEvents struct {
	mu    sync.Mutex
	items []*model.InboxActionItem
}

func (f *fakeEvents) PublishInboxItem(ctx context.Context, item *model.InboxActionItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	return nil
}

func newToolContext(t *testing.T) (Context, *store.Store, *fakeEvents) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if err := st.SeedOrganization(ctx, model.Organization{ID: "org-1", Name: "Clínica Viva"}, model.AgentConfig{
		OrganizationID: "org-1",
		AgentName:      "Lia",
		BusinessType:   "medical_clinic",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "Maria")
	if err != nil {
		t.Fatalf("resolve conversation: %v", err)
	}

	events := &fakeEvents{}
	return Context{
		OrganizationID: "org-1",
		ConversationID: conv.ID,
		LeadIdentity:   "5511999990000",
		LeadName:       "Maria",
		Store:          st,
		Events:         events,
	}, st, events
}

func TestExecuteUnknownTool(t *testing.T) {
	tc, _, _ := newToolContext(t)
	r := NewRegistry()

	res := r.Execute(context.Background(), tc, Name("delete_database"), `{}`)
	if !res.IsError {
		t.Error("unknown tool must come back as an error result")
	}
}

func TestExecuteMalformedArguments(t *testing.T) {
	tc, _, _ := newToolContext(t)
	r := NewRegistry()

	res := r.Execute(context.Background(), tc, ToolCreateContact, `{"name":`)
	if !res.IsError {
		t.Error("malformed arguments must come back as an error result, not a panic")
	}
}

func TestCreateContactIdempotent(t *testing.T) {
	tc, st, _ := newToolContext(t)
	r := NewRegistry()
	ctx := context.Background()

	first := r.Execute(ctx, tc, ToolCreateContact, `{"name":"Maria Silva"}`)
	if first.IsError {
		t.Fatalf("first call failed: %s", first.Content)
	}
	if first.EntityID == "" {
		t.Fatal("first call returned no entity id")
	}

	// Replay: phone defaults to the lead identity, so the same contact is
	// reused.
	second := r.Execute(ctx, tc, ToolCreateContact, `{"name":"Maria Silva"}`)
	if second.IsError {
		t.Fatalf("replay failed: %s", second.Content)
	}
	if second.EntityID != first.EntityID {
		t.Errorf("replay created a second contact: %q != %q", second.EntityID, first.EntityID)
	}

	contact, err := st.FindContactByPhone(ctx, "org-1", "5511999990000")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if contact == nil || contact.Name != "Maria Silva" {
		t.Errorf("contact = %+v", contact)
	}
}

func TestCreateContactRequiresName(t *testing.T) {
	tc, _, _ := newToolContext(t)
	r := NewRegistry()

	res := r.Execute(context.Background(), tc, ToolCreateContact, `{}`)
	if !res.IsError {
		t.Error("missing name must fail")
	}
}

func TestCreateAndMoveDeal(t *testing.T) {
	tc, st, _ := newToolContext(t)
	r := NewRegistry()
	ctx := context.Background()

	created := r.Execute(ctx, tc, ToolCreateDeal, `{"title":"Consulta inicial"}`)
	if created.IsError {
		t.Fatalf("create deal: %s", created.Content)
	}

	// Same title again reuses the open deal.
	again := r.Execute(ctx, tc, ToolCreateDeal, `{"title":"Consulta inicial"}`)
	if again.IsError {
		t.Fatalf("create deal replay: %s", again.Content)
	}
	if again.EntityID != created.EntityID {
		t.Errorf("replay created a second deal: %q != %q", again.EntityID, created.EntityID)
	}

	moved := r.Execute(ctx, tc, ToolMoveDeal, `{"stage":"Qualificado"}`)
	if moved.IsError {
		t.Fatalf("move deal: %s", moved.Content)
	}

	contact, err := st.FindContactByPhone(ctx, "org-1", "5511999990000")
	if err != nil || contact == nil {
		t.Fatalf("contact lookup: %v", err)
	}
	deal, err := st.FindOpenDeal(ctx, "org-1", contact.ID, "")
	if err != nil || deal == nil {
		t.Fatalf("deal lookup: %v", err)
	}
	board, stages, err := st.DefaultBoard(ctx, "org-1")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	_ = board
	var qualified string
	for _, s := range stages {
		if s.Name == "Qualificado" {
			qualified = s.ID
		}
	}
	if deal.StageID != qualified {
		t.Errorf("deal stage = %q, want Qualificado (%q)", deal.StageID, qualified)
	}
}

func TestMoveDealUnknownStage(t *testing.T) {
	tc, _, _ := newToolContext(t)
	r := NewRegistry()
	ctx := context.Background()

	if res := r.Execute(ctx, tc, ToolCreateDeal, `{"title":"Consulta"}`); res.IsError {
		t.Fatalf("create deal: %s", res.Content)
	}
	res := r.Execute(ctx, tc, ToolMoveDeal, `{"stage":"Inexistente"}`)
	if !res.IsError {
		t.Error("unknown stage must fail with the valid stage names")
	}
}

func TestQualifyLead(t *testing.T) {
	tc, st, _ := newToolContext(t)
	r := NewRegistry()
	ctx := context.Background()

	if res := r.Execute(ctx, tc, ToolCreateContact, `{"name":"Maria"}`); res.IsError {
		t.Fatalf("create contact: %s", res.Content)
	}

	res := r.Execute(ctx, tc, ToolQualifyLead, `{"answers":{"motivo":"consulta de rotina"}}`)
	if res.IsError {
		t.Fatalf("qualify: %s", res.Content)
	}

	contact, err := st.FindContactByPhone(ctx, "org-1", "5511999990000")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if contact.Qualification["motivo"] != "consulta de rotina" {
		t.Errorf("qualification = %v", contact.Qualification)
	}
}

func TestTransferToHuman(t *testing.T) {
	tc, st, events := newToolContext(t)
	r := NewRegistry()
	ctx := context.Background()

	res := r.Execute(ctx, tc, ToolTransferToHuman, `{"reason":"lead pediu atendente","summary":"quer renegociar o plano"}`)
	if res.IsError {
		t.Fatalf("transfer: %s", res.Content)
	}

	conv, err := st.GetConversation(ctx, "org-1", tc.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.Status != model.StatusTransferred {
		t.Errorf("status = %q, want transferred", conv.Status)
	}

	if len(events.items) != 1 {
		t.Fatalf("inbox items = %d, want 1", len(events.items))
	}
	if events.items[0].Kind != "handoff" {
		t.Errorf("item kind = %q", events.items[0].Kind)
	}
	if events.items[0].Detail != "quer renegociar o plano" {
		t.Errorf("item detail = %q", events.items[0].Detail)
	}

	// Replay is a no-op.
	if res := r.Execute(ctx, tc, ToolTransferToHuman, `{"reason":"de novo"}`); res.IsError {
		t.Errorf("replayed transfer failed: %s", res.Content)
	}
}

func TestDefinitionsPerVertical(t *testing.T) {
	r := NewRegistry()

	generic := r.Definitions("medical_clinic")
	for _, def := range generic {
		if def.Name == string(ToolPropertyMatch) {
			t.Error("property_match offered outside real_estate")
		}
	}

	var found bool
	for _, def := range r.Definitions("real_estate") {
		if def.Name == string(ToolPropertyMatch) {
			found = true
		}
	}
	if !found {
		t.Error("property_match missing for real_estate")
	}
}
