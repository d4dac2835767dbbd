package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vendaflow/agent-core/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedOrg(t *testing.T, st *Store, orgID string) {
	t.Helper()
	err := st.SeedOrganization(context.Background(), model.Organization{ID: orgID, Name: "Test Org"}, model.AgentConfig{
		OrganizationID:      orgID,
		AgentName:           "Lia",
		Model:               "gpt-4o-mini",
		BusinessType:        "medical_clinic",
		QualificationFields: []string{"nome", "motivo da consulta"},
	})
	if err != nil {
		t.Fatalf("seed organization: %v", err)
	}
}

func TestResolveOrCreateConversation(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	first, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "Maria")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !first.Created {
		t.Error("first contact should create the conversation")
	}
	if first.Status != model.StatusOpen {
		t.Errorf("status = %q, want open", first.Status)
	}

	second, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.Created {
		t.Error("second contact should reuse the conversation")
	}
	if second.ID != first.ID {
		t.Errorf("conversation id changed: %q != %q", second.ID, first.ID)
	}
	if second.PushName != "Maria" {
		t.Errorf("push name = %q, want preserved %q", second.PushName, "Maria")
	}
}

func TestResolveOrCreateConversationScopedByOrganization(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	seedOrg(t, st, "org-2")
	ctx := context.Background()

	a, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("org-1 resolve: %v", err)
	}
	b, err := st.ResolveOrCreateConversation(ctx, "org-2", "5511999990000", "")
	if err != nil {
		t.Fatalf("org-2 resolve: %v", err)
	}
	if a.ID == b.ID {
		t.Error("same lead identity in different organizations must map to different conversations")
	}
}

func TestResolveOrCreateConversationConcurrent(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511988887777", "")
			if err != nil {
				t.Errorf("resolve %d: %v", i, err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent first messages created more than one conversation: %q != %q", ids[i], ids[0])
		}
	}
}

func TestTransferredConversationIsReturnedAsIs(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := st.SetConversationStatus(ctx, "org-1", conv.ID, model.StatusTransferred); err != nil {
		t.Fatalf("set status: %v", err)
	}

	again, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.ID != conv.ID {
		t.Errorf("transferred conversation replaced: %q != %q", again.ID, conv.ID)
	}
	if again.Status != model.StatusTransferred {
		t.Errorf("status = %q, want transferred preserved", again.Status)
	}
}

func TestClosedConversationStartsFresh(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := st.SetConversationStatus(ctx, "org-1", conv.ID, model.StatusClosed); err != nil {
		t.Fatalf("close: %v", err)
	}

	fresh, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("resolve after close: %v", err)
	}
	if fresh.ID == conv.ID {
		t.Error("closed conversation must not be reused")
	}
	if !fresh.Created {
		t.Error("message after close should create a new conversation")
	}
}

func TestSetConversationStatusNotFound(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")

	err := st.SetConversationStatus(context.Background(), "org-1", "missing", model.StatusClosed)
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListConversations(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "Maria")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := st.AppendInbound(ctx, conv, model.NormalizedMessage{
		From: "5511999990000", Message: "oi", MessageID: "wamid.1",
	}); err != nil {
		t.Fatalf("append inbound: %v", err)
	}

	list, err := st.ListConversations(ctx, "org-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if list[0].MessageCount != 1 {
		t.Errorf("message count = %d, want 1", list[0].MessageCount)
	}
	if list[0].LastMessagePreview != "oi" {
		t.Errorf("preview = %q, want %q", list[0].LastMessagePreview, "oi")
	}
}
