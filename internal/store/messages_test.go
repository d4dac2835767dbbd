package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vendaflow/agent-core/internal/model"
)

func TestAppendInboundDedup(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	nm := model.NormalizedMessage{From: "5511999990000", Message: "quero agendar uma consulta", MessageID: "wamid.abc"}
	if _, err := st.AppendInbound(ctx, conv, nm); err != nil {
		t.Fatalf("first append: %v", err)
	}

	_, err = st.AppendInbound(ctx, conv, nm)
	if !errors.Is(err, ErrDuplicateDelivery) {
		t.Fatalf("redelivery err = %v, want ErrDuplicateDelivery", err)
	}

	history, err := st.History(ctx, conv.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history len = %d, want 1 (redelivery must write nothing)", len(history))
	}
}

func TestAppendInboundSameProviderIDAcrossOrganizations(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	seedOrg(t, st, "org-2")
	ctx := context.Background()

	nm := model.NormalizedMessage{From: "5511999990000", Message: "oi", MessageID: "wamid.shared"}

	a, err := st.ResolveOrCreateConversation(ctx, "org-1", nm.From, "")
	if err != nil {
		t.Fatalf("resolve org-1: %v", err)
	}
	b, err := st.ResolveOrCreateConversation(ctx, "org-2", nm.From, "")
	if err != nil {
		t.Fatalf("resolve org-2: %v", err)
	}

	if _, err := st.AppendInbound(ctx, a, nm); err != nil {
		t.Fatalf("append org-1: %v", err)
	}
	if _, err := st.AppendInbound(ctx, b, nm); err != nil {
		t.Errorf("append org-2: %v (dedup must be organization scoped)", err)
	}
}

func TestAppendInboundMediaFallback(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	msg, err := st.AppendInbound(ctx, conv, model.NormalizedMessage{
		From: "5511999990000", MediaURL: "https://cdn.example/img.jpg", MessageID: "wamid.media",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.Content != "https://cdn.example/img.jpg" {
		t.Errorf("content = %q, want media URL fallback", msg.Content)
	}
}

func TestHistoryBoundedOldestFirst(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := st.AppendMessage(ctx, &model.Message{
			ConversationID: conv.ID,
			OrganizationID: "org-1",
			Direction:      model.DirectionInbound,
			Content:        fmt.Sprintf("msg-%d", i),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	history, err := st.History(ctx, conv.ID, 4)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("len = %d, want 4", len(history))
	}
	// Most recent 4, oldest first.
	for i, want := range []string{"msg-6", "msg-7", "msg-8", "msg-9"} {
		if history[i].Content != want {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Content, want)
		}
	}
	for i := 1; i < len(history); i++ {
		if history[i].Seq <= history[i-1].Seq {
			t.Errorf("seq not increasing at %d: %d <= %d", i, history[i].Seq, history[i-1].Seq)
		}
	}
}

func TestMessagesAfterPaging(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := st.AppendMessage(ctx, &model.Message{
			ConversationID: conv.ID,
			OrganizationID: "org-1",
			Direction:      model.DirectionOutbound,
			Content:        fmt.Sprintf("m%d", i),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	page1, err := st.MessagesAfter(ctx, "org-1", conv.ID, 0, 3)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Messages) != 3 || !page1.HasMore {
		t.Fatalf("page 1 = %d messages, HasMore=%v; want 3, true", len(page1.Messages), page1.HasMore)
	}

	page2, err := st.MessagesAfter(ctx, "org-1", conv.ID, page1.LastSeq, 3)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Messages) != 2 {
		t.Fatalf("page 2 = %d messages, want 2", len(page2.Messages))
	}
	if page2.Messages[0].Content != "m3" {
		t.Errorf("page 2 starts at %q, want m3", page2.Messages[0].Content)
	}
}

func TestMarkOutboundDelivery(t *testing.T) {
	st := newTestStore(t)
	seedOrg(t, st, "org-1")
	ctx := context.Background()

	conv, err := st.ResolveOrCreateConversation(ctx, "org-1", "5511999990000", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	msg, err := st.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		OrganizationID: "org-1",
		Direction:      model.DirectionOutbound,
		Content:        "olá!",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := st.MarkOutboundDelivery(ctx, msg.ID, "", "gateway timeout"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	history, err := st.History(ctx, conv.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history[0].DeliveryError != "gateway timeout" {
		t.Errorf("delivery error = %q, want recorded", history[0].DeliveryError)
	}
}
