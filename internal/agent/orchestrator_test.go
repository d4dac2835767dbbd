package agent

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vendaflow/agent-core/internal/delivery"
	"github.com/vendaflow/agent-core/internal/llm"
	"github.com/vendaflow/agent-core/internal/model"
	"github.com/vendaflow/agent-core/internal/quota"
	"github.com/vendaflow/agent-core/internal/store"
	"github.com/vendaflow/agent-core/internal/tools"
	"github.com/vendaflow/agent-core/pkg/logger"
)

// scriptedClient plays back canned responses in order.
type scriptedClient struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	errs      []error
	requests  []*llm.ChatRequest
}

func (c *scriptedClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	// Scripts that run out keep answering with a final reply so tests fail
	// on assertions rather than nil dereferences.
	return &llm.ChatResponse{Content: "ok"}, nil
}

func (c *scriptedClient) Name() string { return "scripted" }

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	erred bool
}

func (s *recordingSender) Send(ctx context.Context, organizationID, to, text string) (delivery.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		s.erred = true
		return delivery.Result{}, errors.New("gateway down")
	}
	s.sent = append(s.sent, text)
	return delivery.Result{Success: true, MessageID: "provider-msg-1"}, nil
}

type recordingEvents struct {
	mu    sync.Mutex
	turns []*model.TurnEvent
	inbox []*model.InboxActionItem
}

func (e *recordingEvents) PublishTurnEvent(ctx context.Context, event *model.TurnEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = append(e.turns, event)
	return nil
}

func (e *recordingEvents) PublishInboxItem(ctx context.Context, item *model.InboxActionItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inbox = append(e.inbox, item)
	return nil
}

type fixture struct {
	store  *store.Store
	client *scriptedClient
	sender *recordingSender
	events *recordingEvents
	orch   *Orchestrator
}

func newFixture(t *testing.T, cfg model.AgentConfig, opts Options) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if cfg.OrganizationID == "" {
		cfg.OrganizationID = "org-1"
	}
	if cfg.AgentName == "" {
		cfg.AgentName = "Lia"
	}
	if err := st.SeedOrganization(context.Background(), model.Organization{ID: cfg.OrganizationID, Name: "Clínica Viva"}, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}

	client := &scriptedClient{}
	sender := &recordingSender{}
	events := &recordingEvents{}
	orch := New(
		st,
		quota.NewLedger(st.DB()),
		tools.NewRegistry(),
		map[model.Provider]llm.Client{model.ProviderOpenAI: client},
		sender,
		events,
		logger.NewNop(),
		opts,
	)
	return &fixture{store: st, client: client, sender: sender, events: events, orch: orch}
}

func inbound(id, text string) model.NormalizedMessage {
	return model.NormalizedMessage{
		From:      "5511999990000",
		PushName:  "Maria",
		Message:   text,
		Type:      "text",
		MessageID: id,
		Timestamp: time.Now().UTC(),
	}
}

func TestTurnWithToolCallThenReply(t *testing.T) {
	f := newFixture(t, model.AgentConfig{BusinessType: "medical_clinic"}, Options{})
	f.client.responses = []*llm.ChatResponse{
		{
			ToolCalls: []llm.ToolCall{{
				ID:        "call-1",
				Name:      string(tools.ToolCreateContact),
				Arguments: `{"name":"Maria Silva"}`,
			}},
			TokensIn: 100, TokensOut: 20,
		},
		{Content: "Perfeito, Maria! Qual o motivo da consulta?", TokensIn: 150, TokensOut: 30},
	}

	result, err := f.orch.HandleInbound(context.Background(), "org-1", inbound("wamid.1", "quero agendar uma consulta"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if result.State != StatePersisted {
		t.Errorf("state = %q, want persisted", result.State)
	}
	if result.Rounds != 2 || result.ToolCalls != 1 {
		t.Errorf("rounds=%d toolCalls=%d, want 2/1", result.Rounds, result.ToolCalls)
	}
	if result.Reply != "Perfeito, Maria! Qual o motivo da consulta?" {
		t.Errorf("reply = %q", result.Reply)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != result.Reply {
		t.Errorf("sent = %v", f.sender.sent)
	}

	// Second round must carry the tool result back to the model.
	second := f.client.requests[1]
	var sawToolMsg bool
	for _, m := range second.Messages {
		if m.Role == llm.RoleTool && m.ToolCallID == "call-1" {
			sawToolMsg = true
		}
	}
	if !sawToolMsg {
		t.Error("tool result not fed back into the second round")
	}

	// Contact side effect landed.
	contact, err := f.store.FindContactByPhone(context.Background(), "org-1", "5511999990000")
	if err != nil || contact == nil {
		t.Fatalf("contact = %v, err = %v", contact, err)
	}

	// Turn history: inbound, tool, outbound.
	history, err := f.store.History(context.Background(), result.ConversationID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history len = %d, want 3", len(history))
	}
	dirs := []model.Direction{history[0].Direction, history[1].Direction, history[2].Direction}
	want := []model.Direction{model.DirectionInbound, model.DirectionTool, model.DirectionOutbound}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, dirs[i], want[i])
		}
	}

	if len(f.events.turns) != 1 || f.events.turns[0].Type != model.EventTurnCompleted {
		t.Errorf("events = %+v, want one turn_completed", f.events.turns)
	}
}

func TestDuplicateDeliveryIsNoOp(t *testing.T) {
	f := newFixture(t, model.AgentConfig{}, Options{})
	f.client.responses = []*llm.ChatResponse{{Content: "Olá!"}}

	ctx := context.Background()
	if _, err := f.orch.HandleInbound(ctx, "org-1", inbound("wamid.dup", "oi")); err != nil {
		t.Fatalf("first: %v", err)
	}

	result, err := f.orch.HandleInbound(ctx, "org-1", inbound("wamid.dup", "oi"))
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !result.Duplicate {
		t.Error("redelivery not flagged as duplicate")
	}
	if len(f.client.requests) != 1 {
		t.Errorf("model called %d times, want 1 (no work on duplicates)", len(f.client.requests))
	}
	if len(f.sender.sent) != 1 {
		t.Errorf("sent %d replies, want 1", len(f.sender.sent))
	}
}

func TestTransferredConversationSuppressesAgent(t *testing.T) {
	f := newFixture(t, model.AgentConfig{}, Options{})
	f.client.responses = []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:        "call-1",
			Name:      string(tools.ToolTransferToHuman),
			Arguments: `{"reason":"lead pediu atendente"}`,
		}}},
	}

	ctx := context.Background()
	first, err := f.orch.HandleInbound(ctx, "org-1", inbound("wamid.1", "quero falar com uma pessoa"))
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.State != StateTransferred {
		t.Fatalf("state = %q, want transferred", first.State)
	}
	if first.Reply == "" {
		t.Error("transfer should notify the lead")
	}
	if len(f.events.inbox) != 1 {
		t.Errorf("inbox items = %d, want 1 handoff", len(f.events.inbox))
	}

	// Next inbound: stored for the human, agent stays quiet.
	second, err := f.orch.HandleInbound(ctx, "org-1", inbound("wamid.2", "obrigada"))
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if !second.Suppressed {
		t.Error("turn on transferred conversation not suppressed")
	}
	if second.ConversationID != first.ConversationID {
		t.Error("suppressed turn must land on the same conversation")
	}
	if len(f.client.requests) != 1 {
		t.Errorf("model called %d times, want 1", len(f.client.requests))
	}

	history, err := f.store.History(ctx, first.ConversationID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var inboundCount int
	for _, m := range history {
		if m.Direction == model.DirectionInbound {
			inboundCount++
		}
	}
	if inboundCount != 2 {
		t.Errorf("inbound messages = %d, want 2 (suppressed message still recorded)", inboundCount)
	}
}

func TestTransferDropsRemainingToolCalls(t *testing.T) {
	f := newFixture(t, model.AgentConfig{}, Options{})
	f.client.responses = []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{
			{ID: "call-1", Name: string(tools.ToolTransferToHuman), Arguments: `{"reason":"pediu"}`},
			{ID: "call-2", Name: string(tools.ToolCreateContact), Arguments: `{"name":"Maria"}`},
		}},
	}

	result, err := f.orch.HandleInbound(context.Background(), "org-1", inbound("wamid.1", "atendente, por favor"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.State != StateTransferred {
		t.Fatalf("state = %q", result.State)
	}
	if result.ToolCalls != 1 {
		t.Errorf("tool calls = %d, want 1 (calls after transfer dropped)", result.ToolCalls)
	}

	contact, err := f.store.FindContactByPhone(context.Background(), "org-1", "5511999990000")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if contact != nil {
		t.Error("tool call after transfer must not execute")
	}
}

func TestQuotaExceeded(t *testing.T) {
	f := newFixture(t, model.AgentConfig{
		QuotaPeriod:    model.PeriodMonth,
		QuotaLimit:     1,
		QuotaReplyText: "Nosso atendimento automático atingiu o limite. Um atendente responderá em breve.",
	}, Options{})
	f.client.responses = []*llm.ChatResponse{{Content: "Olá!"}}

	ctx := context.Background()
	if _, err := f.orch.HandleInbound(ctx, "org-1", inbound("wamid.1", "oi")); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	result, err := f.orch.HandleInbound(ctx, "org-1", inbound("wamid.2", "tem horário amanhã?"))
	if err != nil {
		t.Fatalf("quota turn must not be a Go error: %v", err)
	}
	if result.State != StateFailed || result.Reason != ReasonQuotaExceeded {
		t.Fatalf("state=%q reason=%q", result.State, result.Reason)
	}
	if len(f.client.requests) != 1 {
		t.Errorf("model called %d times, want 1 (no model work past quota)", len(f.client.requests))
	}
	if len(f.sender.sent) != 2 || f.sender.sent[1] != "Nosso atendimento automático atingiu o limite. Um atendente responderá em breve." {
		t.Errorf("sent = %v, want canned quota reply", f.sender.sent)
	}

	var sawQuotaEvent bool
	for _, e := range f.events.turns {
		if e.Type == model.EventQuotaExceeded {
			sawQuotaEvent = true
		}
	}
	if !sawQuotaEvent {
		t.Error("quota_exceeded event not published")
	}

	// The inbound message is still recorded for human follow-up.
	history, err := f.store.History(ctx, result.ConversationID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var found bool
	for _, m := range history {
		if m.Direction == model.DirectionInbound && m.Content == "tem horário amanhã?" {
			found = true
		}
	}
	if !found {
		t.Error("rejected turn's inbound message missing from history")
	}
}

func TestQuotaExceededSilentWithoutCannedReply(t *testing.T) {
	f := newFixture(t, model.AgentConfig{QuotaPeriod: model.PeriodMonth, QuotaLimit: 1}, Options{})
	f.client.responses = []*llm.ChatResponse{{Content: "Olá!"}}

	ctx := context.Background()
	if _, err := f.orch.HandleInbound(ctx, "org-1", inbound("wamid.1", "oi")); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	result, err := f.orch.HandleInbound(ctx, "org-1", inbound("wamid.2", "oi de novo"))
	if err != nil {
		t.Fatalf("quota turn: %v", err)
	}
	if result.Reply != "" {
		t.Errorf("reply = %q, want silence", result.Reply)
	}
	if len(f.sender.sent) != 1 {
		t.Errorf("sent = %v, want only the first turn's reply", f.sender.sent)
	}
}

func TestToolLoopBoundFallback(t *testing.T) {
	f := newFixture(t, model.AgentConfig{
		FallbackReplyText: "Desculpe, não consegui concluir. Um atendente vai te ajudar.",
	}, Options{MaxToolRounds: 2})

	// The model never stops calling tools.
	loop := &llm.ChatResponse{
		ToolCalls: []llm.ToolCall{{
			ID: "call-x", Name: string(tools.ToolCreateContact), Arguments: `{"name":"Maria"}`,
		}},
	}
	f.client.responses = []*llm.ChatResponse{loop, loop, loop, loop}

	result, err := f.orch.HandleInbound(context.Background(), "org-1", inbound("wamid.1", "oi"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Rounds != 2 {
		t.Errorf("rounds = %d, want capped at 2", result.Rounds)
	}
	if len(f.client.requests) != 2 {
		t.Errorf("model called %d times, want 2", len(f.client.requests))
	}
	if result.Reply != "Desculpe, não consegui concluir. Um atendente vai te ajudar." {
		t.Errorf("reply = %q, want configured fallback", result.Reply)
	}
	if result.State != StatePersisted {
		t.Errorf("state = %q, want persisted (fallback still persists the turn)", result.State)
	}
}

func TestModelFailure(t *testing.T) {
	f := newFixture(t, model.AgentConfig{FallbackReplyText: "Tive um problema aqui. Já te respondo."}, Options{})
	f.client.errs = []error{errors.New("upstream 500")}

	result, err := f.orch.HandleInbound(context.Background(), "org-1", inbound("wamid.1", "oi"))
	if err != nil {
		t.Fatalf("model failure must not be a Go error: %v", err)
	}
	if result.State != StateFailed || result.Reason != ReasonModelFailure {
		t.Errorf("state=%q reason=%q", result.State, result.Reason)
	}
	if result.Reply != "Tive um problema aqui. Já te respondo." {
		t.Errorf("reply = %q, want fallback", result.Reply)
	}
	if len(f.events.turns) != 1 || f.events.turns[0].Type != model.EventTurnFailed {
		t.Errorf("events = %+v, want turn_failed", f.events.turns)
	}
}

func TestDeliveryFailureDoesNotFailTurn(t *testing.T) {
	f := newFixture(t, model.AgentConfig{}, Options{})
	f.client.responses = []*llm.ChatResponse{{Content: "Olá!"}}
	f.sender.fail = true

	result, err := f.orch.HandleInbound(context.Background(), "org-1", inbound("wamid.1", "oi"))
	if err != nil {
		t.Fatalf("delivery failure must not fail the turn: %v", err)
	}
	if result.State != StatePersisted {
		t.Errorf("state = %q, want persisted", result.State)
	}

	history, err := f.store.History(context.Background(), result.ConversationID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var outbound *model.Message
	for i := range history {
		if history[i].Direction == model.DirectionOutbound {
			outbound = &history[i]
		}
	}
	if outbound == nil {
		t.Fatal("outbound turn missing")
	}
	if outbound.DeliveryError == "" {
		t.Error("delivery error not recorded on the outbound message")
	}

	var sawDeliveryEvent bool
	for _, e := range f.events.turns {
		if e.Type == model.EventDeliveryFailure {
			sawDeliveryEvent = true
		}
	}
	if !sawDeliveryEvent {
		t.Error("delivery_failure event not published")
	}
}

func TestUnknownOrganization(t *testing.T) {
	f := newFixture(t, model.AgentConfig{}, Options{})

	_, err := f.orch.HandleInbound(context.Background(), "org-unknown", inbound("wamid.1", "oi"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNoModelClientConfigured(t *testing.T) {
	f := newFixture(t, model.AgentConfig{}, Options{})
	f.orch.clients = map[model.Provider]llm.Client{}

	result, err := f.orch.HandleInbound(context.Background(), "org-1", inbound("wamid.1", "oi"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.State != StateFailed || result.Reason != ReasonNoModelClient {
		t.Errorf("state=%q reason=%q", result.State, result.Reason)
	}
}
