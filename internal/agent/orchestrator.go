// Package agent implements the turn orchestrator: the state machine that
// takes one normalized inbound message through quota check, prompt
// composition, the model tool loop and outbound delivery.
package agent

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vendaflow/agent-core/internal/delivery"
	"github.com/vendaflow/agent-core/internal/llm"
	"github.com/vendaflow/agent-core/internal/model"
	"github.com/vendaflow/agent-core/internal/prompt"
	"github.com/vendaflow/agent-core/internal/quota"
	"github.com/vendaflow/agent-core/internal/store"
	"github.com/vendaflow/agent-core/internal/tools"
	"github.com/vendaflow/agent-core/pkg/logger"
	"github.com/vendaflow/agent-core/pkg/metrics"
)

// transferNotice is the outbound text a lead sees when the conversation is
// handed to a human.
const transferNotice = "Vou te transferir para um de nossos atendentes. Um momento, por favor."

// defaultFallback is sent when the tool loop overruns and no per-org
// fallback text is configured.
const defaultFallback = "Desculpe, tive um problema para processar sua mensagem. Pode repetir, por favor?"

// EventPublisher is the orchestrator's write surface to the event stream.
// All publishes are fire-and-forget.
type EventPublisher interface {
	PublishTurnEvent(ctx context.Context, event *model.TurnEvent) error
	PublishInboxItem(ctx context.Context, item *model.InboxActionItem) error
}

// Options bound the tool loop and the model call.
type Options struct {
	MaxToolRounds int
	HistoryLimit  int
	ModelTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxToolRounds <= 0 {
		o.MaxToolRounds = 5
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 30
	}
	if o.ModelTimeout <= 0 {
		o.ModelTimeout = 60 * time.Second
	}
	return o
}

// Orchestrator drives one turn per inbound webhook invocation. Instances
// hold no per-conversation state; any number of turns may run concurrently
// and coordinate only through the store.
type Orchestrator struct {
	store    *store.Store
	ledger   *quota.Ledger
	registry *tools.Registry
	clients  map[model.Provider]llm.Client
	sender   delivery.Sender
	events   EventPublisher
	logger   *logger.Logger
	opts     Options
}

// New wires an orchestrator. Every dependency is injected; there are no
// package-level singletons.
func New(
	st *store.Store,
	ledger *quota.Ledger,
	registry *tools.Registry,
	clients map[model.Provider]llm.Client,
	sender delivery.Sender,
	events EventPublisher,
	log *logger.Logger,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		store:    st,
		ledger:   ledger,
		registry: registry,
		clients:  clients,
		sender:   sender,
		events:   events,
		logger:   log,
		opts:     opts.withDefaults(),
	}
}

// HandleInbound processes one normalized inbound message. Errors returned
// here are persistence failures: the caller surfaces them as retryable and
// the idempotency keys make the retry safe. Every other failure mode ends
// the turn with a Failed result and a nil error.
func (o *Orchestrator) HandleInbound(ctx context.Context, organizationID string, nm model.NormalizedMessage) (*TurnResult, error) {
	log := o.logger.WithTurn(organizationID, "", nm.MessageID)

	cfg, err := o.store.AgentConfig(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	conv, err := o.store.ResolveOrCreateConversation(ctx, organizationID, nm.From, nm.PushName)
	if err != nil {
		return nil, err
	}
	log = o.logger.WithTurn(organizationID, conv.ID, nm.MessageID)
	if conv.Created {
		metrics.ConversationsCreatedTotal.WithLabelValues(organizationID).Inc()
	}

	result := &TurnResult{ConversationID: conv.ID, State: StateReceived}

	// Received: record the inbound turn. A redelivered provider message is
	// the no-op success that makes at-least-once webhook delivery safe.
	if _, err := o.store.AppendInbound(ctx, conv, nm); err != nil {
		if errors.Is(err, store.ErrDuplicateDelivery) {
			log.Info("duplicate delivery ignored")
			result.Duplicate = true
			return result, nil
		}
		return nil, err
	}

	// A transferred conversation belongs to a human; the message is kept
	// for them and the agent stays out.
	if conv.Status == model.StatusTransferred {
		log.Info("inbound on transferred conversation, agent suppressed")
		result.State = StatePersisted
		result.Suppressed = true
		o.countTurn(organizationID, result)
		return result, nil
	}

	// QuotaChecked: one atomic reservation; on exhaustion the message stays
	// recorded but no model or tool work happens.
	decision, err := o.ledger.CheckAndReserve(ctx, organizationID, cfg.QuotaPeriod, cfg.QuotaLimit)
	if err != nil {
		return nil, err
	}
	result.State = StateQuotaChecked
	if decision == quota.QuotaExceeded {
		return o.failQuotaExceeded(ctx, log, cfg, conv, result)
	}

	// Composing: deterministic prompt from config plus bounded history.
	result.State = StateComposing
	history, err := o.store.History(ctx, conv.ID, o.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	system := prompt.Compose(*cfg, history)
	msgs := chatHistory(history)

	client := o.clientFor(cfg)
	if client == nil {
		log.Error("no model client configured", zap.String("provider", string(cfg.Provider)))
		result.State = StateFailed
		result.Reason = ReasonNoModelClient
		o.finishTurn(ctx, log, cfg, conv, result)
		return result, nil
	}

	toolCtx := tools.Context{
		OrganizationID: organizationID,
		ConversationID: conv.ID,
		LeadIdentity:   conv.ChannelIdentity,
		LeadName:       conv.PushName,
		Store:          o.store,
		Events:         o.events,
	}
	toolDefs := o.registry.Definitions(cfg.BusinessType)

	// ToolLoop: each round yields either a final reply or tool calls whose
	// results feed the next round. Bounded so a misbehaving model cannot
	// loop forever.
	result.State = StateToolLoop
	var reply string
	transferred := false

loop:
	for round := 1; round <= o.opts.MaxToolRounds; round++ {
		result.Rounds = round

		resp, err := o.callModel(ctx, client, &llm.ChatRequest{
			Model:    cfg.Model,
			System:   system,
			Messages: msgs,
			Tools:    toolDefs,
		})
		if err != nil {
			return o.failModel(ctx, log, cfg, conv, result, err)
		}

		if err := o.ledger.AddTokens(ctx, organizationID, cfg.QuotaPeriod, resp.TokensIn, resp.TokensOut); err != nil {
			log.Warn("failed to record token usage", zap.Error(err))
		}

		if len(resp.ToolCalls) == 0 {
			reply = resp.Content
			break
		}

		msgs = append(msgs, llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			toolResult := o.execTool(ctx, log, toolCtx, conv, tc)
			result.ToolCalls++

			msgs = append(msgs, llm.ChatMessage{
				Role:       llm.RoleTool,
				Content:    toolResult.Content,
				ToolCallID: tc.ID,
				IsError:    toolResult.IsError,
			})

			// transfer_to_human is terminal for the turn: remaining tool
			// calls in this round are dropped and the loop ends.
			if tools.Name(tc.Name) == tools.ToolTransferToHuman && !toolResult.IsError {
				transferred = true
				reply = transferNotice
				break loop
			}
		}
	}

	metrics.ToolLoopRounds.Observe(float64(result.Rounds))

	if reply == "" && !transferred {
		// Loop bound hit without a final reply.
		log.Warn("tool loop exceeded max rounds, sending fallback",
			zap.Int("rounds", result.Rounds),
			zap.Int("tool_calls", result.ToolCalls))
		reply = cfg.FallbackReplyText
		if reply == "" {
			reply = defaultFallback
		}
	}

	// Replying: persist the outbound turn, then hand it to delivery. A
	// delivery failure is recorded but does not fail the turn.
	result.State = StateReplying
	if err := o.sendReply(ctx, log, conv, reply); err != nil {
		return nil, err
	}
	result.Reply = reply

	if transferred {
		result.State = StateTransferred
	} else {
		result.State = StatePersisted
	}
	o.finishTurn(ctx, log, cfg, conv, result)

	return result, nil
}

// callModel runs one model round under the configured timeout. No lock is
// held across the call; a slow model only delays this turn.
func (o *Orchestrator) callModel(ctx context.Context, client llm.Client, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.ModelTimeout)
	defer cancel()

	start := time.Now()
	resp, err := client.Chat(callCtx, req)
	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			status = "timeout"
		}
	}

	modelName := req.Model
	if resp != nil && resp.Model != "" {
		modelName = resp.Model
	}
	tokensIn, tokensOut := 0, 0
	if resp != nil {
		tokensIn, tokensOut = resp.TokensIn, resp.TokensOut
	}
	metrics.RecordModelCall(client.Name(), modelName, status, time.Since(start).Seconds(), tokensIn, tokensOut)

	return resp, err
}

// execTool dispatches one tool call and persists its ToolCall record.
func (o *Orchestrator) execTool(ctx context.Context, log *logger.Logger, toolCtx tools.Context, conv *model.Conversation, tc llm.ToolCall) tools.Result {
	toolResult := o.registry.Execute(ctx, toolCtx, tools.Name(tc.Name), tc.Arguments)

	status := "success"
	if toolResult.IsError {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(tc.Name, status).Inc()
	log.Info("tool executed",
		zap.String("tool", tc.Name),
		zap.String("status", status),
		zap.String("entity_id", toolResult.EntityID))

	if _, err := o.store.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		OrganizationID: conv.OrganizationID,
		Direction:      model.DirectionTool,
		ToolName:       tc.Name,
		ToolArgs:       tc.Arguments,
		ToolResult:     toolResult.Content,
		EntityID:       toolResult.EntityID,
	}); err != nil {
		log.Error("failed to persist tool call", zap.Error(err))
	}

	return toolResult
}

// sendReply persists the outbound message and attempts delivery.
func (o *Orchestrator) sendReply(ctx context.Context, log *logger.Logger, conv *model.Conversation, text string) error {
	if text == "" {
		return nil
	}

	msg, err := o.store.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		OrganizationID: conv.OrganizationID,
		Direction:      model.DirectionOutbound,
		Content:        text,
	})
	if err != nil {
		return err
	}

	res, err := o.sender.Send(ctx, conv.OrganizationID, conv.ChannelIdentity, text)
	if err == nil && !res.Success {
		err = errors.New(res.Error)
	}
	if err != nil {
		metrics.OutboundDeliveriesTotal.WithLabelValues("error").Inc()
		log.Error("outbound delivery failed", zap.Error(err))
		if markErr := o.store.MarkOutboundDelivery(ctx, msg.ID, "", err.Error()); markErr != nil {
			log.Error("failed to record delivery error", zap.Error(markErr))
		}
		o.publishEvent(ctx, log, conv, model.EventDeliveryFailure, err.Error())
		return nil
	}

	metrics.OutboundDeliveriesTotal.WithLabelValues("success").Inc()
	if res.MessageID != "" {
		if err := o.store.MarkOutboundDelivery(ctx, msg.ID, res.MessageID, ""); err != nil {
			log.Error("failed to record provider message id", zap.Error(err))
		}
	}
	return nil
}

// failQuotaExceeded ends the turn after a quota rejection. The inbound
// message stays recorded for human follow-up; a canned reply is sent only
// when the organization configured one.
func (o *Orchestrator) failQuotaExceeded(ctx context.Context, log *logger.Logger, cfg *model.AgentConfig, conv *model.Conversation, result *TurnResult) (*TurnResult, error) {
	log.Warn("quota exceeded, turn not processed")
	metrics.QuotaRejectionsTotal.WithLabelValues(conv.OrganizationID).Inc()

	if cfg.QuotaReplyText != "" {
		if err := o.sendReply(ctx, log, conv, cfg.QuotaReplyText); err != nil {
			return nil, err
		}
		result.Reply = cfg.QuotaReplyText
	}

	result.State = StateFailed
	result.Reason = ReasonQuotaExceeded
	o.publishEvent(ctx, log, conv, model.EventQuotaExceeded, string(ReasonQuotaExceeded))
	o.countTurn(conv.OrganizationID, result)
	return result, nil
}

// failModel ends the turn after a model timeout or failure, with the
// configured fallback reply when one exists.
func (o *Orchestrator) failModel(ctx context.Context, log *logger.Logger, cfg *model.AgentConfig, conv *model.Conversation, result *TurnResult, cause error) (*TurnResult, error) {
	result.State = StateFailed
	result.Reason = ReasonModelFailure
	if errors.Is(cause, context.DeadlineExceeded) {
		result.Reason = ReasonModelTimeout
	}
	log.Error("model call failed", zap.Error(cause), zap.String("reason", string(result.Reason)))

	if cfg.FallbackReplyText != "" {
		if err := o.sendReply(ctx, log, conv, cfg.FallbackReplyText); err != nil {
			return nil, err
		}
		result.Reply = cfg.FallbackReplyText
	}

	o.finishTurn(ctx, log, cfg, conv, result)
	return result, nil
}

func (o *Orchestrator) finishTurn(ctx context.Context, log *logger.Logger, cfg *model.AgentConfig, conv *model.Conversation, result *TurnResult) {
	eventType := model.EventTurnCompleted
	switch result.State {
	case StateTransferred:
		eventType = model.EventTransferred
	case StateFailed:
		eventType = model.EventTurnFailed
	}
	o.publishEvent(ctx, log, conv, eventType, string(result.Reason))
	o.countTurn(conv.OrganizationID, result)
}

func (o *Orchestrator) publishEvent(ctx context.Context, log *logger.Logger, conv *model.Conversation, eventType model.EventType, reason string) {
	if o.events == nil {
		return
	}
	event := &model.TurnEvent{
		ID:             newEventID(),
		OrganizationID: conv.OrganizationID,
		ConversationID: conv.ID,
		Type:           eventType,
		Reason:         reason,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.events.PublishTurnEvent(ctx, event); err != nil {
		log.Warn("failed to publish turn event", zap.Error(err))
	}
}

func (o *Orchestrator) countTurn(organizationID string, result *TurnResult) {
	state := string(result.State)
	if result.Suppressed {
		state = "suppressed"
	}
	metrics.TurnsTotal.WithLabelValues(organizationID, state).Inc()
}

func (o *Orchestrator) clientFor(cfg *model.AgentConfig) llm.Client {
	if client, ok := o.clients[cfg.Provider]; ok {
		return client
	}
	// Any configured provider beats none.
	for _, client := range o.clients {
		return client
	}
	return nil
}

// chatHistory converts stored turns into chat messages. Tool records are
// summarized by the prompt composer instead of being replayed verbatim,
// since their tool-call IDs only mean something within their own turn.
func chatHistory(history []model.Message) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		switch m.Direction {
		case model.DirectionInbound:
			msgs = append(msgs, llm.ChatMessage{Role: llm.RoleUser, Content: m.Content})
		case model.DirectionOutbound:
			msgs = append(msgs, llm.ChatMessage{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return msgs
}
