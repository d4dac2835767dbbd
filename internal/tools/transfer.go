package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vendaflow/agent-core/internal/llm"
	"github.com/vendaflow/agent-core/internal/model"
)

type transferToHumanArgs struct {
	Reason  string `json:"reason"`
	Summary string `json:"summary,omitempty"`
}

var transferToHumanDef = llm.ToolDefinition{
	Name:        string(ToolTransferToHuman),
	Description: "Transfere a conversa para um atendente humano. Use quando o lead pedir, estiver insatisfeito, ou o assunto fugir da sua alçada. Encerra sua participação na conversa.",
	Parameters: objectSchema([]string{"reason"}, map[string]any{
		"reason":  stringProp("Motivo da transferência"),
		"summary": stringProp("Resumo do que o lead precisa, para o atendente"),
	}),
}

// execTransferToHuman flips the conversation to transferred and enqueues an
// inbox item for the operators. Terminal for the turn: the orchestrator
// dispatches no further tool calls after it. Replaying the call is a no-op
// because the status update is idempotent.
func execTransferToHuman(ctx context.Context, tc Context, rawArgs string) Result {
	var args transferToHumanArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return fail("invalid arguments: %v", err)
	}
	if args.Reason == "" {
		return fail("reason is required")
	}

	if err := tc.Store.SetConversationStatus(ctx, tc.OrganizationID, tc.ConversationID, model.StatusTransferred); err != nil {
		return fail("failed to transfer conversation: %v", err)
	}

	if tc.Events != nil {
		detail := args.Summary
		if detail == "" {
			detail = args.Reason
		}
		// Fire-and-forget: the inbox subsystem owns durability.
		_ = tc.Events.PublishInboxItem(ctx, &model.InboxActionItem{
			ID:             uuid.Must(uuid.NewV7()).String(),
			OrganizationID: tc.OrganizationID,
			ConversationID: tc.ConversationID,
			Kind:           "handoff",
			Title:          "Conversa transferida: " + args.Reason,
			Detail:         detail,
			CreatedAt:      time.Now().UTC(),
		})
	}

	return ok(tc.ConversationID, "conversa transferida para um atendente humano: %s", args.Reason)
}
