package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vendaflow/agent-core/internal/model"
)

// ErrDuplicateDelivery is returned when an inbound provider message ID has
// already been recorded for the organization. The caller treats it as a
// no-op success.
var ErrDuplicateDelivery = errors.New("duplicate delivery")

// AppendInbound records an inbound message. The insert is conditional on the
// (organization, provider message id) dedup index; a retried webhook
// delivery yields ErrDuplicateDelivery and writes nothing.
func (s *Store) AppendInbound(ctx context.Context, conv *model.Conversation, nm model.NormalizedMessage) (*model.Message, error) {
	msg := &model.Message{
		ID:                uuid.Must(uuid.NewV7()).String(),
		ConversationID:    conv.ID,
		OrganizationID:    conv.OrganizationID,
		Direction:         model.DirectionInbound,
		Content:           nm.Message,
		ProviderMessageID: nm.MessageID,
		CreatedAt:         time.Now().UTC(),
	}
	if nm.MediaURL != "" && msg.Content == "" {
		msg.Content = nm.MediaURL
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, organization_id, direction, content, provider_message_id, created_at)
		VALUES (?, ?, ?, 'inbound', ?, ?, ?)
		ON CONFLICT (organization_id, provider_message_id)
		WHERE provider_message_id != '' AND direction = 'inbound'
		DO NOTHING
	`, msg.ID, msg.ConversationID, msg.OrganizationID, msg.Content, msg.ProviderMessageID, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append inbound: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrDuplicateDelivery
	}

	return msg, nil
}

// AppendMessage appends a message turn. Append-only; Seq is assigned by the
// store and defines arrival order on ties.
func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, conversation_id, organization_id, direction, content,
			tool_name, tool_args, tool_result, entity_id, provider_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`, msg.ID, msg.ConversationID, msg.OrganizationID, msg.Direction, msg.Content,
		msg.ToolName, msg.ToolArgs, msg.ToolResult, msg.EntityID, msg.ProviderMessageID, msg.CreatedAt,
	).Scan(&msg.Seq)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	return msg, nil
}

// MarkOutboundDelivery records the provider-assigned message ID or the
// delivery error on an outbound message after the send attempt.
func (s *Store) MarkOutboundDelivery(ctx context.Context, messageID, providerMessageID, deliveryError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET provider_message_id = ?, delivery_error = ?
		WHERE id = ? AND direction = 'outbound'
	`, providerMessageID, deliveryError, messageID)
	return err
}

// History returns the most recent limit messages of a conversation,
// oldest-first, ordered by (created_at, seq). The read is bounded so prompt
// size stays controlled regardless of conversation length.
func (s *Store) History(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, conversation_id, organization_id, direction, content,
			tool_name, tool_args, tool_result, entity_id, provider_message_id, delivery_error, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, seq ASC
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(
			&m.Seq, &m.ID, &m.ConversationID, &m.OrganizationID, &m.Direction, &m.Content,
			&m.ToolName, &m.ToolArgs, &m.ToolResult, &m.EntityID, &m.ProviderMessageID,
			&m.DeliveryError, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MessagesAfter pages messages for the operator API, oldest-first after a
// sequence cursor.
func (s *Store) MessagesAfter(ctx context.Context, organizationID, conversationID string, afterSeq int64, limit int) (*model.ListMessagesResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, conversation_id, organization_id, direction, content,
			tool_name, tool_args, tool_result, entity_id, provider_message_id, delivery_error, created_at
		FROM messages
		WHERE conversation_id = ? AND organization_id = ? AND seq > ?
		ORDER BY created_at ASC, seq ASC
		LIMIT ?
	`, conversationID, organizationID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &model.ListMessagesResponse{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(
			&m.Seq, &m.ID, &m.ConversationID, &m.OrganizationID, &m.Direction, &m.Content,
			&m.ToolName, &m.ToolArgs, &m.ToolResult, &m.EntityID, &m.ProviderMessageID,
			&m.DeliveryError, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		resp.Messages = append(resp.Messages, m)
		resp.LastSeq = m.Seq
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	resp.HasMore = len(resp.Messages) == limit
	return resp, nil
}
