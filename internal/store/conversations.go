package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vendaflow/agent-core/internal/model"
)

// ErrNotFound is returned when a record does not exist in this
// organization's scope.
var ErrNotFound = errors.New("not found")

// ResolveOrCreateConversation returns the active conversation for a lead
// identity, creating one on first contact. The one-active-conversation
// invariant is enforced by a single upsert against the partial unique index,
// so concurrent first messages from the same lead resolve to one row. A
// transferred conversation is returned as-is; its status is not reset.
func (s *Store) ResolveOrCreateConversation(ctx context.Context, organizationID, channelIdentity, pushName string) (*model.Conversation, error) {
	now := time.Now().UTC()
	id := uuid.Must(uuid.NewV7()).String()

	conv := &model.Conversation{
		OrganizationID:  organizationID,
		ChannelIdentity: channelIdentity,
	}

	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO conversations (id, organization_id, channel_identity, push_name, status, last_activity_at, created_at)
		VALUES (?, ?, ?, ?, 'open', ?, ?)
		ON CONFLICT (organization_id, channel_identity) WHERE status != 'closed'
		DO UPDATE SET
			last_activity_at = excluded.last_activity_at,
			push_name = CASE WHEN excluded.push_name != '' THEN excluded.push_name ELSE conversations.push_name END
		RETURNING id, push_name, status, last_activity_at, created_at
	`, id, organizationID, channelIdentity, pushName, now, now).Scan(
		&conv.ID, &conv.PushName, &conv.Status, &conv.LastActivityAt, &conv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}

	createdAt = conv.CreatedAt
	conv.Created = conv.ID == id && createdAt.Equal(now)

	return conv, nil
}

// GetConversation loads a conversation within the organization scope.
func (s *Store) GetConversation(ctx context.Context, organizationID, conversationID string) (*model.Conversation, error) {
	conv := &model.Conversation{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, channel_identity, push_name, status, last_activity_at, created_at
		FROM conversations
		WHERE id = ? AND organization_id = ?
	`, conversationID, organizationID).Scan(
		&conv.ID, &conv.OrganizationID, &conv.ChannelIdentity, &conv.PushName,
		&conv.Status, &conv.LastActivityAt, &conv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// SetConversationStatus updates the lifecycle state. Setting an already-set
// status is a no-op, which keeps transfer_to_human replay-safe.
func (s *Store) SetConversationStatus(ctx context.Context, organizationID, conversationID string, status model.ConversationStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = ?, last_activity_at = ?
		WHERE id = ? AND organization_id = ?
	`, status, time.Now().UTC(), conversationID, organizationID)
	if err != nil {
		return fmt.Errorf("set conversation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConversations returns recent conversations for the operator surface,
// newest activity first.
func (s *Store) ListConversations(ctx context.Context, organizationID string, limit int) ([]model.ConversationSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.organization_id, c.channel_identity, c.push_name, c.status,
			c.last_activity_at, c.created_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
			COALESCE((SELECT m.content FROM messages m WHERE m.conversation_id = c.id
				ORDER BY m.created_at DESC, m.seq DESC LIMIT 1), '')
		FROM conversations c
		WHERE c.organization_id = ?
		ORDER BY c.last_activity_at DESC
		LIMIT ?
	`, organizationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConversationSummary
	for rows.Next() {
		var cs model.ConversationSummary
		if err := rows.Scan(
			&cs.ID, &cs.OrganizationID, &cs.ChannelIdentity, &cs.PushName, &cs.Status,
			&cs.LastActivityAt, &cs.CreatedAt, &cs.MessageCount, &cs.LastMessagePreview,
		); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}
