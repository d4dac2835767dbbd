package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vendaflow/agent-core/internal/model"
)

// FindContactByPhone looks up a contact by phone within the organization.
// Returns nil, nil when absent.
func (s *Store) FindContactByPhone(ctx context.Context, organizationID, phone string) (*model.Contact, error) {
	contact := &model.Contact{}
	var qualification string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, conversation_id, name, phone, email, qualification, created_at, updated_at
		FROM contacts
		WHERE organization_id = ? AND phone = ?
	`, organizationID, phone).Scan(
		&contact.ID, &contact.OrganizationID, &contact.ConversationID,
		&contact.Name, &contact.Phone, &contact.Email, &qualification,
		&contact.CreatedAt, &contact.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(qualification), &contact.Qualification); err != nil {
		return nil, fmt.Errorf("qualification: %w", err)
	}
	return contact, nil
}

// UpsertContact creates a contact or refreshes an existing one keyed on
// (organization, phone). The same tool call replayed yields the same row.
func (s *Store) UpsertContact(ctx context.Context, contact *model.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	contact.UpdatedAt = now

	qualification, err := json.Marshal(contact.Qualification)
	if err != nil {
		return err
	}
	if contact.Qualification == nil {
		qualification = []byte("{}")
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, organization_id, conversation_id, name, phone, email, qualification, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (organization_id, phone) WHERE phone != ''
		DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			email = CASE WHEN excluded.email != '' THEN excluded.email ELSE contacts.email END,
			conversation_id = CASE WHEN excluded.conversation_id != '' THEN excluded.conversation_id ELSE contacts.conversation_id END,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, contact.ID, contact.OrganizationID, contact.ConversationID,
		contact.Name, contact.Phone, contact.Email, string(qualification),
		contact.CreatedAt, contact.UpdatedAt,
	).Scan(&contact.ID, &contact.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

// MergeQualification folds answered qualification fields into the contact
// record inside one transaction.
func (s *Store) MergeQualification(ctx context.Context, organizationID, contactID string, answers map[string]string) (map[string]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `
		SELECT qualification FROM contacts WHERE id = ? AND organization_id = ?
	`, contactID, organizationID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	merged := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return nil, fmt.Errorf("qualification: %w", err)
	}
	for k, v := range answers {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE contacts SET qualification = ?, updated_at = ? WHERE id = ? AND organization_id = ?
	`, string(out), time.Now().UTC(), contactID, organizationID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return merged, nil
}

// DefaultBoard returns the organization's first board and its first stage,
// creating a default pipeline when the organization has none yet.
func (s *Store) DefaultBoard(ctx context.Context, organizationID string) (*model.Board, []model.BoardStage, error) {
	board := &model.Board{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name FROM boards WHERE organization_id = ? ORDER BY rowid LIMIT 1
	`, organizationID).Scan(&board.ID, &board.OrganizationID, &board.Name)
	if errors.Is(err, sql.ErrNoRows) {
		board, err = s.createDefaultBoard(ctx, organizationID)
		if err != nil {
			return nil, nil, err
		}
	} else if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, name, position FROM board_stages WHERE board_id = ? ORDER BY position
	`, board.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var stages []model.BoardStage
	for rows.Next() {
		var st model.BoardStage
		if err := rows.Scan(&st.ID, &st.BoardID, &st.Name, &st.Position); err != nil {
			return nil, nil, err
		}
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(stages) == 0 {
		return nil, nil, fmt.Errorf("board %s has no stages", board.ID)
	}

	return board, stages, nil
}

var defaultStages = []string{"Novo", "Qualificado", "Proposta", "Fechado"}

func (s *Store) createDefaultBoard(ctx context.Context, organizationID string) (*model.Board, error) {
	board := &model.Board{
		ID:             uuid.Must(uuid.NewV7()).String(),
		OrganizationID: organizationID,
		Name:           "Funil de Vendas",
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO boards (id, organization_id, name) VALUES (?, ?, ?)
	`, board.ID, board.OrganizationID, board.Name); err != nil {
		return nil, err
	}

	for i, name := range defaultStages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO board_stages (id, board_id, name, position) VALUES (?, ?, ?, ?)
		`, uuid.Must(uuid.NewV7()).String(), board.ID, name, i); err != nil {
			return nil, err
		}
	}

	return board, tx.Commit()
}

// FindOpenDeal returns the contact's open deal with the given title, or the
// most recent open deal when title is empty. Returns nil, nil when absent.
func (s *Store) FindOpenDeal(ctx context.Context, organizationID, contactID, title string) (*model.Deal, error) {
	query := `
		SELECT id, organization_id, contact_id, board_id, stage_id, title, amount, status, created_at, updated_at
		FROM deals
		WHERE organization_id = ? AND contact_id = ? AND status = 'open'`
	args := []any{organizationID, contactID}
	if title != "" {
		query += ` AND title = ?`
		args = append(args, title)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	deal := &model.Deal{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&deal.ID, &deal.OrganizationID, &deal.ContactID, &deal.BoardID, &deal.StageID,
		&deal.Title, &deal.Amount, &deal.Status, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return deal, nil
}

// CreateDeal inserts a deal.
func (s *Store) CreateDeal(ctx context.Context, deal *model.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC()
	deal.CreatedAt = now
	deal.UpdatedAt = now
	if deal.Status == "" {
		deal.Status = model.DealOpen
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deals (id, organization_id, contact_id, board_id, stage_id, title, amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, deal.ID, deal.OrganizationID, deal.ContactID, deal.BoardID, deal.StageID,
		deal.Title, deal.Amount, deal.Status, deal.CreatedAt, deal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create deal: %w", err)
	}
	return nil
}

// MoveDeal sets the deal's stage. Moving to the current stage is a no-op.
func (s *Store) MoveDeal(ctx context.Context, organizationID, dealID, stageID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE deals SET stage_id = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, stageID, time.Now().UTC(), dealID, organizationID)
	if err != nil {
		return fmt.Errorf("move deal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// StageByName resolves a stage of a board by case-insensitive name.
func (s *Store) StageByName(ctx context.Context, boardID, name string) (*model.BoardStage, error) {
	st := &model.BoardStage{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, name, position FROM board_stages
		WHERE board_id = ? AND name = ? COLLATE NOCASE
	`, boardID, name).Scan(&st.ID, &st.BoardID, &st.Name, &st.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// OpenSlots lists unbooked agenda slots starting at or after from.
func (s *Store) OpenSlots(ctx context.Context, organizationID string, from time.Time, limit int) ([]model.AgendaSlot, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, starts_at, ends_at, booked
		FROM agenda_slots
		WHERE organization_id = ? AND booked = 0 AND starts_at >= ?
		ORDER BY starts_at
		LIMIT ?
	`, organizationID, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AgendaSlot
	for rows.Next() {
		var slot model.AgendaSlot
		if err := rows.Scan(&slot.ID, &slot.OrganizationID, &slot.StartsAt, &slot.EndsAt, &slot.Booked); err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

// AddSlot inserts an agenda slot (dev seeding and tests).
func (s *Store) AddSlot(ctx context.Context, slot model.AgendaSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.Must(uuid.NewV7()).String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agenda_slots (id, organization_id, starts_at, ends_at, booked)
		VALUES (?, ?, ?, ?, ?)
	`, slot.ID, slot.OrganizationID, slot.StartsAt, slot.EndsAt, slot.Booked)
	return err
}

// MatchProperties queries listings by optional neighborhood, bedroom count
// and price ceiling.
func (s *Store) MatchProperties(ctx context.Context, organizationID, neighborhood string, bedrooms int, maxPrice int64, limit int) ([]model.Property, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT id, organization_id, title, kind, neighborhood, bedrooms, price
		FROM properties
		WHERE organization_id = ?`
	args := []any{organizationID}
	if neighborhood != "" {
		query += ` AND neighborhood = ? COLLATE NOCASE`
		args = append(args, neighborhood)
	}
	if bedrooms > 0 {
		query += ` AND bedrooms >= ?`
		args = append(args, bedrooms)
	}
	if maxPrice > 0 {
		query += ` AND price <= ?`
		args = append(args, maxPrice)
	}
	query += ` ORDER BY price LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Property
	for rows.Next() {
		var p model.Property
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Title, &p.Kind, &p.Neighborhood, &p.Bedrooms, &p.Price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddProperty inserts a listing (dev seeding and tests).
func (s *Store) AddProperty(ctx context.Context, p model.Property) error {
	if p.ID == "" {
		p.ID = uuid.Must(uuid.NewV7()).String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (id, organization_id, title, kind, neighborhood, bedrooms, price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.OrganizationID, p.Title, p.Kind, p.Neighborhood, p.Bedrooms, p.Price)
	return err
}
