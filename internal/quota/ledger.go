// Package quota tracks and enforces per-organization AI usage limits.
package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vendaflow/agent-core/internal/model"
)

// Decision is the outcome of a reservation attempt.
type Decision string

const (
	Allowed       Decision = "allowed"
	QuotaExceeded Decision = "quota_exceeded"
)

// Ledger enforces usage quotas against the shared store. Reservation is a
// single conditional increment; two concurrent turns racing for the last
// slot can never both pass.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger over an injected database handle.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// PeriodStart computes the UTC wall-clock boundary for a period type.
// PeriodAll maps to the zero time and never rolls over.
func PeriodStart(period model.PeriodType, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case model.PeriodDay:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case model.PeriodWeek:
		// ISO week: Monday 00:00 UTC.
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		day := now.AddDate(0, 0, -(weekday - 1))
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	case model.PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case model.PeriodAll:
		return time.Time{}
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// CheckAndReserve reserves one model invocation for the organization within
// the current period. Limit <= 0 means unlimited; usage is still counted.
func (l *Ledger) CheckAndReserve(ctx context.Context, organizationID string, period model.PeriodType, limit int64) (Decision, error) {
	now := time.Now().UTC()
	periodStart := PeriodStart(period, now)

	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO usage_records (organization_id, period_type, period_start, requests_used, tokens_in, tokens_out, updated_at)
		VALUES (?, ?, ?, 0, 0, 0, ?)
		ON CONFLICT (organization_id, period_type, period_start) DO NOTHING
	`, organizationID, period, periodStart, now); err != nil {
		return "", fmt.Errorf("ensure usage record: %w", err)
	}

	query := `
		UPDATE usage_records
		SET requests_used = requests_used + 1, updated_at = ?
		WHERE organization_id = ? AND period_type = ? AND period_start = ?`
	args := []any{now, organizationID, period, periodStart}
	if limit > 0 {
		query += ` AND requests_used < ?`
		args = append(args, limit)
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("reserve usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return QuotaExceeded, nil
	}
	return Allowed, nil
}

// AddTokens records token consumption after a model call. Counters only
// grow within a period.
func (l *Ledger) AddTokens(ctx context.Context, organizationID string, period model.PeriodType, tokensIn, tokensOut int) error {
	now := time.Now().UTC()
	_, err := l.db.ExecContext(ctx, `
		UPDATE usage_records
		SET tokens_in = tokens_in + ?, tokens_out = tokens_out + ?, updated_at = ?
		WHERE organization_id = ? AND period_type = ? AND period_start = ?
	`, tokensIn, tokensOut, now, organizationID, period, PeriodStart(period, now))
	return err
}

// Usage returns the organization's current-period record for the
// governance dashboard. A missing row reads as zero usage.
func (l *Ledger) Usage(ctx context.Context, organizationID string, period model.PeriodType) (*model.UsageRecord, error) {
	now := time.Now().UTC()
	periodStart := PeriodStart(period, now)

	rec := &model.UsageRecord{
		OrganizationID: organizationID,
		PeriodType:     period,
		PeriodStart:    periodStart,
	}
	err := l.db.QueryRowContext(ctx, `
		SELECT requests_used, tokens_in, tokens_out, updated_at
		FROM usage_records
		WHERE organization_id = ? AND period_type = ? AND period_start = ?
	`, organizationID, period, periodStart).Scan(
		&rec.RequestsUsed, &rec.TokensIn, &rec.TokensOut, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
