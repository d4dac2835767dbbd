package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vendaflow/agent-core/internal/model"
)

// AgentConfig loads the organization's agent configuration. The admin
// surface that mutates it lives outside this service.
func (s *Store) AgentConfig(ctx context.Context, organizationID string) (*model.AgentConfig, error) {
	cfg := &model.AgentConfig{}
	var qualFields, transferKeywords string

	err := s.db.QueryRowContext(ctx, `
		SELECT organization_id, agent_name, provider, model, business_type,
			qualification_fields, transfer_keywords, webhook_secret,
			quota_period, quota_limit, quota_reply_text, fallback_reply_text
		FROM agent_configs
		WHERE organization_id = ?
	`, organizationID).Scan(
		&cfg.OrganizationID, &cfg.AgentName, &cfg.Provider, &cfg.Model, &cfg.BusinessType,
		&qualFields, &transferKeywords, &cfg.WebhookSecret,
		&cfg.QuotaPeriod, &cfg.QuotaLimit, &cfg.QuotaReplyText, &cfg.FallbackReplyText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load agent config: %w", err)
	}

	if err := json.Unmarshal([]byte(qualFields), &cfg.QualificationFields); err != nil {
		return nil, fmt.Errorf("qualification_fields: %w", err)
	}
	if err := json.Unmarshal([]byte(transferKeywords), &cfg.TransferKeywords); err != nil {
		return nil, fmt.Errorf("transfer_keywords: %w", err)
	}

	return cfg, nil
}

// SeedOrganization bootstraps an organization, its agent config and a
// default pipeline board. Used by dev setup and tests.
func (s *Store) SeedOrganization(ctx context.Context, org model.Organization, cfg model.AgentConfig) error {
	qualFields, err := json.Marshal(cfg.QualificationFields)
	if err != nil {
		return err
	}
	transferKeywords, err := json.Marshal(cfg.TransferKeywords)
	if err != nil {
		return err
	}
	if cfg.QuotaPeriod == "" {
		cfg.QuotaPeriod = model.PeriodMonth
	}
	if cfg.Provider == "" {
		cfg.Provider = model.ProviderOpenAI
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`, org.ID, org.Name, time.Now().UTC()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO agent_configs (organization_id, agent_name, provider, model, business_type,
			qualification_fields, transfer_keywords, webhook_secret,
			quota_period, quota_limit, quota_reply_text, fallback_reply_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (organization_id) DO UPDATE SET
			agent_name = excluded.agent_name,
			provider = excluded.provider,
			model = excluded.model,
			business_type = excluded.business_type,
			qualification_fields = excluded.qualification_fields,
			transfer_keywords = excluded.transfer_keywords,
			webhook_secret = excluded.webhook_secret,
			quota_period = excluded.quota_period,
			quota_limit = excluded.quota_limit,
			quota_reply_text = excluded.quota_reply_text,
			fallback_reply_text = excluded.fallback_reply_text
	`, org.ID, cfg.AgentName, cfg.Provider, cfg.Model, cfg.BusinessType,
		string(qualFields), string(transferKeywords), cfg.WebhookSecret,
		cfg.QuotaPeriod, cfg.QuotaLimit, cfg.QuotaReplyText, cfg.FallbackReplyText); err != nil {
		return err
	}

	return tx.Commit()
}
