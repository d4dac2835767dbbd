package model

import (
	"time"
)

// UsageRecord is a per-organization, per-period counter of model usage.
// Counters are monotonically non-decreasing within a period.
type UsageRecord struct {
	OrganizationID string     `json:"organization_id"`
	PeriodType     PeriodType `json:"period_type"`
	PeriodStart    time.Time  `json:"period_start"`
	RequestsUsed   int64      `json:"requests_used"`
	TokensIn       int64      `json:"tokens_in"`
	TokensOut      int64      `json:"tokens_out"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UsageSummary is the governance dashboard read surface.
type UsageSummary struct {
	OrganizationID string      `json:"organization_id"`
	PeriodType     PeriodType  `json:"period_type"`
	Limit          int64       `json:"limit"`
	Current        UsageRecord `json:"current"`
}
