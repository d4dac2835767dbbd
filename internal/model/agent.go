package model

// Provider identifies an LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// PeriodType is the quota accounting window.
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
	// PeriodAll counts forever and never resets.
	PeriodAll PeriodType = "all"
)

// AgentConfig is the per-organization agent configuration. It is mutated by
// the admin settings surface, which lives outside this service; the core
// only reads it.
type AgentConfig struct {
	OrganizationID string   `json:"organization_id"`
	AgentName      string   `json:"agent_name"`
	Provider       Provider `json:"provider"`
	Model          string   `json:"model"`

	// BusinessType selects the vertical prompt overlay (e.g. medical_clinic,
	// real_estate). Unknown or empty values fall back to the generic overlay.
	BusinessType string `json:"business_type"`

	// QualificationFields lists the fields the agent collects before a lead
	// counts as qualified, in the order they should be asked.
	QualificationFields []string `json:"qualification_fields"`

	// TransferKeywords are lead phrases that should trigger a handoff in
	// addition to the model's own judgement.
	TransferKeywords []string `json:"transfer_keywords,omitempty"`

	// WebhookSecret signs inbound webhook payloads for this organization.
	WebhookSecret string `json:"-"`

	// Quota settings. QuotaLimit <= 0 means unlimited.
	QuotaPeriod PeriodType `json:"quota_period"`
	QuotaLimit  int64      `json:"quota_limit"`

	// QuotaReplyText, when non-empty, is sent as a canned reply on quota
	// exhaustion instead of staying silent. The model is never invoked.
	QuotaReplyText string `json:"quota_reply_text,omitempty"`

	// FallbackReplyText is sent when the tool loop overruns or the model
	// fails. Empty means silence.
	FallbackReplyText string `json:"fallback_reply_text,omitempty"`
}

// Organization is the tenant boundary. Every entity is scoped by its ID.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
