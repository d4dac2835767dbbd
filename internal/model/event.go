package model

import (
	"time"
)

// EventType classifies a turn event published to the event stream.
type EventType string

const (
	EventTurnCompleted   EventType = "turn_completed"
	EventTransferred     EventType = "transferred"
	EventQuotaExceeded   EventType = "quota_exceeded"
	EventTurnFailed      EventType = "turn_failed"
	EventDeliveryFailure EventType = "delivery_failure"
)

// TurnEvent is emitted after each processed turn for downstream consumers
// (dashboard, audit). Fire-and-forget from the orchestrator's perspective.
type TurnEvent struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	ConversationID string         `json:"conversation_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// InboxActionItem is a follow-up task some tools enqueue for the external
// inbox subsystem (e.g. a handoff that needs a human). The core only writes
// these through the event publisher; it never owns them.
type InboxActionItem struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Kind           string    `json:"kind"`
	Title          string    `json:"title"`
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
