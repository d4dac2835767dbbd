package model

import (
	"time"
)

// Direction classifies a message turn.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionTool     Direction = "tool"
)

// Message is an immutable turn within a conversation. Messages are
// append-only; history order is (CreatedAt, Seq) with Seq breaking ties by
// insertion order.
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	OrganizationID string `json:"organization_id"`

	// Content
	Direction Direction `json:"direction"`
	Content   string    `json:"content"`

	// Tool call payload (direction=tool only)
	ToolName   string `json:"tool_name,omitempty"`
	ToolArgs   string `json:"tool_args,omitempty"`
	ToolResult string `json:"tool_result,omitempty"`
	// EntityID references the CRM record a tool affected, for audit.
	EntityID string `json:"entity_id,omitempty"`

	// ProviderMessageID is assigned by the messaging provider. Empty for
	// outbound messages that have not been delivered yet.
	ProviderMessageID string `json:"provider_message_id,omitempty"`

	// DeliveryError records a failed outbound send. The turn still persists.
	DeliveryError string `json:"delivery_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Seq is the store-assigned insertion sequence, populated on read.
	Seq int64 `json:"seq,omitempty"`
}

// NormalizedMessage is the canonical inbound message shape produced by
// webhook ingestion, independent of the messaging provider.
type NormalizedMessage struct {
	From      string    `json:"from"`
	PushName  string    `json:"push_name,omitempty"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	MediaURL  string    `json:"media_url,omitempty"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ListMessagesResponse is the operator-facing history page.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
	LastSeq  int64     `json:"last_seq"`
}
