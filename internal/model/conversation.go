// Package model defines data structures for the sales-agent core.
package model

import (
	"time"
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	// StatusOpen means the agent handles inbound messages automatically.
	StatusOpen ConversationStatus = "open"
	// StatusTransferred means a human operator owns the thread; the agent
	// records inbound messages but never calls the model.
	StatusTransferred ConversationStatus = "transferred"
	// StatusClosed means the thread ended; a new inbound message from the
	// same lead starts a fresh conversation.
	StatusClosed ConversationStatus = "closed"
)

// Conversation is an ongoing exchange with one lead on one channel.
// At most one non-closed conversation exists per (organization, channel
// identity); conversations are never hard-deleted.
type Conversation struct {
	ID              string             `json:"id"`
	OrganizationID  string             `json:"organization_id"`
	ChannelIdentity string             `json:"channel_identity"`
	PushName        string             `json:"push_name,omitempty"`
	Status          ConversationStatus `json:"status"`
	LastActivityAt  time.Time          `json:"last_activity_at"`
	CreatedAt       time.Time          `json:"created_at"`

	// Created reports whether this resolve call created the row.
	Created bool `json:"-"`
}

// ConversationSummary is the operator-facing list entry.
type ConversationSummary struct {
	Conversation
	MessageCount       int    `json:"message_count"`
	LastMessagePreview string `json:"last_message_preview,omitempty"`
}
