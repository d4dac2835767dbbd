package model

import (
	"time"
)

// Contact is a confirmed CRM contact created from a lead.
type Contact struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Name           string            `json:"name"`
	Phone          string            `json:"phone,omitempty"`
	Email          string            `json:"email,omitempty"`
	Qualification  map[string]string `json:"qualification,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// DealStatus is the lifecycle state of a deal.
type DealStatus string

const (
	DealOpen DealStatus = "open"
	DealWon  DealStatus = "won"
	DealLost DealStatus = "lost"
)

// Deal is a sales opportunity on a board.
type Deal struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ContactID      string     `json:"contact_id"`
	BoardID        string     `json:"board_id"`
	StageID        string     `json:"stage_id"`
	Title          string     `json:"title"`
	Amount         int64      `json:"amount,omitempty"`
	Status         DealStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Board is a deal pipeline; stages are ordered by position.
type Board struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
}

// BoardStage is one column of a board.
type BoardStage struct {
	ID       string `json:"id"`
	BoardID  string `json:"board_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// AgendaSlot is a bookable appointment window read by check_availability.
type AgendaSlot struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Booked         bool      `json:"booked"`
}

// Property is a real-estate listing read by property_match.
type Property struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Title          string `json:"title"`
	Kind           string `json:"kind"`
	Neighborhood   string `json:"neighborhood"`
	Bedrooms       int    `json:"bedrooms"`
	Price          int64  `json:"price"`
}
