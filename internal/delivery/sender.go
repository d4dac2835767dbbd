// Package delivery abstracts outbound message delivery over messaging
// providers. The orchestrator treats a failed send as terminal for delivery
// but not for the conversation: the turn still persists.
package delivery

import (
	"context"
)

// Result is the provider's answer to a send attempt.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sender delivers one outbound text to a lead's channel identity.
type Sender interface {
	Send(ctx context.Context, organizationID, to, text string) (Result, error)
}

// Noop discards outbound messages. Used when no gateway is configured and
// in tests.
type Noop struct{}

func (Noop) Send(ctx context.Context, organizationID, to, text string) (Result, error) {
	return Result{Success: true}, nil
}
