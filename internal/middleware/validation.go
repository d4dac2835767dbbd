package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateOrganizationID validates an organization ID path parameter.
func ValidateOrganizationID(id string) error {
	if len(id) == 0 {
		return errors.New("organization ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("organization ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("organization ID must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateWebhookBody bounds the webhook payload size and encoding.
func ValidateWebhookBody(body []byte) error {
	if len(body) == 0 {
		return errors.New("empty payload")
	}
	if len(body) > 1<<20 {
		return errors.New("payload exceeds maximum size")
	}
	if !utf8.Valid(body) {
		return errors.New("payload must be valid UTF-8")
	}
	return nil
}
