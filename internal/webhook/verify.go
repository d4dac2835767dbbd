package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrUnauthorized marks a failed signature check. The request is discarded;
// the provider retries the HTTP call on its own schedule.
var ErrUnauthorized = errors.New("webhook signature verification failed")

// Sign computes the hex HMAC-SHA256 of body under the organization's
// webhook secret. Exposed for tests and for provider registration tooling.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the provider signature header against the body.
// Accepts the value with or without the "sha256=" prefix; comparison is
// constant time.
func VerifySignature(secret, signature string, body []byte) error {
	if secret == "" {
		// An organization without a configured secret accepts unsigned
		// deliveries (local development).
		return nil
	}
	if signature == "" {
		return ErrUnauthorized
	}

	signature = strings.TrimPrefix(signature, "sha256=")
	expected := strings.TrimPrefix(Sign(secret, body), "sha256=")

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrUnauthorized
	}
	return nil
}
