// Package webhook normalizes provider payloads into the canonical inbound
// message shape and verifies provider authenticity.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vendaflow/agent-core/internal/model"
)

var (
	// ErrInvalidPayload marks a malformed webhook body. Discarded; the
	// provider is never asked to retry it.
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrUnknownProvider marks an unrecognized provider segment.
	ErrUnknownProvider = errors.New("unknown webhook provider")
)

// Provider identifiers accepted on the webhook route.
const (
	ProviderCloud   = "cloud"
	ProviderGateway = "gateway"
)

// Normalize converts a raw provider payload into a NormalizedMessage. The
// provider guarantees no schema, so optional fields are tolerated and
// malformed required fields are rejected, never panicked on.
func Normalize(provider string, body []byte) (model.NormalizedMessage, error) {
	switch provider {
	case ProviderCloud:
		return normalizeCloud(body)
	case ProviderGateway:
		return normalizeGateway(body)
	default:
		return model.NormalizedMessage{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

// gatewayPayload is the flat shape third-party gateways post.
type gatewayPayload struct {
	From      string `json:"from"`
	PushName  string `json:"pushName"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	MediaURL  string `json:"mediaUrl"`
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
}

func normalizeGateway(body []byte) (model.NormalizedMessage, error) {
	var p gatewayPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return model.NormalizedMessage{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	nm := model.NormalizedMessage{
		From:      p.From,
		PushName:  p.PushName,
		Message:   p.Message,
		Type:      p.Type,
		MediaURL:  p.MediaURL,
		MessageID: p.MessageID,
		Timestamp: time.Now().UTC(),
	}
	if p.Timestamp > 0 {
		nm.Timestamp = time.Unix(p.Timestamp, 0).UTC()
	}
	if nm.Type == "" {
		nm.Type = "text"
	}

	return validate(nm)
}

// cloudPayload is the WhatsApp-Cloud-style nested shape.
type cloudPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
					Image struct {
						Link string `json:"link"`
					} `json:"image"`
					Audio struct {
						Link string `json:"link"`
					} `json:"audio"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func normalizeCloud(body []byte) (model.NormalizedMessage, error) {
	var p cloudPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return model.NormalizedMessage{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			if len(value.Messages) == 0 {
				continue
			}
			raw := value.Messages[0]

			nm := model.NormalizedMessage{
				From:      raw.From,
				Message:   raw.Text.Body,
				Type:      raw.Type,
				MessageID: raw.ID,
				Timestamp: time.Now().UTC(),
			}
			if nm.Type == "" {
				nm.Type = "text"
			}
			switch nm.Type {
			case "image":
				nm.MediaURL = raw.Image.Link
			case "audio":
				nm.MediaURL = raw.Audio.Link
			}
			if len(value.Contacts) > 0 {
				nm.PushName = value.Contacts[0].Profile.Name
			}
			if ts, err := strconv.ParseInt(raw.Timestamp, 10, 64); err == nil && ts > 0 {
				nm.Timestamp = time.Unix(ts, 0).UTC()
			}

			return validate(nm)
		}
	}

	// Status updates and other non-message callbacks arrive on the same
	// route; they carry no message and are invalid for this pipeline.
	return model.NormalizedMessage{}, fmt.Errorf("%w: no message in payload", ErrInvalidPayload)
}

func validate(nm model.NormalizedMessage) (model.NormalizedMessage, error) {
	if nm.From == "" {
		return model.NormalizedMessage{}, fmt.Errorf("%w: missing from", ErrInvalidPayload)
	}
	if nm.MessageID == "" {
		return model.NormalizedMessage{}, fmt.Errorf("%w: missing messageId", ErrInvalidPayload)
	}
	if nm.Message == "" && nm.MediaURL == "" {
		return model.NormalizedMessage{}, fmt.Errorf("%w: empty message", ErrInvalidPayload)
	}
	return nm, nil
}
