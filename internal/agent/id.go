package agent

import "github.com/google/uuid"

// newEventID returns a time-ordered unique identifier for turn events.
func newEventID() string {
	return uuid.Must(uuid.NewV7()).String()
}
