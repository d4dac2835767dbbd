package agent

// TurnState is the orchestrator's position in one turn's lifecycle.
// A turn walks Received → QuotaChecked → Composing → ToolLoop → Replying →
// Persisted; Failed is reachable from any state and Transferred from
// ToolLoop.
type TurnState string

const (
	StateReceived     TurnState = "received"
	StateQuotaChecked TurnState = "quota_checked"
	StateComposing    TurnState = "composing"
	StateToolLoop     TurnState = "tool_loop"
	StateReplying     TurnState = "replying"
	StatePersisted    TurnState = "persisted"
	StateTransferred  TurnState = "transferred"
	StateFailed       TurnState = "failed"
)

// FailReason explains a Failed turn. Distinguishable in logs and audit from
// a successful Transferred outcome.
type FailReason string

const (
	ReasonQuotaExceeded FailReason = "quota_exceeded"
	ReasonModelTimeout  FailReason = "model_timeout"
	ReasonModelFailure  FailReason = "model_failure"
	ReasonNoModelClient FailReason = "no_model_client"
)

// TurnResult summarizes one processed turn for the webhook handler and for
// audit.
type TurnResult struct {
	ConversationID string     `json:"conversation_id"`
	State          TurnState  `json:"state"`
	Reason         FailReason `json:"reason,omitempty"`
	Reply          string     `json:"reply,omitempty"`

	// Duplicate marks a redelivered provider message: nothing was written
	// and no model or tool work happened.
	Duplicate bool `json:"duplicate,omitempty"`

	// Suppressed marks an inbound recorded on a transferred conversation:
	// a human owns the thread, so the agent stays quiet.
	Suppressed bool `json:"suppressed,omitempty"`

	Rounds    int `json:"rounds,omitempty"`
	ToolCalls int `json:"tool_calls,omitempty"`
}
