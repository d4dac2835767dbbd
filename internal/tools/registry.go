// Package tools implements the closed set of CRM operations the model may
// invoke. Dispatch is an exhaustive switch over typed names; the only
// runtime boundary is parsing the model's raw JSON arguments at the edge.
package tools

import (
	"context"
	"fmt"

	"github.com/vendaflow/agent-core/internal/llm"
	"github.com/vendaflow/agent-core/internal/model"
	"github.com/vendaflow/agent-core/internal/store"
)

// Name identifies a tool. The set is closed; adding a tool means adding a
// constant, a case in Execute and a definition in Definitions.
type Name string

const (
	ToolCreateContact     Name = "create_contact"
	ToolCreateDeal        Name = "create_deal"
	ToolMoveDeal          Name = "move_deal"
	ToolQualifyLead       Name = "qualify_lead"
	ToolCheckAvailability Name = "check_availability"
	ToolPropertyMatch     Name = "property_match"
	ToolTransferToHuman   Name = "transfer_to_human"
)

// EventPublisher is the write-only interface to the external inbox/event
// subsystem. Deliveries are fire-and-forget.
type EventPublisher interface {
	PublishInboxItem(ctx context.Context, item *model.InboxActionItem) error
}

// Context carries the scope a tool executes under. Tools run with
// service-level database access because the lead has no session of its own;
// every query they issue is still filtered by OrganizationID.
type Context struct {
	OrganizationID string
	ConversationID string
	LeadIdentity   string
	LeadName       string

	Store  *store.Store
	Events EventPublisher
}

// Result is what a tool reports back to the model. Failures are content,
// not faults: the conversation continues and the model decides what to do.
type Result struct {
	Content  string
	IsError  bool
	EntityID string
}

func ok(entityID, format string, args ...any) Result {
	return Result{Content: fmt.Sprintf(format, args...), EntityID: entityID}
}

func fail(format string, args ...any) Result {
	return Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

// Registry executes tools against the shared store.
type Registry struct{}

// NewRegistry creates the tool registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Execute dispatches one tool call. Unknown names and malformed arguments
// come back as error results for the model, never as Go errors.
func (r *Registry) Execute(ctx context.Context, tc Context, name Name, rawArgs string) Result {
	switch name {
	case ToolCreateContact:
		return execCreateContact(ctx, tc, rawArgs)
	case ToolCreateDeal:
		return execCreateDeal(ctx, tc, rawArgs)
	case ToolMoveDeal:
		return execMoveDeal(ctx, tc, rawArgs)
	case ToolQualifyLead:
		return execQualifyLead(ctx, tc, rawArgs)
	case ToolCheckAvailability:
		return execCheckAvailability(ctx, tc, rawArgs)
	case ToolPropertyMatch:
		return execPropertyMatch(ctx, tc, rawArgs)
	case ToolTransferToHuman:
		return execTransferToHuman(ctx, tc, rawArgs)
	default:
		return fail("unknown tool: %s", name)
	}
}

// Definitions returns the tool schemas advertised to the model. The
// property_match tool is only offered to the real_estate vertical.
func (r *Registry) Definitions(businessType string) []llm.ToolDefinition {
	defs := []llm.ToolDefinition{
		createContactDef,
		createDealDef,
		moveDealDef,
		qualifyLeadDef,
		checkAvailabilityDef,
		transferToHumanDef,
	}
	if businessType == "real_estate" {
		defs = append(defs, propertyMatchDef)
	}
	return defs
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func integerProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}
