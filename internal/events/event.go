// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"pipeline_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// LeadStageTransitioned is published after a lead's stage assignment and
// history record have been committed.
type LeadStageTransitioned struct {
	BaseEvent
	TenantID        uuid.UUID  `json:"tenantId"`
	LeadID          uuid.UUID  `json:"leadId"`
	PreviousStageID *uuid.UUID `json:"previousStageId,omitempty"`
	NewStageID      uuid.UUID  `json:"newStageId"`
	Automatic       bool       `json:"automatic"`
}

func (e LeadStageTransitioned) EventName() string { return "pipeline.stage.transitioned" }

// =============================================================================
// Billing Domain Events
// =============================================================================

// ChargeFailed is published when a ledger debit for a committed transition
// could not be completed. The transition itself has already succeeded.
type ChargeFailed struct {
	BaseEvent
	TenantID    uuid.UUID `json:"tenantId"`
	LeadID      uuid.UUID `json:"leadId"`
	StageID     uuid.UUID `json:"stageId"`
	AmountCents int64     `json:"amountCents"`
	Reason      string    `json:"reason"`
}

func (e ChargeFailed) EventName() string { return "billing.charge.failed" }
