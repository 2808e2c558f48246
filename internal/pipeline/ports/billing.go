// Package ports declares the collaborator contracts the pipeline context
// consumes. Implementations live in other contexts or in internal/adapters.
package ports

import (
	"context"

	"github.com/google/uuid"
)

// ChargeDecision is the billing policy's verdict for a single transition.
type ChargeDecision struct {
	Chargeable  bool
	AmountCents int64
}

// StageChargeSettings is the slice of stage state the policy inspects.
type StageChargeSettings struct {
	ChargesCredits bool
	CostCents      *int64
}

// ChargeOutcome records the result of a billable transition attempt.
type ChargeOutcome struct {
	TenantID      uuid.UUID
	LeadID        uuid.UUID
	StageID       uuid.UUID
	AmountCents   int64
	Succeeded     bool
	FailureReason *string
}

// ChargePolicy resolves whether a transition is chargeable and records the
// outcome of each billable attempt. Backed by the billing context.
type ChargePolicy interface {
	ResolveCharge(ctx context.Context, tenantID uuid.UUID, stage StageChargeSettings) (ChargeDecision, error)
	RecordCharge(ctx context.Context, outcome ChargeOutcome) error
}
