// Package adapters wires contexts together: each adapter translates one
// context's port into another context's (or an external system's) surface.
package adapters

import (
	"context"

	billingdomain "pipeline_backend/internal/billing/domain"
	billingrepo "pipeline_backend/internal/billing/repository"
	billingservice "pipeline_backend/internal/billing/service"
	"pipeline_backend/internal/pipeline/ports"

	"github.com/google/uuid"
)

// BillingChargePolicy adapts the billing service to the pipeline's
// ChargePolicy port, satisfying ports.ChargePolicy.
type BillingChargePolicy struct {
	svc *billingservice.Service
}

func NewBillingChargePolicy(svc *billingservice.Service) *BillingChargePolicy {
	return &BillingChargePolicy{svc: svc}
}

// ResolveCharge resolves the tenant's billing configuration against the
// target stage's charge settings.
func (a *BillingChargePolicy) ResolveCharge(ctx context.Context, tenantID uuid.UUID, stage ports.StageChargeSettings) (ports.ChargeDecision, error) {
	decision, err := a.svc.ResolveCharge(ctx, tenantID, billingdomain.ChargeableStage{
		ChargesCredits: stage.ChargesCredits,
		CostCents:      stage.CostCents,
	})
	if err != nil {
		return ports.ChargeDecision{}, err
	}
	return ports.ChargeDecision{
		Chargeable:  decision.Chargeable,
		AmountCents: decision.AmountCents,
	}, nil
}

// RecordCharge appends the attempt to the billing audit trail.
func (a *BillingChargePolicy) RecordCharge(ctx context.Context, outcome ports.ChargeOutcome) error {
	return a.svc.RecordCharge(ctx, billingrepo.CreateChargeParams{
		TenantID:      outcome.TenantID,
		LeadID:        outcome.LeadID,
		StageID:       outcome.StageID,
		AmountCents:   outcome.AmountCents,
		Succeeded:     outcome.Succeeded,
		FailureReason: outcome.FailureReason,
	})
}
