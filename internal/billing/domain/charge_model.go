package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChargeModel selects which business event triggers credit debits for a tenant.
type ChargeModel string

const (
	// ChargeModelStageChange debits credits when a lead moves into a
	// charging stage. The only model exercised by the transition path.
	ChargeModelStageChange ChargeModel = "stage_change"
	// ChargeModelLeadAccess is reserved for charging on lead access.
	// Accepted in configuration, never charged on transitions.
	ChargeModelLeadAccess ChargeModel = "lead_access"
	// ChargeModelAgentExecution is reserved for charging on agent runs.
	// Accepted in configuration, never charged on transitions.
	ChargeModelAgentExecution ChargeModel = "agent_execution"
)

var knownChargeModels = map[ChargeModel]struct{}{
	ChargeModelStageChange:    {},
	ChargeModelLeadAccess:     {},
	ChargeModelAgentExecution: {},
}

// IsKnownChargeModel reports whether the value is a valid charge model.
func IsKnownChargeModel(model ChargeModel) bool {
	_, ok := knownChargeModels[model]
	return ok
}

// Configuration is a tenant's billing configuration, one row per tenant.
type Configuration struct {
	TenantID           uuid.UUID
	ChargeModel        ChargeModel
	DebitOnStageChange bool
	UpdatedAt          time.Time
}
