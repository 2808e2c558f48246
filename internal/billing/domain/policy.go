package domain

// ChargeableStage is the slice of stage state the charge decision depends on.
// Passing it explicitly keeps ResolveCharge free of hidden reads.
type ChargeableStage struct {
	ChargesCredits bool
	CostCents      *int64
}

// ChargeDecision is the outcome of resolving a transition against billing policy.
type ChargeDecision struct {
	Chargeable  bool
	AmountCents int64
}

// ResolveCharge decides whether moving a lead into the target stage is
// chargeable and for how much. Deterministic and side-effect free.
//
// A transition is chargeable only when all three independently owned pieces
// of state agree: the tenant's charge model is stage_change, the tenant has
// debit-on-stage-change enabled, and the target stage charges credits with a
// positive configured cost. The lead_access and agent_execution models are
// reserved for other trigger points and never charge here.
func ResolveCharge(cfg Configuration, stage ChargeableStage) ChargeDecision {
	if cfg.ChargeModel != ChargeModelStageChange {
		return ChargeDecision{}
	}
	if !cfg.DebitOnStageChange {
		return ChargeDecision{}
	}
	if !stage.ChargesCredits || stage.CostCents == nil || *stage.CostCents <= 0 {
		return ChargeDecision{}
	}

	return ChargeDecision{Chargeable: true, AmountCents: *stage.CostCents}
}
