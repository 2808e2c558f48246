package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	appevents "pipeline_backend/internal/events"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/ports"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/platform/apperr"
	"pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultLedgerTimeout = 5 * time.Second

// Executor moves a single lead between stages. Each attempt either commits
// the assignment update and history record together or leaves no trace; the
// ledger debit runs strictly after that commit and can only downgrade the
// response with a charge_failed warning, never fail it.
type Executor struct {
	store         repository.TransitionStore
	stages        repository.StageReader
	charges       ports.ChargePolicy
	ledger        ports.CreditLedger
	locker        ports.LeadLocker
	bus           appevents.Bus
	log           *logger.Logger
	ledgerTimeout time.Duration
	now           func() time.Time
}

func NewExecutor(
	store repository.TransitionStore,
	stages repository.StageReader,
	charges ports.ChargePolicy,
	ledger ports.CreditLedger,
	locker ports.LeadLocker,
	bus appevents.Bus,
	log *logger.Logger,
	ledgerTimeout time.Duration,
) *Executor {
	if ledgerTimeout <= 0 {
		ledgerTimeout = defaultLedgerTimeout
	}
	return &Executor{
		store:         store,
		stages:        stages,
		charges:       charges,
		ledger:        ledger,
		locker:        locker,
		bus:           bus,
		log:           log,
		ledgerTimeout: ledgerTimeout,
		now:           time.Now,
	}
}

// Transition moves one lead to the target stage. A same-stage move is
// permitted and recorded; it re-stamps reason and actor without disturbing
// the assignment.
func (e *Executor) Transition(ctx context.Context, tenantID, leadID uuid.UUID, req transport.TransitionRequest, actorID *uuid.UUID) (transport.TransitionResponse, error) {
	target, err := e.resolveTarget(ctx, tenantID, req.TargetStageID)
	if err != nil {
		return transport.TransitionResponse{}, err
	}
	return e.execute(ctx, tenantID, leadID, target, req.Reason, req.Automatic, actorID)
}

// resolveTarget verifies the target stage exists, is active, and belongs to
// the tenant.
func (e *Executor) resolveTarget(ctx context.Context, tenantID, targetStageID uuid.UUID) (repository.Stage, error) {
	target, err := e.stages.GetStage(ctx, tenantID, targetStageID)
	if err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return repository.Stage{}, apperr.NotFound("target stage not found")
		}
		return repository.Stage{}, apperr.Wrap(apperr.KindInternal, "failed to load target stage", err)
	}
	if !target.Active {
		return repository.Stage{}, apperr.NotFound("target stage not found")
	}
	return target, nil
}

// execute runs the locked read-compute-commit window plus the post-commit
// billing step for one lead. The target stage has already been validated.
func (e *Executor) execute(ctx context.Context, tenantID, leadID uuid.UUID, target repository.Stage, reason *string, automatic bool, actorID *uuid.UUID) (transport.TransitionResponse, error) {
	release, err := e.locker.AcquireLead(ctx, tenantID, leadID)
	if err != nil {
		return transport.TransitionResponse{}, apperr.Wrap(apperr.KindInternal, "failed to acquire lead lock", err)
	}
	defer release()

	lead, err := e.store.GetLead(ctx, tenantID, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			return transport.TransitionResponse{}, apperr.NotFound("lead not found")
		}
		return transport.TransitionResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	previousStageID, err := e.resolveCurrentStage(ctx, tenantID, leadID)
	if err != nil {
		return transport.TransitionResponse{}, err
	}

	durationHours, err := e.computeDuration(ctx, lead)
	if err != nil {
		return transport.TransitionResponse{}, err
	}

	record, err := e.store.CommitTransition(ctx, repository.CommitTransitionParams{
		TenantID:        tenantID,
		CampaignID:      lead.CampaignID,
		LeadID:          leadID,
		PreviousStageID: previousStageID,
		NewStageID:      target.ID,
		Reason:          reason,
		Automatic:       automatic,
		DurationHours:   durationHours,
		ActorID:         actorID,
	})
	if err != nil {
		return transport.TransitionResponse{}, apperr.TransitionFailed("failed to commit stage transition", err)
	}

	fromStage := ""
	if previousStageID != nil {
		fromStage = previousStageID.String()
	}
	e.log.StageTransition(tenantID.String(), leadID.String(), fromStage, target.ID.String(), automatic, durationHours)

	e.bus.Publish(ctx, appevents.LeadStageTransitioned{
		BaseEvent:       appevents.NewBaseEvent(),
		TenantID:        tenantID,
		LeadID:          leadID,
		PreviousStageID: previousStageID,
		NewStageID:      target.ID,
		Automatic:       automatic,
	})

	warnings := make([]domain.Warning, 0, 1)
	if warning := e.settleCharge(ctx, tenantID, leadID, target, record.ID); warning != nil {
		warnings = append(warnings, *warning)
	}

	return transport.TransitionResponse{
		PreviousStageID: record.PreviousStageID,
		NewStageID:      record.NewStageID,
		ChangedAt:       record.CreatedAt,
		DurationHours:   record.DurationHours,
		Warnings:        warnings,
	}, nil
}

// resolveCurrentStage returns the lead's assigned stage, falling back to the
// tenant's initial stage for leads that were never assigned. Nil only when
// the tenant has no initial stage configured.
func (e *Executor) resolveCurrentStage(ctx context.Context, tenantID, leadID uuid.UUID) (*uuid.UUID, error) {
	assigned, err := e.store.GetAssignedStageID(ctx, tenantID, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load stage assignment", err)
	}
	if assigned != nil {
		return assigned, nil
	}

	initial, err := e.stages.GetInitialStage(ctx, tenantID)
	if errors.Is(err, repository.ErrStageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load initial stage", err)
	}
	return &initial.ID, nil
}

// computeDuration measures hours since the lead's last transition, or since
// lead creation when no history exists.
func (e *Executor) computeDuration(ctx context.Context, lead repository.Lead) (float64, error) {
	last, err := e.store.GetLastTransition(ctx, lead.TenantID, lead.ID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to load last transition", err)
	}

	since := lead.CreatedAt
	if last != nil {
		since = last.CreatedAt
	}

	hours := e.now().Sub(since).Hours()
	if hours < 0 {
		hours = 0
	}
	return hours, nil
}

// settleCharge runs the post-commit billing step. The returned warning, if
// any, is the only way billing trouble surfaces to the caller.
func (e *Executor) settleCharge(ctx context.Context, tenantID, leadID uuid.UUID, target repository.Stage, transitionID uuid.UUID) *domain.Warning {
	decision, err := e.charges.ResolveCharge(ctx, tenantID, ports.StageChargeSettings{
		ChargesCredits: target.ChargesCredits,
		CostCents:      target.CostCents,
	})
	if err != nil {
		e.log.ChargeOutcome(tenantID.String(), leadID.String(), target.ID.String(), 0, false, err.Error())
		warning := domain.NewChargeFailedWarning("billing policy could not be resolved")
		return &warning
	}
	if !decision.Chargeable {
		return nil
	}

	// The debit gets its own deadline so a slow ledger cannot hold the
	// request, and it survives caller cancellation: the stage move is
	// already durable at this point.
	debitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.ledgerTimeout)
	defer cancel()

	reference := fmt.Sprintf("stage-transition:%s", transitionID)
	_, debitErr := e.ledger.Debit(debitCtx, tenantID, decision.AmountCents, reference)

	outcome := ports.ChargeOutcome{
		TenantID:    tenantID,
		LeadID:      leadID,
		StageID:     target.ID,
		AmountCents: decision.AmountCents,
		Succeeded:   debitErr == nil,
	}
	if debitErr != nil {
		reason := debitErr.Error()
		outcome.FailureReason = &reason
	}
	if err := e.charges.RecordCharge(context.WithoutCancel(ctx), outcome); err != nil {
		e.log.DatabaseError("record charge", err)
	}

	e.log.ChargeOutcome(tenantID.String(), leadID.String(), target.ID.String(), decision.AmountCents, debitErr == nil, failureReason(debitErr))

	if debitErr == nil {
		return nil
	}

	e.bus.Publish(ctx, appevents.ChargeFailed{
		BaseEvent:   appevents.NewBaseEvent(),
		TenantID:    tenantID,
		LeadID:      leadID,
		StageID:     target.ID,
		AmountCents: decision.AmountCents,
		Reason:      debitErr.Error(),
	})

	warning := domain.NewChargeFailedWarning(fmt.Sprintf("credit debit of %d failed: %s", decision.AmountCents, debitErr))
	return &warning
}

func failureReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
