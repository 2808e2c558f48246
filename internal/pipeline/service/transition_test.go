package service

import (
	"context"
	"errors"
	"testing"
	"time"

	appevents "pipeline_backend/internal/events"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/ports"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

type executorFixture struct {
	executor *Executor
	stages   *fakeStages
	store    *fakeTransitions
	charges  *fakeChargePolicy
	ledger   *fakeLedger
	locker   *fakeLocker
	bus      *recordingBus
}

func newExecutorFixture() *executorFixture {
	fx := &executorFixture{
		stages:  newFakeStages(),
		store:   newFakeTransitions(),
		charges: &fakeChargePolicy{},
		ledger:  &fakeLedger{},
		locker:  &fakeLocker{},
		bus:     &recordingBus{},
	}
	fx.executor = NewExecutor(fx.store, fx.stages, fx.charges, fx.ledger, fx.locker, fx.bus, testLogger(), time.Second)
	return fx
}

// Setup shared by the billing scenarios: an initial "New" stage with no
// charge and a "Qualified" stage costing 500.
func (fx *executorFixture) seedBillingPipeline(tenantID uuid.UUID) (initial, qualified repository.Stage) {
	cost := int64(500)
	initial = fx.stages.add(repository.Stage{TenantID: tenantID, Name: "New", Category: "new", IsInitial: true, Ordinal: 0})
	qualified = fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Qualified", Category: "qualifying", Ordinal: 1, ChargesCredits: true, CostCents: &cost})
	fx.charges.decision = ports.ChargeDecision{Chargeable: true, AmountCents: cost}
	return initial, qualified
}

func TestTransitionChargesWhenBalanceSuffices(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	initial, qualified := fx.seedBillingPipeline(tenantID)
	fx.ledger.balance = 1000

	lead := fx.store.addLead(tenantID, uuid.New(), time.Now().Add(-24*time.Hour))

	resp, err := fx.executor.Transition(context.Background(), tenantID, lead.ID, transport.TransitionRequest{
		TargetStageID: qualified.ID,
	}, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if resp.PreviousStageID == nil || *resp.PreviousStageID != initial.ID {
		t.Fatal("unassigned lead should transition from the initial stage")
	}
	if resp.NewStageID != qualified.ID {
		t.Fatal("lead should land on the target stage")
	}
	if len(resp.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", resp.Warnings)
	}

	outcomes := fx.charges.recorded()
	if len(outcomes) != 1 || !outcomes[0].Succeeded || outcomes[0].AmountCents != 500 {
		t.Fatalf("expected one succeeded charge record of 500, got %+v", outcomes)
	}
	if fx.ledger.balance != 500 {
		t.Fatalf("ledger should have been debited, balance %d", fx.ledger.balance)
	}
}

func TestTransitionSucceedsWithWarningWhenDebitFails(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	_, qualified := fx.seedBillingPipeline(tenantID)
	fx.ledger.balance = 100 // below the 500 cost

	lead := fx.store.addLead(tenantID, uuid.New(), time.Now().Add(-time.Hour))

	resp, err := fx.executor.Transition(context.Background(), tenantID, lead.ID, transport.TransitionRequest{
		TargetStageID: qualified.ID,
	}, nil)
	if err != nil {
		t.Fatalf("a failed debit must not fail the transition, got %v", err)
	}

	if assigned, _ := fx.store.GetAssignedStageID(context.Background(), tenantID, lead.ID); assigned == nil || *assigned != qualified.ID {
		t.Fatal("assignment must move despite the failed charge")
	}

	if len(resp.Warnings) != 1 || resp.Warnings[0].Type != domain.WarningChargeFailed {
		t.Fatalf("expected a single charge_failed warning, got %v", resp.Warnings)
	}

	outcomes := fx.charges.recorded()
	if len(outcomes) != 1 || outcomes[0].Succeeded {
		t.Fatalf("expected one failed charge record, got %+v", outcomes)
	}
	if outcomes[0].FailureReason == nil {
		t.Fatal("failed charge record must carry a reason")
	}
}

func TestTransitionSameStagePermitted(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	stage := fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Contacted", Category: "contacted"})

	lead := fx.store.addLead(tenantID, uuid.New(), time.Now().Add(-time.Hour))
	fx.store.assignments[lead.ID] = stage.ID

	reason := "re-confirmed by agent"
	resp, err := fx.executor.Transition(context.Background(), tenantID, lead.ID, transport.TransitionRequest{
		TargetStageID: stage.ID,
		Reason:        &reason,
	}, nil)
	if err != nil {
		t.Fatalf("same-stage transition must be permitted, got %v", err)
	}

	if resp.PreviousStageID == nil || *resp.PreviousStageID != stage.ID || resp.NewStageID != stage.ID {
		t.Fatal("same-stage transition should record previous == new")
	}
	if len(fx.store.history) != 1 {
		t.Fatalf("expected one history record, got %d", len(fx.store.history))
	}
	if fx.store.history[0].Reason == nil || *fx.store.history[0].Reason != reason {
		t.Fatal("reason should be re-stamped on the history record")
	}
}

func TestTransitionDurationFallsBackToLeadCreation(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	stage := fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Contacted", Category: "contacted"})

	createdAt := time.Now().Add(-48 * time.Hour)
	lead := fx.store.addLead(tenantID, uuid.New(), createdAt)

	resp, err := fx.executor.Transition(context.Background(), tenantID, lead.ID, transport.TransitionRequest{TargetStageID: stage.ID}, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp.DurationHours < 47.9 || resp.DurationHours > 48.1 {
		t.Fatalf("duration should be measured from lead creation, got %f", resp.DurationHours)
	}
}

func TestTransitionDurationFromLastHistoryRecord(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	first := fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Contacted", Category: "contacted"})
	second := fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Won", Category: "won"})

	lead := fx.store.addLead(tenantID, uuid.New(), time.Now().Add(-100*time.Hour))
	fx.store.assignments[lead.ID] = first.ID
	fx.store.history = append(fx.store.history, repository.TransitionRecord{
		ID:         uuid.New(),
		TenantID:   tenantID,
		LeadID:     lead.ID,
		NewStageID: first.ID,
		CreatedAt:  time.Now().Add(-2 * time.Hour),
	})

	resp, err := fx.executor.Transition(context.Background(), tenantID, lead.ID, transport.TransitionRequest{TargetStageID: second.ID}, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp.DurationHours < 1.9 || resp.DurationHours > 2.1 {
		t.Fatalf("duration should be measured from the last history record, got %f", resp.DurationHours)
	}
}

func TestTransitionUnknownLead(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	stage := fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Contacted", Category: "contacted"})

	_, err := fx.executor.Transition(context.Background(), tenantID, uuid.New(), transport.TransitionRequest{TargetStageID: stage.ID}, nil)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionInactiveTargetStage(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	stage := fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Retired", Category: "lost"})
	_ = fx.stages.DeactivateStage(context.Background(), tenantID, stage.ID)

	lead := fx.store.addLead(tenantID, uuid.New(), time.Now())
	_, err := fx.executor.Transition(context.Background(), tenantID, lead.ID, transport.TransitionRequest{TargetStageID: stage.ID}, nil)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("inactive target must be reported as not found, got %v", err)
	}
	if len(fx.store.history) != 0 {
		t.Fatal("no history record may be written for a rejected transition")
	}
}

func TestTransitionCommitFailureIsFatal(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	stage := fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Contacted", Category: "contacted"})
	lead := fx.store.addLead(tenantID, uuid.New(), time.Now())
	fx.store.commitErr = errors.New("serialization failure")

	_, err := fx.executor.Transition(context.Background(), tenantID, lead.ID, transport.TransitionRequest{TargetStageID: stage.ID}, nil)
	if !apperr.Is(err, apperr.KindTransitionFailed) {
		t.Fatalf("expected transition failed, got %v", err)
	}
	if fx.ledger.debits != 0 {
		t.Fatal("the ledger must never be called when the commit fails")
	}
	if len(fx.charges.recorded()) != 0 {
		t.Fatal("no charge record may be written when the commit fails")
	}
}

func TestTransitionHoldsAndReleasesLeadLock(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	stage := fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Contacted", Category: "contacted"})
	lead := fx.store.addLead(tenantID, uuid.New(), time.Now())

	if _, err := fx.executor.Transition(context.Background(), tenantID, lead.ID, transport.TransitionRequest{TargetStageID: stage.ID}, nil); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if fx.locker.acquired != 1 || fx.locker.released != 1 {
		t.Fatalf("lock should be acquired and released once, got %d/%d", fx.locker.acquired, fx.locker.released)
	}
}

func TestTransitionPublishesEvent(t *testing.T) {
	fx := newExecutorFixture()
	tenantID := uuid.New()
	stage := fx.stages.add(repository.Stage{TenantID: tenantID, Name: "Contacted", Category: "contacted"})
	lead := fx.store.addLead(tenantID, uuid.New(), time.Now())

	if _, err := fx.executor.Transition(context.Background(), tenantID, lead.ID, transport.TransitionRequest{TargetStageID: stage.ID, Automatic: true}, nil); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	var found bool
	for _, event := range fx.bus.events {
		if transitioned, ok := event.(appevents.LeadStageTransitioned); ok {
			found = true
			if transitioned.LeadID != lead.ID || transitioned.NewStageID != stage.ID || !transitioned.Automatic {
				t.Fatalf("event carries wrong payload: %+v", transitioned)
			}
		}
	}
	if !found {
		t.Fatal("expected a stage transitioned event")
	}
}
