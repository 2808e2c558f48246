package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	appevents "pipeline_backend/internal/events"
	"pipeline_backend/internal/pipeline/ports"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New("test")
}

// fakeStages is an in-memory StageStore.
type fakeStages struct {
	mu           sync.Mutex
	stages       map[uuid.UUID]repository.Stage
	leadsOnStage map[uuid.UUID]int
	unassigned   int
}

func newFakeStages() *fakeStages {
	return &fakeStages{
		stages:       make(map[uuid.UUID]repository.Stage),
		leadsOnStage: make(map[uuid.UUID]int),
	}
}

func (f *fakeStages) add(stage repository.Stage) repository.Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stage.ID == uuid.Nil {
		stage.ID = uuid.New()
	}
	stage.Active = true
	f.stages[stage.ID] = stage
	return stage
}

func (f *fakeStages) GetStage(_ context.Context, tenantID, id uuid.UUID) (repository.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stage, ok := f.stages[id]
	if !ok || stage.TenantID != tenantID {
		return repository.Stage{}, repository.ErrStageNotFound
	}
	return stage, nil
}

func (f *fakeStages) ListStages(_ context.Context, tenantID uuid.UUID, includeInactive bool) ([]repository.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Stage, 0)
	for _, stage := range f.stages {
		if stage.TenantID != tenantID {
			continue
		}
		if !stage.Active && !includeInactive {
			continue
		}
		out = append(out, stage)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Ordinal < out[i].Ordinal {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStages) GetInitialStage(_ context.Context, tenantID uuid.UUID) (repository.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stage := range f.stages {
		if stage.TenantID == tenantID && stage.Active && stage.IsInitial {
			return stage, nil
		}
	}
	return repository.Stage{}, repository.ErrStageNotFound
}

func (f *fakeStages) FindActiveStageByName(_ context.Context, tenantID uuid.UUID, name string) (repository.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stage := range f.stages {
		if stage.TenantID == tenantID && stage.Active && strings.EqualFold(stage.Name, name) {
			return stage, nil
		}
	}
	return repository.Stage{}, repository.ErrStageNotFound
}

func (f *fakeStages) CountActiveStages(_ context.Context, tenantID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, stage := range f.stages {
		if stage.TenantID == tenantID && stage.Active {
			count++
		}
	}
	return count, nil
}

func (f *fakeStages) CountLeadsOnStage(_ context.Context, _, stageID uuid.UUID, isInitial bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := f.leadsOnStage[stageID]
	if isInitial {
		count += f.unassigned
	}
	return count, nil
}

func (f *fakeStages) CreateStage(_ context.Context, params repository.CreateStageParams) (repository.Stage, error) {
	stage := repository.Stage{
		ID:                 uuid.New(),
		TenantID:           params.TenantID,
		Name:               params.Name,
		Category:           params.Category,
		Color:              params.Color,
		Icon:               params.Icon,
		Ordinal:            params.Ordinal,
		IsInitial:          params.IsInitial,
		IsFinal:            params.IsFinal,
		ChargesCredits:     params.ChargesCredits,
		CostCents:          params.CostCents,
		BillingDescription: params.BillingDescription,
		Active:             true,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages[stage.ID] = stage
	return stage, nil
}

func (f *fakeStages) UpdateStage(_ context.Context, tenantID, id uuid.UUID, params repository.UpdateStageParams) (repository.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stage, ok := f.stages[id]
	if !ok || stage.TenantID != tenantID {
		return repository.Stage{}, repository.ErrStageNotFound
	}
	if params.Name != nil {
		stage.Name = *params.Name
	}
	if params.Color != nil {
		stage.Color = *params.Color
	}
	if params.IconSet {
		stage.Icon = params.Icon
	}
	if params.IsFinal != nil {
		stage.IsFinal = *params.IsFinal
	}
	if params.ChargesCredits != nil {
		stage.ChargesCredits = *params.ChargesCredits
	}
	if params.CostCentsSet {
		stage.CostCents = params.CostCents
	}
	if params.BillingDescriptionSet {
		stage.BillingDescription = params.BillingDescription
	}
	stage.UpdatedAt = time.Now()
	f.stages[id] = stage
	return stage, nil
}

func (f *fakeStages) DeactivateStage(_ context.Context, tenantID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stage, ok := f.stages[id]
	if !ok || stage.TenantID != tenantID || !stage.Active {
		return repository.ErrStageNotFound
	}
	stage.Active = false
	f.stages[id] = stage
	return nil
}

func (f *fakeStages) ReorderStages(_ context.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ordinal, id := range orderedIDs {
		stage, ok := f.stages[id]
		if !ok || stage.TenantID != tenantID || !stage.Active {
			return repository.ErrStageNotFound
		}
		stage.Ordinal = ordinal
		f.stages[id] = stage
	}
	return nil
}

// fakeTransitions is an in-memory TransitionStore.
type fakeTransitions struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]repository.Lead
	assignments map[uuid.UUID]uuid.UUID
	history     []repository.TransitionRecord
	commitErr   error
}

func newFakeTransitions() *fakeTransitions {
	return &fakeTransitions{
		leads:       make(map[uuid.UUID]repository.Lead),
		assignments: make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeTransitions) addLead(tenantID, campaignID uuid.UUID, createdAt time.Time) repository.Lead {
	lead := repository.Lead{ID: uuid.New(), TenantID: tenantID, CampaignID: campaignID, CreatedAt: createdAt}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[lead.ID] = lead
	return lead
}

func (f *fakeTransitions) GetLead(_ context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, repository.ErrLeadNotFound
	}
	return lead, nil
}

func (f *fakeTransitions) GetAssignedStageID(_ context.Context, _, leadID uuid.UUID) (*uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stageID, ok := f.assignments[leadID]
	if !ok {
		return nil, nil
	}
	return &stageID, nil
}

func (f *fakeTransitions) GetLastTransition(_ context.Context, _, leadID uuid.UUID) (*repository.TransitionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].LeadID == leadID {
			record := f.history[i]
			return &record, nil
		}
	}
	return nil, nil
}

func (f *fakeTransitions) CommitTransition(_ context.Context, params repository.CommitTransitionParams) (repository.TransitionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return repository.TransitionRecord{}, f.commitErr
	}
	record := repository.TransitionRecord{
		ID:              uuid.New(),
		TenantID:        params.TenantID,
		LeadID:          params.LeadID,
		PreviousStageID: params.PreviousStageID,
		NewStageID:      params.NewStageID,
		Reason:          params.Reason,
		Automatic:       params.Automatic,
		DurationHours:   params.DurationHours,
		ActorID:         params.ActorID,
		CreatedAt:       time.Now(),
	}
	f.assignments[params.LeadID] = params.NewStageID
	f.history = append(f.history, record)
	return record, nil
}

// fakeChargePolicy resolves against a fixed decision and records outcomes.
type fakeChargePolicy struct {
	mu       sync.Mutex
	decision ports.ChargeDecision
	outcomes []ports.ChargeOutcome
}

func (f *fakeChargePolicy) ResolveCharge(_ context.Context, _ uuid.UUID, _ ports.StageChargeSettings) (ports.ChargeDecision, error) {
	return f.decision, nil
}

func (f *fakeChargePolicy) RecordCharge(_ context.Context, outcome ports.ChargeOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func (f *fakeChargePolicy) recorded() []ports.ChargeOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.ChargeOutcome(nil), f.outcomes...)
}

// fakeLedger debits against a fixed balance.
type fakeLedger struct {
	mu      sync.Mutex
	balance int64
	debits  int
}

func (f *fakeLedger) Debit(_ context.Context, _ uuid.UUID, amountCents int64, _ string) (ports.DebitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debits++
	if f.balance < amountCents {
		return ports.DebitResult{}, errors.New("insufficient balance")
	}
	f.balance -= amountCents
	return ports.DebitResult{NewBalanceCents: f.balance}, nil
}

// fakeLocker hands out locks immediately and counts acquisitions.
type fakeLocker struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (f *fakeLocker) AcquireLead(_ context.Context, _, _ uuid.UUID) (func(), error) {
	f.mu.Lock()
	f.acquired++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}, nil
}

// recordingBus captures published events.
type recordingBus struct {
	mu     sync.Mutex
	events []appevents.Event
}

func (b *recordingBus) Publish(_ context.Context, event appevents.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event appevents.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, appevents.Handler) {}
