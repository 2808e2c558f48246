// Package service implements the pipeline engine's business operations:
// stage configuration, transition execution, history reads, and funnel
// metrics.
package service

import (
	"context"
	"errors"

	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/platform/apperr"
	"pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

// StageStore is the persistence surface of the stage registry.
type StageStore interface {
	repository.StageReader
	repository.StageWriter
}

// Registry owns the ordered set of pipeline stages for each tenant and
// enforces the structural invariants: at most one active initial stage,
// bounded stage count, unique names, consistent charge settings.
type Registry struct {
	stages StageStore
	log    *logger.Logger
}

func NewRegistry(stages StageStore, log *logger.Logger) *Registry {
	return &Registry{stages: stages, log: log}
}

// CreateStage validates and persists a new stage.
func (r *Registry) CreateStage(ctx context.Context, tenantID uuid.UUID, req transport.CreateStageRequest) (transport.StageResponse, error) {
	category := domain.StageCategory(req.Category)
	if !domain.IsKnownCategory(category) {
		return transport.StageResponse{}, apperr.Validation("unknown stage category")
	}
	if req.Ordinal < 0 || req.Ordinal > domain.MaxOrdinal {
		return transport.StageResponse{}, apperr.Validation("ordinal out of range")
	}
	if err := validateChargeSettings(req.ChargesCredits, req.CostCents); err != nil {
		return transport.StageResponse{}, err
	}

	count, err := r.stages.CountActiveStages(ctx, tenantID)
	if err != nil {
		return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to count stages", err)
	}
	if count >= domain.MaxActiveStages {
		return transport.StageResponse{}, apperr.LimitExceeded("active stage limit reached")
	}

	if _, err := r.stages.FindActiveStageByName(ctx, tenantID, req.Name); err == nil {
		return transport.StageResponse{}, apperr.Conflict("stage name already in use")
	} else if !errors.Is(err, repository.ErrStageNotFound) {
		return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to check stage name", err)
	}

	if req.IsInitial {
		if _, err := r.stages.GetInitialStage(ctx, tenantID); err == nil {
			return transport.StageResponse{}, apperr.Conflict("an initial stage already exists")
		} else if !errors.Is(err, repository.ErrStageNotFound) {
			return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to check initial stage", err)
		}
	}

	stage, err := r.stages.CreateStage(ctx, repository.CreateStageParams{
		TenantID:           tenantID,
		Name:               req.Name,
		Category:           req.Category,
		Color:              req.Color,
		Icon:               req.Icon,
		Ordinal:            req.Ordinal,
		IsInitial:          req.IsInitial,
		IsFinal:            req.IsFinal,
		ChargesCredits:     req.ChargesCredits,
		CostCents:          req.CostCents,
		BillingDescription: req.BillingDescription,
	})
	if err != nil {
		return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create stage", err)
	}

	return toStageResponse(stage), nil
}

// UpdateStage applies a partial update to the mutable stage fields. Any patch
// touching category or the initial flag is rejected outright; those fields are
// fixed at creation.
func (r *Registry) UpdateStage(ctx context.Context, tenantID, stageID uuid.UUID, req transport.UpdateStageRequest) (transport.StageResponse, error) {
	if req.Category != nil {
		return transport.StageResponse{}, apperr.ImmutableField("category cannot be changed")
	}
	if req.IsInitial != nil {
		return transport.StageResponse{}, apperr.ImmutableField("isInitial cannot be changed")
	}

	stage, err := r.stages.GetStage(ctx, tenantID, stageID)
	if err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return transport.StageResponse{}, apperr.NotFound("stage not found")
		}
		return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load stage", err)
	}

	// Re-validate charge consistency against the post-patch values.
	chargesCredits := stage.ChargesCredits
	if req.ChargesCredits != nil {
		chargesCredits = *req.ChargesCredits
	}
	costCents := stage.CostCents
	if req.CostCents.Set {
		costCents = req.CostCents.Value
	}
	if err := validateChargeSettings(chargesCredits, costCents); err != nil {
		return transport.StageResponse{}, err
	}

	if req.Name != nil && *req.Name != stage.Name {
		existing, err := r.stages.FindActiveStageByName(ctx, tenantID, *req.Name)
		if err == nil && existing.ID != stageID {
			return transport.StageResponse{}, apperr.Conflict("stage name already in use")
		}
		if err != nil && !errors.Is(err, repository.ErrStageNotFound) {
			return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to check stage name", err)
		}
	}

	updated, err := r.stages.UpdateStage(ctx, tenantID, stageID, repository.UpdateStageParams{
		Name:                  req.Name,
		Color:                 req.Color,
		Icon:                  req.Icon.Value,
		IconSet:               req.Icon.Set,
		IsFinal:               req.IsFinal,
		ChargesCredits:        req.ChargesCredits,
		CostCents:             req.CostCents.Value,
		CostCentsSet:          req.CostCents.Set,
		BillingDescription:    req.BillingDescription.Value,
		BillingDescriptionSet: req.BillingDescription.Set,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return transport.StageResponse{}, apperr.NotFound("stage not found")
		}
		return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update stage", err)
	}

	return toStageResponse(updated), nil
}

// DeleteStage soft-deactivates a stage. Refused while any lead currently
// occupies it, counting leads implicitly on the initial stage.
func (r *Registry) DeleteStage(ctx context.Context, tenantID, stageID uuid.UUID) error {
	stage, err := r.stages.GetStage(ctx, tenantID, stageID)
	if err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return apperr.NotFound("stage not found")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load stage", err)
	}

	occupied, err := r.stages.CountLeadsOnStage(ctx, tenantID, stageID, stage.IsInitial)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to count leads on stage", err)
	}
	if occupied > 0 {
		return apperr.StageInUse("stage has leads currently assigned")
	}

	if err := r.stages.DeactivateStage(ctx, tenantID, stageID); err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return apperr.NotFound("stage not found")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to deactivate stage", err)
	}

	return nil
}

// ReorderStages atomically reassigns ordinals 0..n-1 in the given sequence.
// The id set must exactly match the tenant's active stages.
func (r *Registry) ReorderStages(ctx context.Context, tenantID uuid.UUID, req transport.ReorderStagesRequest) ([]transport.StageResponse, error) {
	active, err := r.stages.ListStages(ctx, tenantID, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}

	if len(req.OrderedIDs) != len(active) {
		return nil, apperr.Validation("ordered ids must contain every active stage exactly once")
	}
	activeIDs := make(map[uuid.UUID]struct{}, len(active))
	for _, stage := range active {
		activeIDs[stage.ID] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{}, len(req.OrderedIDs))
	for _, id := range req.OrderedIDs {
		if _, ok := activeIDs[id]; !ok {
			return nil, apperr.Validation("ordered ids must contain every active stage exactly once")
		}
		if _, dup := seen[id]; dup {
			return nil, apperr.Validation("ordered ids must contain every active stage exactly once")
		}
		seen[id] = struct{}{}
	}

	if err := r.stages.ReorderStages(ctx, tenantID, req.OrderedIDs); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to reorder stages", err)
	}

	reordered, err := r.stages.ListStages(ctx, tenantID, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}
	return toStageResponses(reordered), nil
}

// GetStage returns one stage.
func (r *Registry) GetStage(ctx context.Context, tenantID, stageID uuid.UUID) (transport.StageResponse, error) {
	stage, err := r.stages.GetStage(ctx, tenantID, stageID)
	if err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return transport.StageResponse{}, apperr.NotFound("stage not found")
		}
		return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load stage", err)
	}
	return toStageResponse(stage), nil
}

// ListStages returns the tenant's stages in ordinal order.
func (r *Registry) ListStages(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]transport.StageResponse, error) {
	stages, err := r.stages.ListStages(ctx, tenantID, includeInactive)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}
	return toStageResponses(stages), nil
}

func validateChargeSettings(chargesCredits bool, costCents *int64) error {
	if chargesCredits {
		if costCents == nil || *costCents <= 0 {
			return apperr.Validation("a charging stage requires a positive cost")
		}
		return nil
	}
	if costCents != nil {
		return apperr.Validation("cost requires chargesCredits to be enabled")
	}
	return nil
}

func toStageResponse(stage repository.Stage) transport.StageResponse {
	return transport.StageResponse{
		ID:                 stage.ID,
		Name:               stage.Name,
		Category:           stage.Category,
		Color:              stage.Color,
		Icon:               stage.Icon,
		Ordinal:            stage.Ordinal,
		IsInitial:          stage.IsInitial,
		IsFinal:            stage.IsFinal,
		ChargesCredits:     stage.ChargesCredits,
		CostCents:          stage.CostCents,
		BillingDescription: stage.BillingDescription,
		Active:             stage.Active,
		CreatedAt:          stage.CreatedAt,
		UpdatedAt:          stage.UpdatedAt,
	}
}

func toStageResponses(stages []repository.Stage) []transport.StageResponse {
	items := make([]transport.StageResponse, 0, len(stages))
	for _, stage := range stages {
		items = append(items, toStageResponse(stage))
	}
	return items
}
