// Package service implements billing configuration and charge audit operations.
package service

import (
	"context"

	"pipeline_backend/internal/billing/domain"
	"pipeline_backend/internal/billing/repository"
	"pipeline_backend/internal/billing/transport"
	"pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	defaultChargePageSize = 50
	maxChargePageSize     = 200
)

// ConfigurationStore is the persistence surface the service needs.
type ConfigurationStore interface {
	GetConfiguration(ctx context.Context, tenantID uuid.UUID) (domain.Configuration, error)
	UpsertConfiguration(ctx context.Context, tenantID uuid.UUID, model domain.ChargeModel, debitOnStageChange bool) (domain.Configuration, error)
}

// ChargeStore is the charge audit persistence surface.
type ChargeStore interface {
	CreateCharge(ctx context.Context, params repository.CreateChargeParams) (repository.ChargeRecord, error)
	ListCharges(ctx context.Context, params repository.ListChargesParams) ([]repository.ChargeRecord, error)
}

type Service struct {
	configs ConfigurationStore
	charges ChargeStore
}

func New(configs ConfigurationStore, charges ChargeStore) *Service {
	return &Service{configs: configs, charges: charges}
}

// GetConfiguration returns the tenant's billing configuration
// (the default when none has been stored yet).
func (s *Service) GetConfiguration(ctx context.Context, tenantID uuid.UUID) (transport.ConfigurationResponse, error) {
	cfg, err := s.configs.GetConfiguration(ctx, tenantID)
	if err != nil {
		return transport.ConfigurationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load billing configuration", err)
	}
	return toConfigurationResponse(cfg), nil
}

// UpdateConfiguration replaces the tenant's billing configuration.
func (s *Service) UpdateConfiguration(ctx context.Context, tenantID uuid.UUID, req transport.UpdateConfigurationRequest) (transport.ConfigurationResponse, error) {
	model := domain.ChargeModel(req.ChargeModel)
	if !domain.IsKnownChargeModel(model) {
		return transport.ConfigurationResponse{}, apperr.Validation("unknown charge model")
	}

	cfg, err := s.configs.UpsertConfiguration(ctx, tenantID, model, req.DebitOnStageChange)
	if err != nil {
		return transport.ConfigurationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to store billing configuration", err)
	}
	return toConfigurationResponse(cfg), nil
}

// ResolveCharge loads the tenant's configuration and resolves the pure policy
// against the target stage's charge settings.
func (s *Service) ResolveCharge(ctx context.Context, tenantID uuid.UUID, stage domain.ChargeableStage) (domain.ChargeDecision, error) {
	cfg, err := s.configs.GetConfiguration(ctx, tenantID)
	if err != nil {
		return domain.ChargeDecision{}, err
	}
	return domain.ResolveCharge(cfg, stage), nil
}

// RecordCharge appends a charge audit record. Called for every billable
// transition attempt whatever the ledger outcome.
func (s *Service) RecordCharge(ctx context.Context, params repository.CreateChargeParams) error {
	_, err := s.charges.CreateCharge(ctx, params)
	return err
}

// ListCharges returns the tenant's charge audit trail, newest first.
func (s *Service) ListCharges(ctx context.Context, tenantID uuid.UUID, leadID *uuid.UUID, limit, offset int) (transport.ChargeListResponse, error) {
	if limit <= 0 {
		limit = defaultChargePageSize
	}
	if limit > maxChargePageSize {
		limit = maxChargePageSize
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.charges.ListCharges(ctx, repository.ListChargesParams{
		TenantID: tenantID,
		LeadID:   leadID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return transport.ChargeListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list charges", err)
	}

	items := make([]transport.ChargeResponse, 0, len(records))
	for _, record := range records {
		items = append(items, transport.ChargeResponse{
			ID:            record.ID,
			LeadID:        record.LeadID,
			StageID:       record.StageID,
			AmountCents:   record.AmountCents,
			Succeeded:     record.Succeeded,
			FailureReason: record.FailureReason,
			CreatedAt:     record.CreatedAt,
		})
	}

	return transport.ChargeListResponse{Items: items}, nil
}

func toConfigurationResponse(cfg domain.Configuration) transport.ConfigurationResponse {
	resp := transport.ConfigurationResponse{
		ChargeModel:        string(cfg.ChargeModel),
		DebitOnStageChange: cfg.DebitOnStageChange,
	}
	if !cfg.UpdatedAt.IsZero() {
		updatedAt := cfg.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}
