package repository

import (
	"context"
	"errors"
	"time"

	"pipeline_backend/internal/billing/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
// Satisfied by *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	db DB
}

func New(db DB) *Repository {
	return &Repository{db: db}
}

// GetConfiguration returns the tenant's billing configuration.
// Tenants without a stored row get the default: stage_change model with
// debiting disabled, so new tenants never charge until an admin opts in.
func (r *Repository) GetConfiguration(ctx context.Context, tenantID uuid.UUID) (domain.Configuration, error) {
	var cfg domain.Configuration
	err := r.db.QueryRow(ctx, `
		SELECT tenant_id, charge_model, debit_on_stage_change, updated_at
		FROM billing_configurations
		WHERE tenant_id = $1
	`, tenantID).Scan(&cfg.TenantID, &cfg.ChargeModel, &cfg.DebitOnStageChange, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Configuration{
				TenantID:           tenantID,
				ChargeModel:        domain.ChargeModelStageChange,
				DebitOnStageChange: false,
				UpdatedAt:          time.Time{},
			}, nil
		}
		return domain.Configuration{}, err
	}

	return cfg, nil
}

// UpsertConfiguration stores the tenant's billing configuration.
func (r *Repository) UpsertConfiguration(ctx context.Context, tenantID uuid.UUID, model domain.ChargeModel, debitOnStageChange bool) (domain.Configuration, error) {
	var cfg domain.Configuration
	err := r.db.QueryRow(ctx, `
		INSERT INTO billing_configurations (tenant_id, charge_model, debit_on_stage_change, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id) DO UPDATE
		SET charge_model = EXCLUDED.charge_model,
			debit_on_stage_change = EXCLUDED.debit_on_stage_change,
			updated_at = now()
		RETURNING tenant_id, charge_model, debit_on_stage_change, updated_at
	`, tenantID, model, debitOnStageChange).Scan(&cfg.TenantID, &cfg.ChargeModel, &cfg.DebitOnStageChange, &cfg.UpdatedAt)
	if err != nil {
		return domain.Configuration{}, err
	}

	return cfg, nil
}

// ChargeRecord is the audit row written for every billable transition attempt,
// regardless of the ledger outcome. Append-only.
type ChargeRecord struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	LeadID        uuid.UUID
	StageID       uuid.UUID
	AmountCents   int64
	Succeeded     bool
	FailureReason *string
	CreatedAt     time.Time
}

type CreateChargeParams struct {
	TenantID      uuid.UUID
	LeadID        uuid.UUID
	StageID       uuid.UUID
	AmountCents   int64
	Succeeded     bool
	FailureReason *string
}

func (r *Repository) CreateCharge(ctx context.Context, params CreateChargeParams) (ChargeRecord, error) {
	var record ChargeRecord
	err := r.db.QueryRow(ctx, `
		INSERT INTO charge_records (tenant_id, lead_id, stage_id, amount_cents, succeeded, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, tenant_id, lead_id, stage_id, amount_cents, succeeded, failure_reason, created_at
	`, params.TenantID, params.LeadID, params.StageID, params.AmountCents, params.Succeeded, params.FailureReason).Scan(
		&record.ID, &record.TenantID, &record.LeadID, &record.StageID,
		&record.AmountCents, &record.Succeeded, &record.FailureReason, &record.CreatedAt,
	)
	if err != nil {
		return ChargeRecord{}, err
	}

	return record, nil
}

type ListChargesParams struct {
	TenantID uuid.UUID
	LeadID   *uuid.UUID
	Limit    int
	Offset   int
}

// ListCharges returns charge records newest first, optionally filtered by lead.
func (r *Repository) ListCharges(ctx context.Context, params ListChargesParams) ([]ChargeRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, tenant_id, lead_id, stage_id, amount_cents, succeeded, failure_reason, created_at
		FROM charge_records
		WHERE tenant_id = $1 AND ($2::uuid IS NULL OR lead_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, params.TenantID, params.LeadID, params.Limit, params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]ChargeRecord, 0)
	for rows.Next() {
		var record ChargeRecord
		if err := rows.Scan(
			&record.ID, &record.TenantID, &record.LeadID, &record.StageID,
			&record.AmountCents, &record.Succeeded, &record.FailureReason, &record.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return records, nil
}
