// Package repository persists the pipeline bounded context: stages,
// lead stage assignments, and the append-only transition history.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrStageNotFound = errors.New("stage not found")
	ErrLeadNotFound  = errors.New("lead not found")
)

// DB is the subset of pgxpool.Pool the repository needs.
// Satisfied by *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository struct {
	db DB
}

func New(db DB) *Repository {
	return &Repository{db: db}
}

// Stage is a named step in a tenant's configurable sales pipeline.
type Stage struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Name               string
	Category           string
	Color              string
	Icon               *string
	Ordinal            int
	IsInitial          bool
	IsFinal            bool
	ChargesCredits     bool
	CostCents          *int64
	BillingDescription *string
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const stageColumns = `id, tenant_id, name, category, color, icon, ordinal, is_initial, is_final,
		charges_credits, cost_cents, billing_description, active, created_at, updated_at`

func scanStage(row pgx.Row) (Stage, error) {
	var stage Stage
	err := row.Scan(
		&stage.ID, &stage.TenantID, &stage.Name, &stage.Category, &stage.Color, &stage.Icon,
		&stage.Ordinal, &stage.IsInitial, &stage.IsFinal, &stage.ChargesCredits, &stage.CostCents,
		&stage.BillingDescription, &stage.Active, &stage.CreatedAt, &stage.UpdatedAt,
	)
	return stage, err
}

type CreateStageParams struct {
	TenantID           uuid.UUID
	Name               string
	Category           string
	Color              string
	Icon               *string
	Ordinal            int
	IsInitial          bool
	IsFinal            bool
	ChargesCredits     bool
	CostCents          *int64
	BillingDescription *string
}

func (r *Repository) CreateStage(ctx context.Context, params CreateStageParams) (Stage, error) {
	return scanStage(r.db.QueryRow(ctx, `
		INSERT INTO pipeline_stages (
			tenant_id, name, category, color, icon, ordinal, is_initial, is_final,
			charges_credits, cost_cents, billing_description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+stageColumns+`
	`,
		params.TenantID, params.Name, params.Category, params.Color, params.Icon,
		params.Ordinal, params.IsInitial, params.IsFinal, params.ChargesCredits,
		params.CostCents, params.BillingDescription,
	))
}

func (r *Repository) GetStage(ctx context.Context, tenantID, id uuid.UUID) (Stage, error) {
	stage, err := scanStage(r.db.QueryRow(ctx, `
		SELECT `+stageColumns+`
		FROM pipeline_stages
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return stage, err
}

// ListStages returns the tenant's stages in ordinal order.
func (r *Repository) ListStages(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]Stage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+stageColumns+`
		FROM pipeline_stages
		WHERE tenant_id = $1 AND (active OR $2)
		ORDER BY ordinal ASC, created_at ASC
	`, tenantID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]Stage, 0)
	for rows.Next() {
		var stage Stage
		if err := rows.Scan(
			&stage.ID, &stage.TenantID, &stage.Name, &stage.Category, &stage.Color, &stage.Icon,
			&stage.Ordinal, &stage.IsInitial, &stage.IsFinal, &stage.ChargesCredits, &stage.CostCents,
			&stage.BillingDescription, &stage.Active, &stage.CreatedAt, &stage.UpdatedAt,
		); err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return stages, nil
}

// GetInitialStage returns the tenant's single active initial stage.
func (r *Repository) GetInitialStage(ctx context.Context, tenantID uuid.UUID) (Stage, error) {
	stage, err := scanStage(r.db.QueryRow(ctx, `
		SELECT `+stageColumns+`
		FROM pipeline_stages
		WHERE tenant_id = $1 AND active AND is_initial
	`, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return stage, err
}

// FindActiveStageByName does a case-insensitive lookup among active stages.
func (r *Repository) FindActiveStageByName(ctx context.Context, tenantID uuid.UUID, name string) (Stage, error) {
	stage, err := scanStage(r.db.QueryRow(ctx, `
		SELECT `+stageColumns+`
		FROM pipeline_stages
		WHERE tenant_id = $1 AND active AND LOWER(name) = LOWER($2)
	`, tenantID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return stage, err
}

func (r *Repository) CountActiveStages(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM pipeline_stages WHERE tenant_id = $1 AND active
	`, tenantID).Scan(&count)
	return count, err
}

// UpdateStageParams carries the mutable stage fields. Pointer fields are
// applied only when non-nil; the Set flags distinguish "clear" from "leave".
type UpdateStageParams struct {
	Name                  *string
	Color                 *string
	Icon                  *string
	IconSet               bool
	IsFinal               *bool
	ChargesCredits        *bool
	CostCents             *int64
	CostCentsSet          bool
	BillingDescription    *string
	BillingDescriptionSet bool
}

func (r *Repository) UpdateStage(ctx context.Context, tenantID, id uuid.UUID, params UpdateStageParams) (Stage, error) {
	stage, err := scanStage(r.db.QueryRow(ctx, `
		UPDATE pipeline_stages SET
			name = COALESCE($3, name),
			color = COALESCE($4, color),
			icon = CASE WHEN $5 THEN $6 ELSE icon END,
			is_final = COALESCE($7, is_final),
			charges_credits = COALESCE($8, charges_credits),
			cost_cents = CASE WHEN $9 THEN $10 ELSE cost_cents END,
			billing_description = CASE WHEN $11 THEN $12 ELSE billing_description END,
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+stageColumns+`
	`,
		tenantID, id, params.Name, params.Color,
		params.IconSet, params.Icon,
		params.IsFinal, params.ChargesCredits,
		params.CostCentsSet, params.CostCents,
		params.BillingDescriptionSet, params.BillingDescription,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return stage, err
}

// DeactivateStage soft-deletes a stage. History keeps referencing it so the
// row is never removed.
func (r *Repository) DeactivateStage(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE pipeline_stages SET active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND active
	`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotFound
	}
	return nil
}

// ReorderStages atomically reassigns ordinals 0..n-1 in the given sequence.
func (r *Repository) ReorderStages(ctx context.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for ordinal, id := range orderedIDs {
		tag, err := tx.Exec(ctx, `
			UPDATE pipeline_stages SET ordinal = $3, updated_at = now()
			WHERE tenant_id = $1 AND id = $2 AND active
		`, tenantID, id, ordinal)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStageNotFound
		}
	}

	return tx.Commit(ctx)
}

// CountLeadsOnStage counts leads currently occupying a stage. Leads without
// an assignment row implicitly occupy the initial stage, so for the initial
// stage the unassigned leads are included.
func (r *Repository) CountLeadsOnStage(ctx context.Context, tenantID, stageID uuid.UUID, isInitial bool) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM lead_stage_assignments
		WHERE tenant_id = $1 AND stage_id = $2
	`, tenantID, stageID).Scan(&count)
	if err != nil {
		return 0, err
	}

	if !isInitial {
		return count, nil
	}

	var unassigned int
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM leads l
		WHERE l.tenant_id = $1
		AND NOT EXISTS (
			SELECT 1 FROM lead_stage_assignments a
			WHERE a.tenant_id = l.tenant_id AND a.lead_id = l.id
		)
	`, tenantID).Scan(&unassigned)
	if err != nil {
		return 0, err
	}

	return count + unassigned, nil
}
