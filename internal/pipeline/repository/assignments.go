package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Lead is the minimal projection of a lead the engine reads. Lead management
// itself lives outside this context.
type Lead struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CampaignID uuid.UUID
	CreatedAt  time.Time
}

func (r *Repository) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (Lead, error) {
	var lead Lead
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, campaign_id, created_at
		FROM leads
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, leadID).Scan(&lead.ID, &lead.TenantID, &lead.CampaignID, &lead.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// GetAssignedStageID returns the lead's current stage assignment, or nil when
// the lead has never been assigned (implicitly on the initial stage).
func (r *Repository) GetAssignedStageID(ctx context.Context, tenantID, leadID uuid.UUID) (*uuid.UUID, error) {
	var stageID uuid.UUID
	err := r.db.QueryRow(ctx, `
		SELECT stage_id FROM lead_stage_assignments
		WHERE tenant_id = $1 AND lead_id = $2
	`, tenantID, leadID).Scan(&stageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stageID, nil
}

// TransitionRecord is one immutable row of the append-only transition history.
type TransitionRecord struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	LeadID          uuid.UUID
	PreviousStageID *uuid.UUID
	NewStageID      uuid.UUID
	Reason          *string
	Automatic       bool
	DurationHours   float64
	ActorID         *uuid.UUID
	CreatedAt       time.Time
}

// GetLastTransition returns the most recent history record for a lead,
// or nil when the lead has no history yet.
func (r *Repository) GetLastTransition(ctx context.Context, tenantID, leadID uuid.UUID) (*TransitionRecord, error) {
	var record TransitionRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, lead_id, previous_stage_id, new_stage_id, reason, automatic,
			duration_hours, actor_id, created_at
		FROM stage_transitions
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, tenantID, leadID).Scan(
		&record.ID, &record.TenantID, &record.LeadID, &record.PreviousStageID, &record.NewStageID,
		&record.Reason, &record.Automatic, &record.DurationHours, &record.ActorID, &record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

type CommitTransitionParams struct {
	TenantID        uuid.UUID
	CampaignID      uuid.UUID
	LeadID          uuid.UUID
	PreviousStageID *uuid.UUID
	NewStageID      uuid.UUID
	Reason          *string
	Automatic       bool
	DurationHours   float64
	ActorID         *uuid.UUID
}

// CommitTransition updates the lead's stage assignment and appends the
// history record inside one transaction. Both succeed or neither does; a
// partially applied transition is never observable.
func (r *Repository) CommitTransition(ctx context.Context, params CommitTransitionParams) (TransitionRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return TransitionRecord{}, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO lead_stage_assignments (tenant_id, campaign_id, lead_id, stage_id, version, updated_at)
		VALUES ($1, $2, $3, $4, 1, now())
		ON CONFLICT (tenant_id, lead_id) DO UPDATE
		SET stage_id = EXCLUDED.stage_id,
			version = lead_stage_assignments.version + 1,
			updated_at = now()
	`, params.TenantID, params.CampaignID, params.LeadID, params.NewStageID)
	if err != nil {
		return TransitionRecord{}, err
	}

	var record TransitionRecord
	err = tx.QueryRow(ctx, `
		INSERT INTO stage_transitions (
			tenant_id, lead_id, previous_stage_id, new_stage_id, reason, automatic,
			duration_hours, actor_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, tenant_id, lead_id, previous_stage_id, new_stage_id, reason, automatic,
			duration_hours, actor_id, created_at
	`,
		params.TenantID, params.LeadID, params.PreviousStageID, params.NewStageID,
		params.Reason, params.Automatic, params.DurationHours, params.ActorID,
	).Scan(
		&record.ID, &record.TenantID, &record.LeadID, &record.PreviousStageID, &record.NewStageID,
		&record.Reason, &record.Automatic, &record.DurationHours, &record.ActorID, &record.CreatedAt,
	)
	if err != nil {
		return TransitionRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransitionRecord{}, err
	}

	return record, nil
}
