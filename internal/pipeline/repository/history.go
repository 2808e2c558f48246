package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is a transition record joined with the stages' current (or
// last-known) names, resolved at read time so audit timelines stay readable
// after a stage is renamed or deactivated.
type HistoryEntry struct {
	ID                uuid.UUID
	LeadID            uuid.UUID
	PreviousStageID   *uuid.UUID
	PreviousStageName *string
	NewStageID        uuid.UUID
	NewStageName      string
	Reason            *string
	Automatic         bool
	DurationHours     float64
	ActorID           *uuid.UUID
	CreatedAt         time.Time
}

type ListHistoryParams struct {
	TenantID uuid.UUID
	LeadID   uuid.UUID
	Limit    int
	Offset   int
}

// ListForLead returns the lead's transition history, newest first.
// Limit/offset make the sequence restartable for audit timeline paging.
func (r *Repository) ListForLead(ctx context.Context, params ListHistoryParams) ([]HistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.lead_id, t.previous_stage_id, prev.name, t.new_stage_id, next.name,
			t.reason, t.automatic, t.duration_hours, t.actor_id, t.created_at
		FROM stage_transitions t
		LEFT JOIN pipeline_stages prev ON prev.id = t.previous_stage_id
		JOIN pipeline_stages next ON next.id = t.new_stage_id
		WHERE t.tenant_id = $1 AND t.lead_id = $2
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $3 OFFSET $4
	`, params.TenantID, params.LeadID, params.Limit, params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(
			&entry.ID, &entry.LeadID, &entry.PreviousStageID, &entry.PreviousStageName,
			&entry.NewStageID, &entry.NewStageName, &entry.Reason, &entry.Automatic,
			&entry.DurationHours, &entry.ActorID, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return entries, nil
}
