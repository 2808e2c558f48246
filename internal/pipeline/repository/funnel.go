package repository

import (
	"context"

	"github.com/google/uuid"
)

// FunnelCounts is the raw read-side input for funnel metrics: current lead
// distribution over stages plus average dwell time per stage. Leads without
// an assignment row are resolved to the initial stage here, at read time.
type FunnelCounts struct {
	TotalLeads       int
	LeadsByStage     map[uuid.UUID]int
	AvgDurationHours map[uuid.UUID]float64
}

// GetFunnelCounts computes current lead counts per stage and the mean
// duration-in-stage for a campaign. Always recomputed from current truth;
// nothing is cached or persisted.
func (r *Repository) GetFunnelCounts(ctx context.Context, tenantID, campaignID uuid.UUID) (FunnelCounts, error) {
	counts := FunnelCounts{
		LeadsByStage:     make(map[uuid.UUID]int),
		AvgDurationHours: make(map[uuid.UUID]float64),
	}

	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(a.stage_id, init.id) AS stage_id, COUNT(*) AS lead_count
		FROM leads l
		LEFT JOIN lead_stage_assignments a ON a.tenant_id = l.tenant_id AND a.lead_id = l.id
		LEFT JOIN pipeline_stages init ON init.tenant_id = l.tenant_id AND init.active AND init.is_initial
		WHERE l.tenant_id = $1 AND l.campaign_id = $2
		GROUP BY 1
	`, tenantID, campaignID)
	if err != nil {
		return FunnelCounts{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var stageID *uuid.UUID
		var count int
		if err := rows.Scan(&stageID, &count); err != nil {
			return FunnelCounts{}, err
		}
		counts.TotalLeads += count
		if stageID != nil {
			counts.LeadsByStage[*stageID] += count
		}
	}
	if rows.Err() != nil {
		return FunnelCounts{}, rows.Err()
	}

	durationRows, err := r.db.Query(ctx, `
		SELECT t.new_stage_id, AVG(t.duration_hours)
		FROM stage_transitions t
		JOIN leads l ON l.tenant_id = t.tenant_id AND l.id = t.lead_id
		WHERE t.tenant_id = $1 AND l.campaign_id = $2
		GROUP BY t.new_stage_id
	`, tenantID, campaignID)
	if err != nil {
		return FunnelCounts{}, err
	}
	defer durationRows.Close()

	for durationRows.Next() {
		var stageID uuid.UUID
		var avg float64
		if err := durationRows.Scan(&stageID, &avg); err != nil {
			return FunnelCounts{}, err
		}
		counts.AvgDurationHours[stageID] = avg
	}
	if durationRows.Err() != nil {
		return FunnelCounts{}, durationRows.Err()
	}

	return counts, nil
}
