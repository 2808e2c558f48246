package service

import (
	"context"

	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// Funnel derives per-stage metrics from the current lead distribution and
// the transition history. Nothing here is cached or persisted; every call
// recomputes from current truth.
type Funnel struct {
	stages repository.StageReader
	counts repository.FunnelReader
}

func NewFunnel(stages repository.StageReader, counts repository.FunnelReader) *Funnel {
	return &Funnel{stages: stages, counts: counts}
}

// ComputeFunnel walks the active stages in ordinal order.
// percentageOfTotal is 0 when there are no leads at all;
// conversionFromPrevious is null for the first stage and whenever the
// previous stage is empty; averageDurationHours is null for stages no lead
// has ever entered.
func (f *Funnel) ComputeFunnel(ctx context.Context, tenantID, campaignID uuid.UUID) (transport.FunnelResponse, error) {
	stages, err := f.stages.ListStages(ctx, tenantID, false)
	if err != nil {
		return transport.FunnelResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}

	counts, err := f.counts.GetFunnelCounts(ctx, tenantID, campaignID)
	if err != nil {
		return transport.FunnelResponse{}, apperr.Wrap(apperr.KindInternal, "failed to compute funnel counts", err)
	}

	perStage := make([]transport.FunnelStageResponse, 0, len(stages))
	var previousCount *int
	for _, stage := range stages {
		leadCount := counts.LeadsByStage[stage.ID]

		entry := transport.FunnelStageResponse{
			StageID:   stage.ID,
			Name:      stage.Name,
			Category:  stage.Category,
			Ordinal:   stage.Ordinal,
			LeadCount: leadCount,
		}

		if counts.TotalLeads > 0 {
			entry.PercentageOfTotal = float64(leadCount) / float64(counts.TotalLeads) * 100
		}

		if previousCount != nil && *previousCount > 0 {
			conversion := float64(leadCount) / float64(*previousCount) * 100
			entry.ConversionFromPrevious = &conversion
		}

		if avg, ok := counts.AvgDurationHours[stage.ID]; ok {
			average := avg
			entry.AverageDurationHours = &average
		}

		count := leadCount
		previousCount = &count
		perStage = append(perStage, entry)
	}

	return transport.FunnelResponse{
		TotalLeads: counts.TotalLeads,
		PerStage:   perStage,
	}, nil
}
