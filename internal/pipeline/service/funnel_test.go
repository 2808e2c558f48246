package service

import (
	"context"
	"testing"

	"pipeline_backend/internal/pipeline/repository"

	"github.com/google/uuid"
)

type fakeFunnelCounts struct {
	counts repository.FunnelCounts
}

func (f *fakeFunnelCounts) GetFunnelCounts(context.Context, uuid.UUID, uuid.UUID) (repository.FunnelCounts, error) {
	return f.counts, nil
}

func TestComputeFunnelMetrics(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	first := stages.add(repository.Stage{TenantID: tenantID, Name: "New", Category: "new", Ordinal: 0, IsInitial: true})
	second := stages.add(repository.Stage{TenantID: tenantID, Name: "Qualified", Category: "qualifying", Ordinal: 1})
	third := stages.add(repository.Stage{TenantID: tenantID, Name: "Won", Category: "won", Ordinal: 2})

	counts := &fakeFunnelCounts{counts: repository.FunnelCounts{
		TotalLeads: 10,
		LeadsByStage: map[uuid.UUID]int{
			first.ID:  6,
			second.ID: 4,
		},
		AvgDurationHours: map[uuid.UUID]float64{
			second.ID: 12.5,
		},
	}}

	funnel := NewFunnel(stages, counts)
	resp, err := funnel.ComputeFunnel(context.Background(), tenantID, uuid.New())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if resp.TotalLeads != 10 {
		t.Fatalf("expected 10 total leads, got %d", resp.TotalLeads)
	}
	if len(resp.PerStage) != 3 {
		t.Fatalf("expected all active stages, got %d", len(resp.PerStage))
	}

	sum := 0
	for _, entry := range resp.PerStage {
		sum += entry.LeadCount
	}
	if sum != resp.TotalLeads {
		t.Fatalf("per-stage counts must sum to the total, got %d vs %d", sum, resp.TotalLeads)
	}

	if resp.PerStage[0].StageID != first.ID || resp.PerStage[1].StageID != second.ID || resp.PerStage[2].StageID != third.ID {
		t.Fatal("stages must be reported in ordinal order")
	}

	if resp.PerStage[0].PercentageOfTotal != 60 {
		t.Fatalf("expected 60%% on the first stage, got %f", resp.PerStage[0].PercentageOfTotal)
	}
	if resp.PerStage[0].ConversionFromPrevious != nil {
		t.Fatal("the first stage has no previous stage to convert from")
	}

	if resp.PerStage[1].ConversionFromPrevious == nil {
		t.Fatal("expected a conversion rate on the second stage")
	}
	if got := *resp.PerStage[1].ConversionFromPrevious; got < 66.6 || got > 66.7 {
		t.Fatalf("expected 4/6 conversion, got %f", got)
	}
	if resp.PerStage[1].AverageDurationHours == nil || *resp.PerStage[1].AverageDurationHours != 12.5 {
		t.Fatal("expected the average duration from history")
	}

	if resp.PerStage[2].AverageDurationHours != nil {
		t.Fatal("a stage no lead ever entered has no average duration")
	}
}

func TestComputeFunnelEmptyCampaign(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	first := stages.add(repository.Stage{TenantID: tenantID, Name: "New", Category: "new", Ordinal: 0, IsInitial: true})
	stages.add(repository.Stage{TenantID: tenantID, Name: "Won", Category: "won", Ordinal: 1})

	counts := &fakeFunnelCounts{counts: repository.FunnelCounts{
		LeadsByStage:     map[uuid.UUID]int{},
		AvgDurationHours: map[uuid.UUID]float64{},
	}}

	funnel := NewFunnel(stages, counts)
	resp, err := funnel.ComputeFunnel(context.Background(), tenantID, uuid.New())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if resp.TotalLeads != 0 {
		t.Fatalf("expected zero leads, got %d", resp.TotalLeads)
	}
	for _, entry := range resp.PerStage {
		if entry.PercentageOfTotal != 0 {
			t.Fatalf("percentage must be 0 without leads, got %f on %s", entry.PercentageOfTotal, entry.Name)
		}
	}

	// Zero previous count also suppresses conversion on later stages.
	if resp.PerStage[0].StageID != first.ID {
		t.Fatal("stages must be reported in ordinal order")
	}
	if resp.PerStage[1].ConversionFromPrevious != nil {
		t.Fatal("conversion must be null when the previous stage is empty")
	}
}
