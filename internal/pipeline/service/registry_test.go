package service

import (
	"context"
	"testing"

	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestCreateStageEnforcesActiveLimit(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	for i := 0; i < 20; i++ {
		stages.add(repository.Stage{TenantID: tenantID, Name: uuid.NewString(), Category: "new", Ordinal: i % 20})
	}

	registry := NewRegistry(stages, testLogger())
	_, err := registry.CreateStage(context.Background(), tenantID, transport.CreateStageRequest{
		Name:     "One Too Many",
		Category: "contacted",
		Color:    "#ff0000",
	})
	if !apperr.Is(err, apperr.KindLimitExceeded) {
		t.Fatalf("expected limit exceeded, got %v", err)
	}

	count, _ := stages.CountActiveStages(context.Background(), tenantID)
	if count != 20 {
		t.Fatalf("no stage should have been persisted, have %d", count)
	}
}

func TestCreateStageRejectsDuplicateName(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	stages.add(repository.Stage{TenantID: tenantID, Name: "Qualified", Category: "qualifying"})

	registry := NewRegistry(stages, testLogger())
	_, err := registry.CreateStage(context.Background(), tenantID, transport.CreateStageRequest{
		Name:     "qualified",
		Category: "qualifying",
		Color:    "#00ff00",
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for case-insensitive duplicate, got %v", err)
	}
}

func TestCreateStageRejectsSecondInitial(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	stages.add(repository.Stage{TenantID: tenantID, Name: "New", Category: "new", IsInitial: true})

	registry := NewRegistry(stages, testLogger())
	_, err := registry.CreateStage(context.Background(), tenantID, transport.CreateStageRequest{
		Name:      "Also Initial",
		Category:  "new",
		Color:     "#0000ff",
		IsInitial: true,
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for second initial stage, got %v", err)
	}
}

func TestCreateStageChargeConsistency(t *testing.T) {
	registry := NewRegistry(newFakeStages(), testLogger())
	tenantID := uuid.New()

	zero := int64(0)
	cost := int64(500)

	cases := []struct {
		name string
		req  transport.CreateStageRequest
		ok   bool
	}{
		{"charging with positive cost", transport.CreateStageRequest{Name: "A", Category: "qualifying", Color: "#fff", ChargesCredits: true, CostCents: &cost}, true},
		{"charging without cost", transport.CreateStageRequest{Name: "B", Category: "qualifying", Color: "#fff", ChargesCredits: true}, false},
		{"charging with zero cost", transport.CreateStageRequest{Name: "C", Category: "qualifying", Color: "#fff", ChargesCredits: true, CostCents: &zero}, false},
		{"cost without charging", transport.CreateStageRequest{Name: "D", Category: "qualifying", Color: "#fff", CostCents: &cost}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := registry.CreateStage(context.Background(), tenantID, tc.req)
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok && !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateStageRejectsImmutableFields(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	stage := stages.add(repository.Stage{TenantID: tenantID, Name: "New", Category: "new", IsInitial: true})

	registry := NewRegistry(stages, testLogger())

	category := "won"
	_, err := registry.UpdateStage(context.Background(), tenantID, stage.ID, transport.UpdateStageRequest{Category: &category})
	if !apperr.Is(err, apperr.KindImmutableField) {
		t.Fatalf("expected immutable field error for category, got %v", err)
	}

	isInitial := false
	_, err = registry.UpdateStage(context.Background(), tenantID, stage.ID, transport.UpdateStageRequest{IsInitial: &isInitial})
	if !apperr.Is(err, apperr.KindImmutableField) {
		t.Fatalf("expected immutable field error for isInitial, got %v", err)
	}

	// The stage must be untouched either way.
	current, _ := stages.GetStage(context.Background(), tenantID, stage.ID)
	if current.Category != "new" || !current.IsInitial {
		t.Fatal("category and isInitial must not change")
	}
}

func TestUpdateStageRevalidatesChargeSettings(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	stage := stages.add(repository.Stage{TenantID: tenantID, Name: "Qualified", Category: "qualifying"})

	registry := NewRegistry(stages, testLogger())

	charges := true
	_, err := registry.UpdateStage(context.Background(), tenantID, stage.ID, transport.UpdateStageRequest{ChargesCredits: &charges})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("enabling charging without a cost should fail validation, got %v", err)
	}

	cost := int64(750)
	resp, err := registry.UpdateStage(context.Background(), tenantID, stage.ID, transport.UpdateStageRequest{
		ChargesCredits: &charges,
		CostCents:      transport.OptionalInt{Value: &cost, Set: true},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !resp.ChargesCredits || resp.CostCents == nil || *resp.CostCents != 750 {
		t.Fatal("charge settings were not applied")
	}
}

func TestDeleteStageBlockedWhileOccupied(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	stage := stages.add(repository.Stage{TenantID: tenantID, Name: "Qualified", Category: "qualifying"})
	stages.leadsOnStage[stage.ID] = 1

	registry := NewRegistry(stages, testLogger())
	err := registry.DeleteStage(context.Background(), tenantID, stage.ID)
	if !apperr.Is(err, apperr.KindStageInUse) {
		t.Fatalf("expected stage-in-use error, got %v", err)
	}

	current, _ := stages.GetStage(context.Background(), tenantID, stage.ID)
	if !current.Active {
		t.Fatal("stage must remain active after refused deletion")
	}
}

func TestDeleteInitialStageCountsUnassignedLeads(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	stage := stages.add(repository.Stage{TenantID: tenantID, Name: "New", Category: "new", IsInitial: true})
	stages.unassigned = 3

	registry := NewRegistry(stages, testLogger())
	err := registry.DeleteStage(context.Background(), tenantID, stage.ID)
	if !apperr.Is(err, apperr.KindStageInUse) {
		t.Fatalf("leads implicitly on the initial stage must block deletion, got %v", err)
	}
}

func TestDeleteStageDeactivates(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	stage := stages.add(repository.Stage{TenantID: tenantID, Name: "Lost", Category: "lost"})

	registry := NewRegistry(stages, testLogger())
	if err := registry.DeleteStage(context.Background(), tenantID, stage.ID); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	current, _ := stages.GetStage(context.Background(), tenantID, stage.ID)
	if current.Active {
		t.Fatal("stage should be soft-deactivated")
	}
}

func TestReorderStagesRequiresExactIDSet(t *testing.T) {
	stages := newFakeStages()
	tenantID := uuid.New()
	first := stages.add(repository.Stage{TenantID: tenantID, Name: "New", Category: "new", Ordinal: 0})
	second := stages.add(repository.Stage{TenantID: tenantID, Name: "Won", Category: "won", Ordinal: 1})

	registry := NewRegistry(stages, testLogger())

	_, err := registry.ReorderStages(context.Background(), tenantID, transport.ReorderStagesRequest{
		OrderedIDs: []uuid.UUID{first.ID},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("missing id should fail validation, got %v", err)
	}

	_, err = registry.ReorderStages(context.Background(), tenantID, transport.ReorderStagesRequest{
		OrderedIDs: []uuid.UUID{first.ID, uuid.New()},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("foreign id should fail validation, got %v", err)
	}

	_, err = registry.ReorderStages(context.Background(), tenantID, transport.ReorderStagesRequest{
		OrderedIDs: []uuid.UUID{first.ID, first.ID},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("duplicate id should fail validation, got %v", err)
	}

	reordered, err := registry.ReorderStages(context.Background(), tenantID, transport.ReorderStagesRequest{
		OrderedIDs: []uuid.UUID{second.ID, first.ID},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if reordered[0].ID != second.ID || reordered[0].Ordinal != 0 {
		t.Fatalf("expected %s first with ordinal 0", second.Name)
	}
	if reordered[1].ID != first.ID || reordered[1].Ordinal != 1 {
		t.Fatalf("expected %s second with ordinal 1", first.Name)
	}
}

func TestCreateStageUnknownCategory(t *testing.T) {
	registry := NewRegistry(newFakeStages(), testLogger())
	_, err := registry.CreateStage(context.Background(), uuid.New(), transport.CreateStageRequest{
		Name:     "Weird",
		Category: "archived",
		Color:    "#fff",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
