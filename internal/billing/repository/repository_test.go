package repository

import (
	"context"
	"testing"
	"time"

	"pipeline_backend/internal/billing/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func TestGetConfigurationDefaultsWhenMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("SELECT tenant_id, charge_model").
		WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id", "charge_model", "debit_on_stage_change", "updated_at"}))

	repo := New(mock)
	cfg, err := repo.GetConfiguration(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("GetConfiguration: %v", err)
	}

	if cfg.TenantID != tenantID {
		t.Errorf("TenantID = %s, want %s", cfg.TenantID, tenantID)
	}
	if cfg.ChargeModel != domain.ChargeModelStageChange {
		t.Errorf("ChargeModel = %q, want %q", cfg.ChargeModel, domain.ChargeModelStageChange)
	}
	if cfg.DebitOnStageChange {
		t.Error("DebitOnStageChange = true, want false for default configuration")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpsertConfiguration(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	tenantID := uuid.New()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO billing_configurations").
		WithArgs(tenantID, domain.ChargeModelStageChange, true).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id", "charge_model", "debit_on_stage_change", "updated_at"}).
			AddRow(tenantID, domain.ChargeModelStageChange, true, now))

	repo := New(mock)
	cfg, err := repo.UpsertConfiguration(context.Background(), tenantID, domain.ChargeModelStageChange, true)
	if err != nil {
		t.Fatalf("UpsertConfiguration: %v", err)
	}

	if !cfg.DebitOnStageChange {
		t.Error("DebitOnStageChange = false, want true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateChargeFailedOutcome(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	tenantID := uuid.New()
	leadID := uuid.New()
	stageID := uuid.New()
	recordID := uuid.New()
	reason := "insufficient balance"

	mock.ExpectQuery("INSERT INTO charge_records").
		WithArgs(tenantID, leadID, stageID, int64(500), false, &reason).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "lead_id", "stage_id", "amount_cents", "succeeded", "failure_reason", "created_at",
		}).AddRow(recordID, tenantID, leadID, stageID, int64(500), false, &reason, time.Now()))

	repo := New(mock)
	record, err := repo.CreateCharge(context.Background(), CreateChargeParams{
		TenantID:      tenantID,
		LeadID:        leadID,
		StageID:       stageID,
		AmountCents:   500,
		Succeeded:     false,
		FailureReason: &reason,
	})
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}

	if record.Succeeded {
		t.Error("Succeeded = true, want false")
	}
	if record.FailureReason == nil || *record.FailureReason != reason {
		t.Errorf("FailureReason = %v, want %q", record.FailureReason, reason)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
