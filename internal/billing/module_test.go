package billing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"pipeline_backend/internal/events"
	"pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

func captureLogger() (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}, &buf
}

func TestChargeFailedEventRaisesAlert(t *testing.T) {
	log, buf := captureLogger()
	bus := events.NewInMemoryBus(log)

	m := &Module{log: log}
	m.RegisterHandlers(bus)

	tenantID := uuid.New()
	event := events.ChargeFailed{
		BaseEvent:   events.NewBaseEvent(),
		TenantID:    tenantID,
		LeadID:      uuid.New(),
		StageID:     uuid.New(),
		AmountCents: 500,
		Reason:      "insufficient balance",
	}
	if err := bus.PublishSync(context.Background(), event); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "charge failed") {
		t.Fatalf("expected a charge failure alert, got: %q", out)
	}
	if !strings.Contains(out, tenantID.String()) || !strings.Contains(out, "insufficient balance") {
		t.Fatalf("alert missing tenant or reason: %q", out)
	}
}

func TestChargeFailedHandlerIgnoresOtherEvents(t *testing.T) {
	log, buf := captureLogger()
	bus := events.NewInMemoryBus(log)

	m := &Module{log: log}
	m.RegisterHandlers(bus)

	if err := bus.PublishSync(context.Background(), events.LeadStageTransitioned{
		BaseEvent:  events.NewBaseEvent(),
		TenantID:   uuid.New(),
		LeadID:     uuid.New(),
		NewStageID: uuid.New(),
	}); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("no alert expected for a successful transition, got: %q", buf.String())
	}
}
