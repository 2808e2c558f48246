// Package billing provides the billing bounded context module:
// tenant billing configuration, the charge policy, and the charge audit trail.
package billing

import (
	"context"
	"fmt"

	"pipeline_backend/internal/billing/handler"
	"pipeline_backend/internal/billing/repository"
	"pipeline_backend/internal/billing/service"
	"pipeline_backend/internal/events"
	apphttp "pipeline_backend/internal/http"
	"pipeline_backend/platform/logger"
	"pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the billing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	log     *logger.Logger
}

// NewModule creates and initializes the billing module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, repo)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "billing" }

// Service exposes the billing service for cross-module adapters.
func (m *Module) Service() *service.Service { return m.service }

// RegisterRoutes mounts the billing routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/billing"), ctx.Admin)
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.ChargeFailed{}.EventName(), events.HandlerFunc(m.handleChargeFailed))
}

// handleChargeFailed raises the operator alert for a transition whose ledger
// debit did not complete. The transition itself stands; the stage's cost is
// the revenue at risk until the tenant is reconciled.
func (m *Module) handleChargeFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ChargeFailed)
	if !ok {
		return fmt.Errorf("billing: unexpected event payload %T", event)
	}

	m.log.WithContext(ctx).Warn("stage transition charge failed, tenant needs reconciliation",
		"tenant_id", e.TenantID,
		"lead_id", e.LeadID,
		"stage_id", e.StageID,
		"amount_cents", e.AmountCents,
		"reason", e.Reason,
	)
	return nil
}
