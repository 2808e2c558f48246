// Package pipeline provides the stage transition bounded context module:
// stage configuration, the transition executor, bulk coordination, history,
// and funnel metrics.
package pipeline

import (
	"pipeline_backend/internal/events"
	apphttp "pipeline_backend/internal/http"
	"pipeline_backend/internal/pipeline/handler"
	"pipeline_backend/internal/pipeline/leadlock"
	"pipeline_backend/internal/pipeline/ports"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/service"
	"pipeline_backend/internal/scheduler"
	"pipeline_backend/platform/config"
	"pipeline_backend/platform/logger"
	"pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler     *handler.Handler
	coordinator *service.Coordinator
}

// NewModule wires the pipeline context. The charge policy and credit ledger
// are ports: the billing context and the external ledger plug in behind them.
// bulkJobs may be nil when no background worker is deployed; the async bulk
// route is then not mounted.
func NewModule(
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	eventBus events.Bus,
	val *validator.Validator,
	cfg config.PipelineConfig,
	ledgerCfg config.LedgerConfig,
	chargePolicy ports.ChargePolicy,
	ledger ports.CreditLedger,
	bulkJobs scheduler.BulkEnqueuer,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	locker := leadlock.New(redisClient, cfg.GetLeadLockTTL())

	registry := service.NewRegistry(repo, log)
	executor := service.NewExecutor(repo, repo, chargePolicy, ledger, locker, eventBus, log, ledgerCfg.GetLedgerTimeout())
	coordinator := service.NewCoordinator(executor, cfg.GetBulkWorkers())
	history := service.NewHistory(repo, repo)
	funnel := service.NewFunnel(repo, repo)

	h := handler.New(registry, executor, coordinator, history, funnel, bulkJobs, val)

	return &Module{
		handler:     h,
		coordinator: coordinator,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "pipeline" }

// Coordinator exposes the bulk coordinator for the background worker.
func (m *Module) Coordinator() *service.Coordinator { return m.coordinator }

// RegisterRoutes mounts the pipeline routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/pipeline"), ctx.Admin)
}
