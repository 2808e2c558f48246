package scheduler

import (
	"context"
	"fmt"

	pipelinesvc "pipeline_backend/internal/pipeline/service"
	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/platform/config"
	"pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	coordinator *pipelinesvc.Coordinator
	log         *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, coordinator *pipelinesvc.Coordinator, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:      server,
		mux:         mux,
		coordinator: coordinator,
		log:         log,
	}

	mux.HandleFunc(TaskBulkTransition, w.handleBulkTransition)

	return w, nil
}

func (w *Worker) handleBulkTransition(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBulkTransitionPayload(task)
	if err != nil {
		return err
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return err
	}
	targetStageID, err := uuid.Parse(payload.TargetStageID)
	if err != nil {
		return err
	}

	leadIDs := make([]uuid.UUID, 0, len(payload.LeadIDs))
	for _, raw := range payload.LeadIDs {
		leadID, err := uuid.Parse(raw)
		if err != nil {
			return err
		}
		leadIDs = append(leadIDs, leadID)
	}

	result, err := w.coordinator.BulkTransition(ctx, tenantID, transport.BulkTransitionRequest{
		LeadIDs:       leadIDs,
		TargetStageID: targetStageID,
		Reason:        payload.Reason,
		Automatic:     true,
	}, nil)
	if err != nil {
		// Request-level rejection (unknown stage, empty list). Retrying
		// cannot help, so surface it once and drop the task.
		w.log.Error("bulk transition task rejected", "tenant_id", payload.TenantID, "error", err)
		return nil
	}

	w.log.Info("bulk transition task completed",
		"tenant_id", payload.TenantID,
		"total", result.TotalRequested,
		"succeeded", result.SuccessCount,
		"failed", result.FailedCount,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
