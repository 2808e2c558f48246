package service

import (
	"context"
	"sync"

	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultBulkWorkers = 8

// Coordinator fans the Transition Executor out over many leads with a
// bounded worker pool. The batch has no all-or-nothing semantics: each lead
// succeeds or fails on its own, and the final counts always cover every
// requested lead exactly once.
type Coordinator struct {
	executor *Executor
	workers  int
}

func NewCoordinator(executor *Executor, workers int) *Coordinator {
	if workers <= 0 {
		workers = defaultBulkWorkers
	}
	return &Coordinator{executor: executor, workers: workers}
}

// BulkTransition moves every requested lead to the target stage. It raises
// only for request-level malformation (empty lead list, unknown target
// stage); per-lead failures land in the errors list. Caller cancellation
// stops dispatching new leads but never rolls back commits already made.
func (c *Coordinator) BulkTransition(ctx context.Context, tenantID uuid.UUID, req transport.BulkTransitionRequest, actorID *uuid.UUID) (transport.BulkTransitionResponse, error) {
	if len(req.LeadIDs) == 0 {
		return transport.BulkTransitionResponse{}, apperr.Validation("lead ids must not be empty")
	}

	target, err := c.executor.resolveTarget(ctx, tenantID, req.TargetStageID)
	if err != nil {
		return transport.BulkTransitionResponse{}, err
	}

	var (
		mu       sync.Mutex
		errs     []transport.BulkTransitionError
		warnings []transport.BulkChargeWarning
		success  int
	)

	recordFailure := func(leadID uuid.UUID, message string) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, transport.BulkTransitionError{LeadID: leadID, Error: message})
	}

	var group errgroup.Group
	group.SetLimit(c.workers)

	for _, leadID := range req.LeadIDs {
		// Stop dispatching once the caller walks away. Workers already
		// running finish their lead; the skipped ones are reported failed.
		if ctx.Err() != nil {
			recordFailure(leadID, "cancelled before dispatch")
			continue
		}

		group.Go(func() error {
			result, err := c.executor.execute(ctx, tenantID, leadID, target, req.Reason, req.Automatic, actorID)
			if err != nil {
				recordFailure(leadID, err.Error())
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			success++
			for _, warning := range result.Warnings {
				warnings = append(warnings, transport.BulkChargeWarning{
					LeadID: leadID,
					Type:   warning.Type,
					Reason: warning.Message,
				})
			}
			return nil
		})
	}

	_ = group.Wait()

	if errs == nil {
		errs = make([]transport.BulkTransitionError, 0)
	}
	if warnings == nil {
		warnings = make([]transport.BulkChargeWarning, 0)
	}

	return transport.BulkTransitionResponse{
		SuccessCount:   success,
		FailedCount:    len(errs),
		TotalRequested: len(req.LeadIDs),
		Errors:         errs,
		ChargeWarnings: warnings,
	}, nil
}
