package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskBulkTransition = "pipeline.bulk_transition"

// BulkTransitionPayload carries a deferred bulk stage move. Transitions run
// from the worker are system-driven: automatic=true, no actor.
type BulkTransitionPayload struct {
	TenantID      string   `json:"tenantId"`
	LeadIDs       []string `json:"leadIds"`
	TargetStageID string   `json:"targetStageId"`
	Reason        *string  `json:"reason,omitempty"`
}

func NewBulkTransitionTask(payload BulkTransitionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBulkTransition, data), nil
}

func ParseBulkTransitionPayload(task *asynq.Task) (BulkTransitionPayload, error) {
	var payload BulkTransitionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BulkTransitionPayload{}, err
	}
	return payload, nil
}
