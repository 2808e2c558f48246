package repository

import (
	"context"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// StageReader provides read-only access to pipeline stages.
type StageReader interface {
	GetStage(ctx context.Context, tenantID, id uuid.UUID) (Stage, error)
	ListStages(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]Stage, error)
	GetInitialStage(ctx context.Context, tenantID uuid.UUID) (Stage, error)
	FindActiveStageByName(ctx context.Context, tenantID uuid.UUID, name string) (Stage, error)
	CountActiveStages(ctx context.Context, tenantID uuid.UUID) (int, error)
	CountLeadsOnStage(ctx context.Context, tenantID, stageID uuid.UUID, isInitial bool) (int, error)
}

// StageWriter provides write operations for stage configuration.
type StageWriter interface {
	CreateStage(ctx context.Context, params CreateStageParams) (Stage, error)
	UpdateStage(ctx context.Context, tenantID, id uuid.UUID, params UpdateStageParams) (Stage, error)
	DeactivateStage(ctx context.Context, tenantID, id uuid.UUID) error
	ReorderStages(ctx context.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error
}

// LeadReader provides read-only access to the engine's lead projection.
type LeadReader interface {
	GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (Lead, error)
}

// TransitionStore provides the state the Transition Executor reads and the
// atomic assignment+history commit it writes.
type TransitionStore interface {
	LeadReader
	GetAssignedStageID(ctx context.Context, tenantID, leadID uuid.UUID) (*uuid.UUID, error)
	GetLastTransition(ctx context.Context, tenantID, leadID uuid.UUID) (*TransitionRecord, error)
	CommitTransition(ctx context.Context, params CommitTransitionParams) (TransitionRecord, error)
}

// HistoryReader provides read access to the append-only transition history.
type HistoryReader interface {
	ListForLead(ctx context.Context, params ListHistoryParams) ([]HistoryEntry, error)
}

// FunnelReader provides the raw inputs of the funnel metrics computation.
type FunnelReader interface {
	GetFunnelCounts(ctx context.Context, tenantID, campaignID uuid.UUID) (FunnelCounts, error)
}
