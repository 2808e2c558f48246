package transport

import (
	"time"

	"pipeline_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// Request DTOs

type CreateStageRequest struct {
	Name               string  `json:"name" validate:"required,min=1,max=100"`
	Category           string  `json:"category" validate:"required,oneof=new contacted qualifying negotiating won lost"`
	Color              string  `json:"color" validate:"required,hexcolor"`
	Icon               *string `json:"icon,omitempty" validate:"omitempty,max=50"`
	Ordinal            int     `json:"ordinal" validate:"min=0,max=19"`
	IsInitial          bool    `json:"isInitial"`
	IsFinal            bool    `json:"isFinal"`
	ChargesCredits     bool    `json:"chargesCredits"`
	CostCents          *int64  `json:"costCents,omitempty" validate:"omitempty,gt=0"`
	BillingDescription *string `json:"billingDescription,omitempty" validate:"omitempty,max=200"`
}

// UpdateStageRequest carries only the mutable stage fields. Category and the
// initial flag are deliberately absent from the JSON shape; sending them is
// rejected by the service with an immutable-field error.
type UpdateStageRequest struct {
	Name               *string      `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Color              *string      `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Icon               OptionalText `json:"icon,omitempty" validate:"-"`
	IsFinal            *bool        `json:"isFinal,omitempty"`
	ChargesCredits     *bool        `json:"chargesCredits,omitempty"`
	CostCents          OptionalInt  `json:"costCents,omitempty" validate:"-"`
	BillingDescription OptionalText `json:"billingDescription,omitempty" validate:"-"`
	Category           *string      `json:"category,omitempty"`
	IsInitial          *bool        `json:"isInitial,omitempty"`
}

type ReorderStagesRequest struct {
	OrderedIDs []uuid.UUID `json:"orderedIds" validate:"required,min=1,max=20"`
}

type TransitionRequest struct {
	TargetStageID uuid.UUID `json:"targetStageId" validate:"required"`
	Reason        *string   `json:"reason,omitempty" validate:"omitempty,max=500"`
	Automatic     bool      `json:"automatic"`
}

type BulkTransitionRequest struct {
	LeadIDs       []uuid.UUID `json:"leadIds" validate:"required,min=1,max=1000"`
	TargetStageID uuid.UUID   `json:"targetStageId" validate:"required"`
	Reason        *string     `json:"reason,omitempty" validate:"omitempty,max=500"`
	Automatic     bool        `json:"automatic"`
}

// Response DTOs

type StageResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Category           string    `json:"category"`
	Color              string    `json:"color"`
	Icon               *string   `json:"icon,omitempty"`
	Ordinal            int       `json:"ordinal"`
	IsInitial          bool      `json:"isInitial"`
	IsFinal            bool      `json:"isFinal"`
	ChargesCredits     bool      `json:"chargesCredits"`
	CostCents          *int64    `json:"costCents,omitempty"`
	BillingDescription *string   `json:"billingDescription,omitempty"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type StageListResponse struct {
	Items []StageResponse `json:"items"`
}

type TransitionResponse struct {
	PreviousStageID *uuid.UUID       `json:"previousStageId"`
	NewStageID      uuid.UUID        `json:"newStageId"`
	ChangedAt       time.Time        `json:"changedAt"`
	DurationHours   float64          `json:"durationHours"`
	Warnings        []domain.Warning `json:"warnings"`
}

type BulkTransitionError struct {
	LeadID uuid.UUID `json:"leadId"`
	Error  string    `json:"error"`
}

type BulkChargeWarning struct {
	LeadID uuid.UUID `json:"leadId"`
	Type   string    `json:"type"`
	Reason string    `json:"reason"`
}

type BulkTransitionResponse struct {
	SuccessCount   int                   `json:"successCount"`
	FailedCount    int                   `json:"failedCount"`
	TotalRequested int                   `json:"totalRequested"`
	Errors         []BulkTransitionError `json:"errors"`
	ChargeWarnings []BulkChargeWarning   `json:"chargeWarnings"`
}

type HistoryEntryResponse struct {
	ID                uuid.UUID  `json:"id"`
	PreviousStageID   *uuid.UUID `json:"previousStageId"`
	PreviousStageName *string    `json:"previousStageName,omitempty"`
	NewStageID        uuid.UUID  `json:"newStageId"`
	NewStageName      string     `json:"newStageName"`
	Reason            *string    `json:"reason,omitempty"`
	Automatic         bool       `json:"automatic"`
	DurationHours     float64    `json:"durationHours"`
	ActorID           *uuid.UUID `json:"actorId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type HistoryListResponse struct {
	Items []HistoryEntryResponse `json:"items"`
}

type FunnelStageResponse struct {
	StageID                uuid.UUID `json:"stageId"`
	Name                   string    `json:"name"`
	Category               string    `json:"category"`
	Ordinal                int       `json:"ordinal"`
	LeadCount              int       `json:"leadCount"`
	PercentageOfTotal      float64   `json:"percentageOfTotal"`
	ConversionFromPrevious *float64  `json:"conversionFromPrevious"`
	AverageDurationHours   *float64  `json:"averageDurationHours"`
}

type FunnelResponse struct {
	TotalLeads int                   `json:"totalLeads"`
	PerStage   []FunnelStageResponse `json:"perStage"`
}
