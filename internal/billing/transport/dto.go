package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type UpdateConfigurationRequest struct {
	ChargeModel        string `json:"chargeModel" validate:"required,oneof=stage_change lead_access agent_execution"`
	DebitOnStageChange bool   `json:"debitOnStageChange"`
}

// Response DTOs

type ConfigurationResponse struct {
	ChargeModel        string     `json:"chargeModel"`
	DebitOnStageChange bool       `json:"debitOnStageChange"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

type ChargeResponse struct {
	ID            uuid.UUID `json:"id"`
	LeadID        uuid.UUID `json:"leadId"`
	StageID       uuid.UUID `json:"stageId"`
	AmountCents   int64     `json:"amountCents"`
	Succeeded     bool      `json:"succeeded"`
	FailureReason *string   `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ChargeListResponse struct {
	Items []ChargeResponse `json:"items"`
}
