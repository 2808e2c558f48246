package service

import (
	"context"
	"errors"

	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	defaultHistoryPageSize = 50
	maxHistoryPageSize     = 200
)

// History reads the append-only transition ledger for audit timelines.
type History struct {
	store repository.HistoryReader
	leads repository.LeadReader
}

func NewHistory(store repository.HistoryReader, leads repository.LeadReader) *History {
	return &History{store: store, leads: leads}
}

// ListForLead returns the lead's transitions, newest first. Limit/offset make
// the listing restartable.
func (h *History) ListForLead(ctx context.Context, tenantID, leadID uuid.UUID, limit, offset int) (transport.HistoryListResponse, error) {
	if _, err := h.leads.GetLead(ctx, tenantID, leadID); err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			return transport.HistoryListResponse{}, apperr.NotFound("lead not found")
		}
		return transport.HistoryListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	if limit <= 0 {
		limit = defaultHistoryPageSize
	}
	if limit > maxHistoryPageSize {
		limit = maxHistoryPageSize
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := h.store.ListForLead(ctx, repository.ListHistoryParams{
		TenantID: tenantID,
		LeadID:   leadID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return transport.HistoryListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list transitions", err)
	}

	items := make([]transport.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, transport.HistoryEntryResponse{
			ID:                entry.ID,
			PreviousStageID:   entry.PreviousStageID,
			PreviousStageName: entry.PreviousStageName,
			NewStageID:        entry.NewStageID,
			NewStageName:      entry.NewStageName,
			Reason:            entry.Reason,
			Automatic:         entry.Automatic,
			DurationHours:     entry.DurationHours,
			ActorID:           entry.ActorID,
			CreatedAt:         entry.CreatedAt,
		})
	}

	return transport.HistoryListResponse{Items: items}, nil
}
