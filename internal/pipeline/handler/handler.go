// Package handler exposes the pipeline engine over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"pipeline_backend/internal/pipeline/service"
	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/internal/scheduler"
	"pipeline_backend/platform/httpkit"
	"pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	registry    *service.Registry
	executor    *service.Executor
	coordinator *service.Coordinator
	history     *service.History
	funnel      *service.Funnel
	bulkJobs    scheduler.BulkEnqueuer
	val         *validator.Validator
}

func New(
	registry *service.Registry,
	executor *service.Executor,
	coordinator *service.Coordinator,
	history *service.History,
	funnel *service.Funnel,
	bulkJobs scheduler.BulkEnqueuer,
	val *validator.Validator,
) *Handler {
	return &Handler{
		registry:    registry,
		executor:    executor,
		coordinator: coordinator,
		history:     history,
		funnel:      funnel,
		bulkJobs:    bulkJobs,
		val:         val,
	}
}

// RegisterRoutes mounts the pipeline routes. Stage configuration is
// admin-only; transitions, history, and funnel reads are available to any
// authenticated tenant member.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, admin *gin.RouterGroup) {
	rg.GET("/stages", h.ListStages)
	rg.GET("/stages/:id", h.GetStage)
	admin.POST("/pipeline/stages", h.CreateStage)
	admin.PATCH("/pipeline/stages/:id", h.UpdateStage)
	admin.DELETE("/pipeline/stages/:id", h.DeleteStage)
	admin.PUT("/pipeline/stages/reorder", h.ReorderStages)

	rg.POST("/leads/:id/transition", h.Transition)
	rg.POST("/transitions/bulk", h.BulkTransition)
	if h.bulkJobs != nil {
		rg.POST("/transitions/bulk-async", h.BulkTransitionAsync)
	}
	rg.GET("/leads/:id/history", h.ListHistory)
	rg.GET("/campaigns/:id/funnel", h.ComputeFunnel)
}

func (h *Handler) CreateStage(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	stage, err := h.registry.CreateStage(c.Request.Context(), id.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, stage)
}

func (h *Handler) GetStage(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	stageID, ok := parseIDParam(c)
	if !ok {
		return
	}

	stage, err := h.registry.GetStage(c.Request.Context(), id.TenantID(), stageID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, stage)
}

func (h *Handler) ListStages(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	includeInactive := c.Query("includeInactive") == "true"

	stages, err := h.registry.ListStages(c.Request.Context(), id.TenantID(), includeInactive)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.StageListResponse{Items: stages})
}

func (h *Handler) UpdateStage(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	stageID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transport.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	stage, err := h.registry.UpdateStage(c.Request.Context(), id.TenantID(), stageID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, stage)
}

func (h *Handler) DeleteStage(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	stageID, ok := parseIDParam(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.registry.DeleteStage(c.Request.Context(), id.TenantID(), stageID)) {
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ReorderStages(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.ReorderStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	stages, err := h.registry.ReorderStages(c.Request.Context(), id.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.StageListResponse{Items: stages})
}

func (h *Handler) Transition(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.executor.Transition(c.Request.Context(), id.TenantID(), leadID, req, actorFor(id, req.Automatic))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) BulkTransition(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.BulkTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.coordinator.BulkTransition(c.Request.Context(), id.TenantID(), req, actorFor(id, req.Automatic))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// BulkTransitionAsync defers the bulk move to the background worker. The
// worker runs it with automatic=true; callers get an immediate 202.
func (h *Handler) BulkTransitionAsync(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.BulkTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	leadIDs := make([]string, 0, len(req.LeadIDs))
	for _, leadID := range req.LeadIDs {
		leadIDs = append(leadIDs, leadID.String())
	}

	err := h.bulkJobs.EnqueueBulkTransition(c.Request.Context(), scheduler.BulkTransitionPayload{
		TenantID:      id.TenantID().String(),
		LeadIDs:       leadIDs,
		TargetStageID: req.TargetStageID.String(),
		Reason:        req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusAccepted, gin.H{"totalRequested": len(req.LeadIDs)})
}

func (h *Handler) ListHistory(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseIDParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	history, err := h.history.ListForLead(c.Request.Context(), id.TenantID(), leadID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, history)
}

func (h *Handler) ComputeFunnel(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	campaignID, ok := parseIDParam(c)
	if !ok {
		return
	}

	funnel, err := h.funnel.ComputeFunnel(c.Request.Context(), id.TenantID(), campaignID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, funnel)
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return uuid.Nil, false
	}
	return parsed, true
}

// actorFor returns the acting user for the history record; automatic
// transitions carry no actor.
func actorFor(id httpkit.Identity, automatic bool) *uuid.UUID {
	if automatic {
		return nil
	}
	userID := id.UserID()
	return &userID
}
