package handler

import (
	"net/http"
	"strconv"

	"pipeline_backend/internal/billing/service"
	"pipeline_backend/internal/billing/transport"
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
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the billing routes. Configuration updates are
// admin-only; reads and the charge audit trail are available to any
// authenticated tenant member.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, admin *gin.RouterGroup) {
	rg.GET("/configuration", h.GetConfiguration)
	rg.GET("/charges", h.ListCharges)
	admin.PUT("/billing/configuration", h.UpdateConfiguration)
}

func (h *Handler) GetConfiguration(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	cfg, err := h.svc.GetConfiguration(c.Request.Context(), id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, cfg)
}

func (h *Handler) UpdateConfiguration(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.UpdateConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	cfg, err := h.svc.UpdateConfiguration(c.Request.Context(), id.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, cfg)
}

func (h *Handler) ListCharges(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var leadID *uuid.UUID
	if raw := c.Query("leadId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		leadID = &parsed
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	charges, err := h.svc.ListCharges(c.Request.Context(), id.TenantID(), leadID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, charges)
}
