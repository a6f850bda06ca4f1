package api

import (
	"context"
	"net/http"
	"time"

	"github.com/enjaz/request-service/internal/models"
	"github.com/gin-gonic/gin"
)

// ListAgencies returns every agency
func (h *Handler) ListAgencies(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	l, err := h.catalog.ListAgencies(ctx)
	if err != nil {
		respondError(c, "Failed to list agencies", err)
		return
	}
	c.JSON(http.StatusOK, models.CatalogListResponse{Data: l.Items, Stale: l.Stale})
}

// ListServices returns services, optionally filtered by agency_id
func (h *Handler) ListServices(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	l, err := h.catalog.ListServices(ctx, c.Query("agency_id"))
	if err != nil {
		respondError(c, "Failed to list services", err)
		return
	}
	c.JSON(http.StatusOK, models.CatalogListResponse{Data: l.Items, Stale: l.Stale})
}

// CreateAgency adds an agency
func (h *Handler) CreateAgency(c *gin.Context) {
	var req models.AgencyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	a, err := h.catalog.CreateAgency(ctx, req)
	if err != nil {
		respondError(c, "Failed to create agency", err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// UpdateAgency edits an agency
func (h *Handler) UpdateAgency(c *gin.Context) {
	var req models.AgencyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	a, err := h.catalog.UpdateAgency(ctx, c.Param("id"), req)
	if err != nil {
		respondError(c, "Failed to update agency", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// DeleteAgency removes an agency and its services
func (h *Handler) DeleteAgency(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.catalog.DeleteAgency(ctx, c.Param("id")); err != nil {
		respondError(c, "Failed to delete agency", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Message: "Agency deleted successfully"})
}

// CreateService adds a service under an existing agency
func (h *Handler) CreateService(c *gin.Context) {
	var req models.ServiceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	s, err := h.catalog.CreateService(ctx, req)
	if err != nil {
		respondError(c, "Failed to create service", err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// UpdateService edits a service
func (h *Handler) UpdateService(c *gin.Context) {
	var req models.ServiceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	s, err := h.catalog.UpdateService(ctx, c.Param("id"), req)
	if err != nil {
		respondError(c, "Failed to update service", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// DeleteService removes a service
func (h *Handler) DeleteService(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.catalog.DeleteService(ctx, c.Param("id")); err != nil {
		respondError(c, "Failed to delete service", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Message: "Service deleted successfully"})
}
