package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/enjaz/request-service/internal/lifecycle"
	"github.com/enjaz/request-service/internal/models"
	"github.com/gin-gonic/gin"
)

// GetAdminRequests returns a filtered page of every request for triage
func (h *Handler) GetAdminRequests(c *gin.Context) {
	var req models.AdminRequestListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Limit == 0 {
		req.Limit = 20
	}
	status := models.RequestStatus(req.Status)
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid status",
			Message: fmt.Sprintf("unknown status %q", req.Status),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	all, err := h.engine.ListAll(ctx)
	if err != nil {
		respondError(c, "Failed to list requests", err)
		return
	}
	matched := lifecycle.Filter{Status: status, Search: req.Search}.Apply(all)
	page, totalPages := lifecycle.Page(matched, req.Page, req.Limit)

	c.JSON(http.StatusOK, models.AdminRequestListResponse{
		Requests:   models.NewRequestViews(page),
		Total:      len(matched),
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: totalPages,
	})
}

// GetAdminRequest returns a request with its status history and thread
func (h *Handler) GetAdminRequest(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	r, err := h.engine.GetRequest(ctx, id)
	if err != nil {
		respondError(c, "Failed to get request", err)
		return
	}
	history, err := h.engine.History(ctx, id)
	if err != nil {
		respondError(c, "Failed to get status history", err)
		return
	}
	msgs, err := h.threads.ListMessages(ctx, id)
	if err != nil {
		respondError(c, "Failed to list messages", err)
		return
	}

	c.JSON(http.StatusOK, models.AdminRequestDetailResponse{
		Request:       models.NewRequestView(*r),
		StatusHistory: history,
		Messages:      msgs,
	})
}

// forceAllowed reports whether p may bypass the status graph; only admins can.
func forceAllowed(c *gin.Context, p models.Principal, force bool) bool {
	if !force || p.Role == models.RoleAdmin {
		return true
	}
	c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "Admin access required",
		Message: "Only admins may force a status change",
	})
	return false
}

// UpdateRequestStatus moves a request to a new status
func (h *Handler) UpdateRequestStatus(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req models.UpdateRequestStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if !forceAllowed(c, p, req.Force) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	r, err := h.engine.SetStatus(ctx, c.Param("id"), req.Status, lifecycle.StatusUpdate{
		ChangedBy: p.ID,
		Reason:    req.Reason,
		Force:     req.Force,
	})
	if err != nil {
		respondError(c, "Failed to update request status", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Request status updated successfully",
		Data:    models.NewRequestView(*r),
	})
}

// BulkUpdateRequestStatus applies one status to many requests
func (h *Handler) BulkUpdateRequestStatus(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req models.BulkUpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid status",
			Message: fmt.Sprintf("unknown status %q", req.Status),
		})
		return
	}
	if !forceAllowed(c, p, req.Force) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	results := h.engine.BulkSetStatus(ctx, req.RequestIDs, req.Status, lifecycle.StatusUpdate{
		ChangedBy: p.ID,
		Reason:    req.Reason,
		Force:     req.Force,
	})
	updated := 0
	for _, r := range results {
		if r.Success {
			updated++
		}
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Requests updated",
		Data: gin.H{
			"updated_count": updated,
			"total_count":   len(req.RequestIDs),
			"results":       results,
		},
	})
}

// GetStats returns dashboard counters
func (h *Handler) GetStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	st, err := h.stats.Compute(ctx)
	if err != nil {
		respondError(c, "Failed to compute statistics", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
