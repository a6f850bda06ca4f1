package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/storage"
	"github.com/enjaz/request-service/internal/store"
	"github.com/gin-gonic/gin"
)

// CreateRequest submits a service request for the caller
func (h *Handler) CreateRequest(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req models.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	service, err := h.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		respondError(c, "Failed to load service", err)
		return
	}

	if h.files.Enabled() {
		for label, key := range req.Attachments {
			if !storage.OwnedBy(p.ID, key) {
				respondError(c, "Invalid attachment", fmt.Errorf("%w: attachment %q was not uploaded by this user", store.ErrInvalidArgument, label))
				return
			}
		}
	}

	r, err := h.engine.CreateRequest(ctx, p, *service, req.Notes, req.Attachments)
	if err != nil {
		respondError(c, "Failed to create request", err)
		return
	}
	c.JSON(http.StatusCreated, models.NewRequestView(*r))
}

// ListMyRequests returns the caller's requests, newest first
func (h *Handler) ListMyRequests(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		unauthorized(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	reqs, err := h.engine.ListForUser(ctx, p.ID)
	if err != nil {
		respondError(c, "Failed to list requests", err)
		return
	}
	c.JSON(http.StatusOK, models.NewRequestViews(reqs))
}

// loadVisibleRequest returns the request if the caller owns it or is staff.
// Requests of other clients are reported as not found.
func (h *Handler) loadVisibleRequest(ctx context.Context, c *gin.Context) (*models.Request, models.Principal, bool) {
	p, ok := GetPrincipal(c)
	if !ok {
		unauthorized(c)
		return nil, p, false
	}
	id := c.Param("id")
	r, err := h.engine.GetRequest(ctx, id)
	if err == nil && r.UserID != p.ID && !p.Role.IsStaff() {
		err = fmt.Errorf("request %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		respondError(c, "Failed to get request", err)
		return nil, p, false
	}
	return r, p, true
}

// GetRequest returns one of the caller's requests
func (h *Handler) GetRequest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	r, _, ok := h.loadVisibleRequest(ctx, c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.NewRequestView(*r))
}

// ListMessages returns the request thread, oldest first
func (h *Handler) ListMessages(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	r, _, ok := h.loadVisibleRequest(ctx, c)
	if !ok {
		return
	}
	msgs, err := h.threads.ListMessages(ctx, r.ID)
	if err != nil {
		respondError(c, "Failed to list messages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// PostMessage appends to the request thread. Staff authorship sets is_admin.
func (h *Handler) PostMessage(c *gin.Context) {
	var req models.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	r, p, ok := h.loadVisibleRequest(ctx, c)
	if !ok {
		return
	}
	msg, err := h.threads.PostMessage(ctx, r.ID, p.ID, p.Name, req.Content, p.Role.IsStaff())
	if err != nil {
		respondError(c, "Failed to post message", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// PresignAttachment issues an upload URL for one requirement of a service
func (h *Handler) PresignAttachment(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req models.PresignAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	service, err := h.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		respondError(c, "Failed to load service", err)
		return
	}
	if !service.HasRequirement(req.Requirement) {
		respondError(c, "Invalid requirement", fmt.Errorf("%w: %q is not a requirement of service %s", store.ErrInvalidArgument, req.Requirement, service.ID))
		return
	}

	u, err := h.files.PresignUpload(ctx, p.ID, req.Requirement, req.ContentType)
	if err != nil {
		respondError(c, "Failed to presign upload", err)
		return
	}
	c.JSON(http.StatusOK, models.PresignAttachmentResponse{Key: u.Key, UploadURL: u.URL, ExpiresAt: u.ExpiresAt})
}

// GetAttachmentURL issues a download URL for one attachment of a request
func (h *Handler) GetAttachmentURL(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	r, _, ok := h.loadVisibleRequest(ctx, c)
	if !ok {
		return
	}
	label := c.Query("label")
	key, exists := r.Attachments[label]
	if !exists {
		respondError(c, "Attachment not found", fmt.Errorf("attachment %q: %w", label, store.ErrNotFound))
		return
	}
	u, err := h.files.PresignDownload(ctx, key)
	if err != nil {
		respondError(c, "Failed to presign download", err)
		return
	}
	c.JSON(http.StatusOK, models.AttachmentURLResponse{Key: u.Key, URL: u.URL, ExpiresAt: u.ExpiresAt})
}
