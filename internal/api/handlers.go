package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/enjaz/request-service/internal/catalog"
	"github.com/enjaz/request-service/internal/conversation"
	"github.com/enjaz/request-service/internal/lifecycle"
	"github.com/enjaz/request-service/internal/logging"
	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/stats"
	"github.com/enjaz/request-service/internal/storage"
	"github.com/enjaz/request-service/internal/store"
	"github.com/gin-gonic/gin"
)

// Handler provides the HTTP handlers over the core services
type Handler struct {
	store   store.Store
	catalog *catalog.Service
	engine  *lifecycle.Engine
	threads *conversation.Service
	stats   *stats.Aggregator
	files   *storage.Attachments
}

// NewHandler creates a new handler instance. files may be nil when
// attachment storage is not configured.
func NewHandler(s store.Store, cat *catalog.Service, engine *lifecycle.Engine, threads *conversation.Service, agg *stats.Aggregator, files *storage.Attachments) *Handler {
	return &Handler{
		store:   s,
		catalog: cat,
		engine:  engine,
		threads: threads,
		stats:   agg,
		files:   files,
	}
}

// Health checks that the store is reachable
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "Store unavailable",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "request-service",
		"timestamp": time.Now().UTC(),
	})
}

// respondError maps the store error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, what string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, store.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrDisabled):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logging.Error(what, map[string]interface{}{
			"route":  c.FullPath(),
			"status": status,
			"error":  err.Error(),
		})
	}
	c.JSON(status, models.ErrorResponse{
		Error:   what,
		Message: err.Error(),
	})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "Invalid request data",
		Message: err.Error(),
	})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "Invalid user",
		Message: "Could not extract user from token",
	})
}
