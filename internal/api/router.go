package api

import (
	"net/http"

	"github.com/enjaz/request-service/internal/logging"
	"github.com/enjaz/request-service/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins []string
	Limiter        *RateLimiter
	Metrics        *metrics.Metrics
}

// SetupRouter wires every route onto a new gin engine.
func SetupRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(logging.JSONLogger())
	router.Use(gin.Recovery())
	router.Use(cfg.Metrics.Middleware())

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
	}
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	router.Use(cors.New(corsCfg))

	// Health and readiness endpoints
	router.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/ready", h.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Public catalog
	public := router.Group("/api")
	{
		public.GET("/agencies", h.ListAgencies)
		public.GET("/services", h.ListServices)
	}

	// Authenticated client endpoints
	client := router.Group("/api")
	client.Use(AuthMiddleware(cfg.JWTSecret), cfg.Limiter.Limit())
	{
		client.POST("/requests", h.CreateRequest)
		client.GET("/requests", h.ListMyRequests)
		client.GET("/requests/:id", h.GetRequest)
		client.GET("/requests/:id/messages", h.ListMessages)
		client.POST("/requests/:id/messages", h.PostMessage)
		client.GET("/requests/:id/attachment", h.GetAttachmentURL)
		client.POST("/attachments/presign", h.PresignAttachment)
	}

	// Staff triage
	staff := router.Group("/api/admin")
	staff.Use(AuthMiddleware(cfg.JWTSecret), StaffMiddleware(), cfg.Limiter.Limit())
	{
		staff.GET("/requests", h.GetAdminRequests)
		staff.GET("/requests/:id", h.GetAdminRequest)
		staff.PUT("/requests/:id/status", h.UpdateRequestStatus)
		staff.POST("/requests/bulk-status", h.BulkUpdateRequestStatus)
		staff.GET("/stats", h.GetStats)
	}

	// Catalog management
	admin := router.Group("/api/admin")
	admin.Use(AuthMiddleware(cfg.JWTSecret), AdminMiddleware(), cfg.Limiter.Limit())
	{
		admin.POST("/agencies", h.CreateAgency)
		admin.PUT("/agencies/:id", h.UpdateAgency)
		admin.DELETE("/agencies/:id", h.DeleteAgency)
		admin.POST("/services", h.CreateService)
		admin.PUT("/services/:id", h.UpdateService)
		admin.DELETE("/services/:id", h.DeleteService)
	}

	return router
}
