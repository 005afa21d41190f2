package http

import (
	"net/http"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/domain/artwork"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by Root
const Version = "1.0.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	service *artwork.Service
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(service *artwork.Service, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		service: service,
		metrics: metrics,
		logger:  logger,
	}
}

// Register mounts the handlers on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics)

	v1 := r.Group("/v1")
	v1.POST("/artwork", h.ResolveArtwork)
	v1.POST("/artwork/page", h.ResolvePage)
}

// Root handles the liveness probe
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "artwork",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	cfg := h.service.Config()
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"instance": logging.InstanceID(),
		"sessions": h.service.Count(),
		"artwork": gin.H{
			"min_size_px":   cfg.MinSize,
			"ideal_size_px": cfg.IdealSize,
		},
		"metrics": h.metrics.Snapshot(),
	})
}

// Metrics serves the prometheus exposition
func (h *Handlers) Metrics(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
