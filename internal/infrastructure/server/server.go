package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/artwork/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/domain/artwork"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/providers/http/client"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/providers/imagefetch"
)

// WebSocketPath serves artwork sessions
const WebSocketPath = "/v1/sessions/ws"

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	handler    http.Handler
	httpServer *http.Server
	service    *artwork.Service
	fetcher    *imagefetch.Fetcher
	tracer     *tracing.Tracer
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing artwork server",
		zap.String("port", cfg.Server.Port),
		zap.Int("min_size_px", cfg.Artwork.MinSizePx),
		zap.Int("ideal_size_px", cfg.Artwork.IdealSizePx),
		zap.Strings("allowed_hosts", cfg.Fetch.AllowedHosts),
	)

	// Metrics first, the rest report into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("artwork", logger.Component("tracing"))

	httpClient, err := client.New(client.Config{
		Timeout:           time.Duration(cfg.Fetch.TimeoutSec) * time.Second,
		RetryMax:          cfg.Fetch.RetryMax,
		RetryWaitMin:      client.DefaultConfig().RetryWaitMin,
		RetryWaitMax:      client.DefaultConfig().RetryWaitMax,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		MaxBodyBytes:      cfg.Fetch.MaxBodyBytes,
		AllowedHosts:      cfg.Fetch.AllowedHosts,
		UserAgent:         cfg.Fetch.UserAgent,
	},
		client.WithLogger(logger.Component("fetch")),
		client.WithBreakerObserver(func(name string, _, to resilience.State) {
			metrics.SetBreakerState(name, float64(to))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch client: %w", err)
	}

	fetcher := imagefetch.New(httpClient,
		imagefetch.WithLogger(logger.Component("imagefetch")),
		imagefetch.WithMetrics(metrics),
		imagefetch.WithTracer(tracer),
		imagefetch.WithTimeout(time.Duration(cfg.Fetch.TimeoutSec)*time.Second),
		imagefetch.WithMaxPixels(cfg.Fetch.MaxPixels),
	)

	service := artwork.NewService(fetcher, artwork.Config{
		MinSize:        cfg.Artwork.MinSizePx,
		IdealSize:      cfg.Artwork.IdealSizePx,
		ResolveTimeout: time.Duration(cfg.Artwork.ResolveTimeoutSec) * time.Second,
		MaxSessions:    cfg.Artwork.MaxSessions,
	},
		artwork.WithLogger(logger.Component("artwork")),
		artwork.WithObserver(monitoring.NewObserver(metrics)),
		artwork.WithSessionGauge(metrics.SetSessionsActive),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	apihttp.NewHandlers(service, metrics, logger.Component("api")).Register(router)
	router.GET(WebSocketPath, ws.NewHandler(service, metrics, logger.Component("ws")).HandleConnection)

	s := &Server{
		router:  router,
		handler: compress(router),
		service: service,
		fetcher: fetcher,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

// compress gzips everything except WebSocket upgrades, whose hijacked
// connections cannot pass through a compressing writer
func compress(router http.Handler) http.Handler {
	gzipped := gzhttp.GzipHandler(router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			router.ServeHTTP(w, r)
			return
		}
		gzipped.ServeHTTP(w, r)
	})
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Service returns the artwork service
func (s *Server) Service() *artwork.Service {
	return s.service
}

// Logger returns the server logger
func (s *Server) Logger() *logging.Logger {
	return s.logger
}

// Run starts the HTTP server and blocks until it stops. A graceful
// Shutdown makes Run return nil.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes every session and waits for
// in-flight fetches
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("Failed to shut down HTTP server", zap.Error(shutdownErr))
			err = fmt.Errorf("failed to shut down http server: %w", shutdownErr)
		}
	}

	s.service.Shutdown()
	s.fetcher.Close()
	s.tracer.Close()
	s.logger.Info("Server stopped")

	// Sync logger before exit
	_ = s.logger.Sync()
	return err
}
