// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/mindfuse/internal/alerts"
	"github.com/mbd888/mindfuse/internal/assessment"
	"github.com/mbd888/mindfuse/internal/audit"
	"github.com/mbd888/mindfuse/internal/config"
	"github.com/mbd888/mindfuse/internal/correction"
	"github.com/mbd888/mindfuse/internal/emotion"
	"github.com/mbd888/mindfuse/internal/fusion"
	"github.com/mbd888/mindfuse/internal/health"
	"github.com/mbd888/mindfuse/internal/lexicon"
	"github.com/mbd888/mindfuse/internal/logging"
	"github.com/mbd888/mindfuse/internal/metrics"
	"github.com/mbd888/mindfuse/internal/monitor"
	"github.com/mbd888/mindfuse/internal/profile"
	"github.com/mbd888/mindfuse/internal/ratelimit"
	"github.com/mbd888/mindfuse/internal/realtime"
	"github.com/mbd888/mindfuse/internal/security"
	"github.com/mbd888/mindfuse/internal/traces"
	"github.com/mbd888/mindfuse/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg           *config.Config
	store         profile.Store
	assessSvc     *assessment.Service
	alertSvc      *alerts.Service
	auditSvc      *audit.Service
	sweepWorker   *monitor.Worker
	realtimeHub   *realtime.Hub
	rateLimiter   *ratelimit.Limiter
	healthReg     *health.Registry
	db            *sql.DB // nil if using in-memory
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	cancelRunCtx  context.CancelFunc         // cancels background goroutines started in Run
	tracesCleanup func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStore sets a custom profile store (for testing)
func WithStore(store profile.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set store/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Lexicon (embedded defaults unless a file is configured)
	lex := lexicon.Default()
	if cfg.LexiconPath != "" {
		loaded, err := lexicon.LoadFile(cfg.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load lexicon: %w", err)
		}
		lex = loaded
		s.logger.Info("lexicon loaded", "path", cfg.LexiconPath)
	}

	// Correction layer with configured image-rule thresholds
	layer := correction.NewLayer(lex).WithImageRules(correction.DefaultImageRules(correction.RuleThresholds{
		CloseCallRatio: cfg.CorrectionCloseCallRatio,
		WeakAngryTop:   cfg.CorrectionWeakAngryMax,
		WeakAngryHappy: cfg.CorrectionWeakHappyMin,
		UncertainTop:   cfg.CorrectionLowTopMax,
		UncertainHappy: cfg.CorrectionLowHappyMin,
	})...)

	// Fusion engine with configured weights and escalation thresholds
	engine := fusion.NewEngine().
		WithWeights(fusion.Weights{
			emotion.ModalityText:       cfg.TextWeight,
			emotion.ModalityImage:      cfg.ImageWeight,
			emotion.ModalityBehavioral: cfg.BehavioralWeight,
		}).
		WithEscalation(cfg.EscalationSpread, cfg.EscalationFloor)

	// High-risk flag policy, applied inside every profile commit
	policy := monitor.NewPolicy().
		WithWindow(cfg.MonitorWindow).
		WithThreshold(cfg.MonitorThreshold)

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var alertStore alerts.Store
	var auditStore audit.Store
	if s.store == nil && cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		profileStore := profile.NewPostgresStore(db, policy)
		if err := profileStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate profile store", "error", err)
		}
		s.store = profileStore

		pgAlerts := alerts.NewPostgresStore(db)
		if err := pgAlerts.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate alert store", "error", err)
		}
		alertStore = pgAlerts

		pgAudit := audit.NewPostgresStore(db)
		if err := pgAudit.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate audit store", "error", err)
		}
		auditStore = pgAudit
	} else {
		if s.store == nil {
			s.store = profile.NewMemoryStore(policy)
			s.logger.Info("using in-memory storage (data will not persist)")
		}
		alertStore = alerts.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
	}

	// Create realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	// Alert queue with realtime notification
	s.alertSvc = alerts.NewService(alertStore).WithNotifier(&hubNotifier{s.realtimeHub})

	// Audit log for admin actions
	s.auditSvc = audit.NewService(auditStore, s.logger)

	// Assessment service (the evaluation pipeline)
	s.assessSvc = assessment.NewService(layer, engine, s.store, s.logger).
		WithAlerts(s.alertSvc).
		WithBroadcaster(s.realtimeHub).
		WithRetry(cfg.CommitRetries, cfg.CommitRetryDelay)

	// High-risk sweep worker (backfills alerts for flagged profiles)
	s.sweepWorker = monitor.NewWorker(s.store, s.alertSvc, cfg.SweepInterval, s.logger)

	// Health checks
	s.healthReg = health.NewRegistry()
	s.healthReg.Register("profile_store", health.PingChecker("profile_store", s.store.Ping))
	if s.db != nil {
		s.healthReg.Register("database", health.PingChecker("database", s.db.PingContext))
	}

	// Tracing (no-op when no endpoint configured)
	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracesCleanup = shutdown
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// hubNotifier adapts the realtime hub to the alerts.Notifier interface.
type hubNotifier struct {
	hub *realtime.Hub
}

func (n *hubNotifier) AlertRaised(a *alerts.Alert) {
	level := emotion.RiskHigh
	if a.Severity == alerts.SeverityCritical {
		level = emotion.RiskCritical
	}
	n.hub.BroadcastAlert(a.UserID, level, a)
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: s.cfg.RateLimitRPS,
		BurstSize:         10,
		CleanupInterval:   time.Minute,
	})
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// WebSocket for real-time risk event streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :userId URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.UserIDParamMiddleware())

	// Evaluation
	v1.POST("/analyze", s.analyzeHandler)

	// Profiles
	v1.GET("/profiles/:userId", s.getProfileHandler)
	v1.GET("/profiles/:userId/history", s.getHistoryHandler)
	v1.DELETE("/profiles/:userId", s.deleteProfileHandler)

	// Standalone guidance and platform stats
	v1.GET("/guidance/:emotion", s.guidanceHandler)
	v1.GET("/stats", s.statsHandler)

	// ADMIN ROUTES (require X-Admin-Token)
	admin := v1.Group("/admin")
	admin.Use(s.adminAuthMiddleware())
	{
		admin.GET("/high-risk", s.listHighRiskHandler)
		admin.POST("/high-risk/:userId/clear", s.clearHighRiskHandler)
		admin.GET("/alerts", s.listAlertsHandler)
		admin.POST("/alerts/:id/acknowledge", s.acknowledgeAlertHandler)
		admin.POST("/alerts/:id/resolve", s.resolveAlertHandler)
		admin.GET("/audit", s.listAuditHandler)
	}
}

// adminAuthMiddleware checks the X-Admin-Token header. In development
// with no token configured, admin routes stay open for local testing;
// config validation refuses to start production without a token.
func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminToken == "" && !s.cfg.IsProduction() {
			c.Next()
			return
		}
		token := c.GetHeader("X-Admin-Token")
		if token == "" || token != s.cfg.AdminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "A valid X-Admin-Token header is required",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		if st.Healthy {
			checks[st.Name] = "healthy"
		} else {
			checks[st.Name] = "unhealthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Mindfuse",
		"description": "Multimodal mental-health fusion and risk scoring engine",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start high-risk sweep worker
	go s.sweepWorker.Start(runCtx)

	// DB stats collector for the Prometheus gauges
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, sweep worker)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop sweep worker
	if s.sweepWorker != nil {
		s.sweepWorker.Stop()
		s.logger.Info("sweep worker stopped")
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.tracesCleanup != nil {
		if err := s.tracesCleanup(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
