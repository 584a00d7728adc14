package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stayops/console/internal/alerts"
	"github.com/stayops/console/internal/console"
	"github.com/stayops/console/internal/metrics"
	"github.com/stayops/console/internal/notify"
	"github.com/stayops/console/internal/session"
	"github.com/stayops/console/internal/view"
)

// Handler serves the browser shell: rendered view models on the read side,
// proxied staff actions on the write side.
type Handler struct {
	console   *console.Console
	toasts    *notify.RingSink
	collector *metrics.Collector
	logger    *zap.Logger
	pageLimit int
}

// NewHandler creates the HTTP handler for the console surface.
func NewHandler(svc *console.Console, toasts *notify.RingSink, collector *metrics.Collector, logger *zap.Logger, pageLimit int) *Handler {
	if pageLimit <= 0 {
		pageLimit = 50
	}
	return &Handler{
		console:   svc,
		toasts:    toasts,
		collector: collector,
		logger:    logger,
		pageLimit: pageLimit,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.collector.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		alertRoutes := api.Group("/alerts")
		{
			alertRoutes.GET("", h.GetAlerts)
			alertRoutes.GET("/summary", h.GetSummary)
			alertRoutes.GET("/history", h.GetHistory)
			alertRoutes.POST("/:id/:action", h.ApplyAction)
		}

		api.GET("/toasts", h.GetToasts)
		api.GET("/connection", h.GetConnection)

		sessionRoutes := api.Group("/sessions")
		{
			sessionRoutes.GET("", h.GetSessions)
			sessionRoutes.PATCH("/:id/risk-score", h.UpdateRiskScore)
			sessionRoutes.POST("/:id/end", h.EndSession)
		}
	}
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSummary serves the alert badge counts.
func (h *Handler) GetSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.console.Summary())
}

// GetAlerts serves the filtered, rendered active alert list.
func (h *Handler) GetAlerts(c *gin.Context) {
	var filter view.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter"})
		return
	}

	limit := h.limit(c)
	page := make([]alerts.Alert, 0, limit)
	for alert := range h.console.Store().Recent(limit) {
		page = append(page, alert)
	}

	c.JSON(http.StatusOK, gin.H{"alerts": view.Apply(filter, page)})
}

// GetHistory serves resolved and dismissed alerts.
func (h *Handler) GetHistory(c *gin.Context) {
	limit := h.limit(c)
	views := make([]view.AlertView, 0, limit)
	for alert := range h.console.Store().History(limit) {
		views = append(views, view.Render(alert))
	}
	c.JSON(http.StatusOK, gin.H{"alerts": views})
}

type actionBody struct {
	Notes string `json:"notes"`
}

// ApplyAction proxies an alert action to the platform backend and returns the
// updated view model.
func (h *Handler) ApplyAction(c *gin.Context) {
	action, ok := parseAction(c.Param("action"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	var body actionBody
	c.ShouldBindJSON(&body)

	updated, err := h.console.Act(c.Request.Context(), c.Param("id"), action, body.Notes)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, view.Render(updated))
}

// GetToasts serves the recent transient notifications.
func (h *Handler) GetToasts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"toasts": h.toasts.Recent()})
}

// GetConnection serves the real-time connection status widget state.
func (h *Handler) GetConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.console.ConnectionStatus())
}

type sessionView struct {
	session.Record
	Tier session.Tier `json:"tier"`
}

// GetSessions serves the login sessions, riskiest first.
func (h *Handler) GetSessions(c *gin.Context) {
	records := h.console.Sessions().Records()
	views := make([]sessionView, 0, len(records))
	for _, record := range records {
		views = append(views, sessionView{Record: record, Tier: record.Tier()})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

type riskScoreBody struct {
	RiskScore int    `json:"risk_score" binding:"gte=0,lte=100"`
	Reason    string `json:"reason"`
}

// UpdateRiskScore proxies an administrative risk-score change.
func (h *Handler) UpdateRiskScore(c *gin.Context) {
	var body riskScoreBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid risk score"})
		return
	}

	record, err := h.console.Sessions().UpdateRiskScore(c.Request.Context(), c.Param("id"), body.RiskScore, body.Reason)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessionView{Record: record, Tier: record.Tier()})
}

// EndSession proxies an administrative session termination.
func (h *Handler) EndSession(c *gin.Context) {
	if err := h.console.Sessions().EndSession(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *Handler) limit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return h.pageLimit
}

func parseAction(raw string) (alerts.Action, bool) {
	switch alerts.Action(raw) {
	case alerts.ActionAcknowledge, alerts.ActionStartWorking, alerts.ActionResolve, alerts.ActionDismiss:
		return alerts.Action(raw), true
	default:
		return "", false
	}
}

// Server wraps the gin engine in an http.Server with lifecycle control
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// New builds the console surface server.
func New(handler *Handler, port, readTimeout, writeTimeout int, environment string, logger *zap.Logger) *Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		logger: logger,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Console surface listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("console surface failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
