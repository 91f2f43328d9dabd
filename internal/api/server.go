package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fleetwatch/internal/alert"
	"fleetwatch/internal/engine"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
	"fleetwatch/internal/store"
)

// Server is the HTTP surface consumed by the UI and the CLI: instance
// queries and commands, alerting configuration CRUD, telemetry ingest.
type Server struct {
	manager *alert.Manager
	engine  *engine.Engine
	cfg     *store.GormStore
	logger  *zap.Logger
	router  *gin.Engine
}

func NewServer(manager *alert.Manager, eng *engine.Engine, cfg *store.GormStore, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		manager: manager,
		engine:  eng,
		cfg:     cfg,
		logger:  logger,
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")

	api.POST("/telemetry", s.ingestTelemetry)

	api.GET("/alerts", s.listAlerts)
	api.GET("/alerts/export", s.exportAlerts)
	api.GET("/alerts/:id", s.getAlert)
	api.PUT("/alerts/:id/acknowledge", s.acknowledgeAlert)
	api.PUT("/alerts/:id/resolve", s.resolveAlert)
	api.PUT("/alerts/:id/suppress", s.suppressAlert)

	rules := api.Group("/rules")
	{
		rules.GET("", s.listRules)
		rules.GET("/:id", s.getRule)
		rules.POST("", s.createRule)
		rules.PUT("/:id", s.updateRule)
		rules.DELETE("/:id", s.deleteRule)
		rules.POST("/validate", s.validateRule)
	}

	api.GET("/policies", s.listPolicies)
	api.POST("/policies", s.createPolicy)
	api.GET("/channels", s.listChannels)
	api.POST("/channels", s.createChannel)
	api.POST("/devices", s.upsertDevice)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

func (s *Server) ingestTelemetry(c *gin.Context) {
	var samples []models.TelemetrySample
	var single models.TelemetrySample

	if err := c.ShouldBindBodyWith(&samples, binding.JSON); err != nil {
		if err := c.ShouldBindBodyWith(&single, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected a sample or an array of samples"})
			return
		}
		samples = []models.TelemetrySample{single}
	}

	metrics.SamplesIngested.WithLabelValues("http").Add(float64(len(samples)))
	s.engine.HandleBatch(c.Request.Context(), samples)
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(samples)})
}

func (s *Server) listAlerts(c *gin.Context) {
	filter := alert.ListFilter{
		Status:     models.InstanceStatus(c.Query("status")),
		Severity:   models.Severity(c.Query("severity")),
		LocationID: c.Query("location"),
		DeviceID:   c.Query("device"),
		Search:     c.Query("search"),
	}
	c.JSON(http.StatusOK, s.manager.List(filter))
}

func (s *Server) getAlert(c *gin.Context) {
	inst, err := s.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (s *Server) exportAlerts(c *gin.Context) {
	filter := alert.ListFilter{
		Status:            models.InstanceStatus(c.Query("status")),
		Severity:          models.Severity(c.Query("severity")),
		LocationID:        c.Query("location"),
		DeviceID:          c.Query("device"),
		Search:            c.Query("search"),
		IncludeSuppressed: true,
	}
	instances := s.manager.List(filter)

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="alerts.csv"`)
	if err := alert.WriteCSV(c.Writer, instances, time.Now()); err != nil {
		s.logger.Error("csv export failed", zap.Error(err))
	}
}

func (s *Server) lifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, alert.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, alert.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	var req struct {
		By string `json:"by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.manager.Acknowledge(c.Param("id"), req.By); err != nil {
		s.lifecycleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) resolveAlert(c *gin.Context) {
	if err := s.manager.Resolve(c.Param("id")); err != nil {
		s.lifecycleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) suppressAlert(c *gin.Context) {
	if err := s.manager.Suppress(c.Param("id")); err != nil {
		s.lifecycleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) listRules(c *gin.Context) {
	var enabledPtr *bool
	if v := c.Query("enabled"); v != "" {
		enabled := v == "true"
		enabledPtr = &enabled
	}
	rules, err := s.cfg.ListRules(enabledPtr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) getRule(c *gin.Context) {
	rule, err := s.cfg.GetRule(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) createRule(c *gin.Context) {
	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cfg.CreateRule(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) updateRule(c *gin.Context) {
	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = c.Param("id")
	if err := s.cfg.UpdateRule(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	if err := s.cfg.DeleteRule(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) validateRule(c *gin.Context) {
	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (s *Server) listPolicies(c *gin.Context) {
	policies, err := s.cfg.ListPolicies()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, policies)
}

func (s *Server) createPolicy(c *gin.Context) {
	var policy models.EscalationPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cfg.CreatePolicy(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, policy)
}

func (s *Server) listChannels(c *gin.Context) {
	channels, err := s.cfg.ListChannels()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (s *Server) createChannel(c *gin.Context) {
	var channel models.NotificationChannel
	if err := c.ShouldBindJSON(&channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cfg.CreateChannel(&channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, channel)
}

func (s *Server) upsertDevice(c *gin.Context) {
	var device models.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if device.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device id is required"})
		return
	}
	if err := s.cfg.UpsertDevice(&device); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, device)
}
