package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scenesmith/genqueue/core"
	"github.com/scenesmith/genqueue/logging"
	"github.com/scenesmith/genqueue/metrics"
)

// server holds the handler dependencies for the HTTP API.
type server struct {
	queue     *core.AdmissionQueue
	collector *metrics.Collector
	logger    logging.Logger
}

func (s *server) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/tasks", s.enqueueTask)
		v1.POST("/tasks/:id/complete", s.completeTask)
		v1.POST("/tasks/:id/fail", s.failTask)
		v1.POST("/tasks/:id/cancel", s.cancelTask)
		v1.GET("/tasks/recent", s.recentTasks)

		v1.GET("/state", s.queueState)
		v1.GET("/summary", s.metricsSummary)
		v1.GET("/events", s.recentEvents)
		v1.GET("/export", s.metricsExport)

		v1.POST("/metrics/reset", s.resetMetrics)
		v1.POST("/circuit/reset", s.resetCircuit)
	}
}

type enqueueRequest struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	Priority         string            `json:"priority"`
	Payload          map[string]string `json:"payload"`
	TimeoutMS        int64             `json:"timeoutMs"`
	RequiredMemoryMB uint64            `json:"requiredMemoryMB"`
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (s *server) enqueueTask(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	priority := core.PriorityNormal
	if req.Priority != "" {
		parsed, err := core.ParsePriority(req.Priority)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		priority = parsed
	}

	id, err := s.queue.Enqueue(core.Task{
		ID:               req.ID,
		Type:             core.TaskType(req.Type),
		Priority:         priority,
		Payload:          req.Payload,
		Timeout:          time.Duration(req.TimeoutMS) * time.Millisecond,
		RequiredMemoryMB: req.RequiredMemoryMB,
	})
	if err != nil {
		s.writeTaskError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *server) completeTask(c *gin.Context) {
	if err := s.queue.Complete(c.Param("id")); err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (s *server) failTask(c *gin.Context) {
	var req failRequest
	// The body is optional; a missing reason is recorded as unspecified.
	_ = c.ShouldBindJSON(&req)

	var cause error
	if req.Reason != "" {
		cause = errors.New(req.Reason)
	}
	if err := s.queue.Fail(c.Param("id"), cause); err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "failed"})
}

func (s *server) cancelTask(c *gin.Context) {
	if err := s.queue.Cancel(c.Param("id")); err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *server) recentTasks(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	c.JSON(http.StatusOK, gin.H{"tasks": s.queue.RecentTasks(limit)})
}

func (s *server) queueState(c *gin.Context) {
	c.JSON(http.StatusOK, s.queue.State())
}

func (s *server) metricsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.collector.Summary())
}

func (s *server) recentEvents(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	events := s.collector.RecentEvents(limit)
	c.JSON(http.StatusOK, gin.H{"events": metrics.WrapEvents(events)})
}

func (s *server) metricsExport(c *gin.Context) {
	c.JSON(http.StatusOK, s.collector.Export())
}

func (s *server) resetMetrics(c *gin.Context) {
	s.collector.Reset()
	s.logger.Info("metrics reset via api")
	c.Status(http.StatusNoContent)
}

func (s *server) resetCircuit(c *gin.Context) {
	s.queue.ResetBreaker()
	c.Status(http.StatusNoContent)
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version})
}

// writeTaskError maps queue errors onto HTTP statuses. Validation
// failures are the caller's fault, unknown IDs are 404s, and a stopped
// queue refuses new work with 503.
func (s *server) writeTaskError(c *gin.Context, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, core.ErrUnknownTask):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrQueueStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.logger.Error("unhandled api error", logging.F("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// requestLogger logs one line per request with method, path, status and
// latency.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			logging.F("method", c.Request.Method),
			logging.F("path", c.Request.URL.Path),
			logging.F("status", c.Writer.Status()),
			logging.F("duration", time.Since(start)),
		)
	}
}
