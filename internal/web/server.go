package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spacesedan/feedbot/internal/clients"
	"github.com/spacesedan/feedbot/internal/jobs"
	"github.com/spacesedan/feedbot/internal/models"
	"github.com/spacesedan/feedbot/internal/poller"
)

//go:embed templates/*.html
var templatesFS embed.FS

// JobController is the single submission slot shared by every page. The
// server holds exactly one, so there is one active brand per process.
type JobController interface {
	Submit(ctx context.Context, brand string) error
	Job() models.Job
}

type ResultsBackend interface {
	poller.Fetcher
	RelayResults(ctx context.Context, brand, limit string) (*clients.RelayResponse, error)
}

type Options struct {
	PollInterval time.Duration
	ResultsLimit int
	// BackendHealthy holds the last health probe; nil reports "unknown".
	BackendHealthy *atomic.Bool
	GinMode        string
}

type Server struct {
	jobs    JobController
	backend ResultsBackend
	opts    Options
	router  *gin.Engine
}

type analyzeBody struct {
	Brand string `json:"brand" form:"brand"`
}

func NewServer(jobController JobController, backend ResultsBackend, opts Options) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}

	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}

	s := &Server{
		jobs:    jobController,
		backend: backend,
		opts:    opts,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.handleIndex)
	router.GET("/analyze", s.handleAnalyzePage)
	router.POST("/analyze", s.handleAnalyzeForm)
	router.GET("/insights", s.handleInsightsPage)
	router.GET("/ws/insights", s.handleLiveInsights)

	api := router.Group("/api")
	api.POST("/analyze", s.handleAnalyzeAPI)
	api.GET("/job", s.handleJob)
	api.GET("/results", s.handleResults)

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router = router
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"Job": s.jobs.Job()})
}

type analyzePage struct {
	Job     models.Job
	Message string
	Refresh bool
}

func (s *Server) renderAnalyze(c *gin.Context, status int, message string) {
	job := s.jobs.Job()
	c.HTML(status, "analyze.html", analyzePage{
		Job:     job,
		Message: message,
		Refresh: job.Status == models.JobSubmitting,
	})
}

func (s *Server) handleAnalyzePage(c *gin.Context) {
	s.renderAnalyze(c, http.StatusOK, "")
}

func (s *Server) handleAnalyzeForm(c *gin.Context) {
	var body analyzeBody
	_ = c.ShouldBind(&body)

	if strings.TrimSpace(body.Brand) == "" {
		s.renderAnalyze(c, http.StatusBadRequest, "Enter a brand name to analyze.")
		return
	}

	if err := s.jobs.Submit(c.Request.Context(), body.Brand); err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			s.renderAnalyze(c, http.StatusConflict, "An analysis is already being submitted. Try again in a moment.")
			return
		}
		s.renderAnalyze(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Redirect(http.StatusSeeOther, "/analyze")
}

func (s *Server) handleAnalyzeAPI(c *gin.Context) {
	var body analyzeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(body.Brand) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "brand is required"})
		return
	}

	if err := s.jobs.Submit(c.Request.Context(), body.Brand); err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "job": s.jobs.Job()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, s.jobs.Job())
}

func (s *Server) handleJob(c *gin.Context) {
	c.JSON(http.StatusOK, s.jobs.Job())
}

// handleResults relays the backend results endpoint without interpreting it.
func (s *Server) handleResults(c *gin.Context) {
	brand := c.Query("brand")
	limit := c.DefaultQuery("limit", clients.DEFAULT_RESULTS_LIMIT)

	relay, err := s.backend.RelayResults(c.Request.Context(), brand, limit)
	if err != nil {
		slog.Warn("[Web] Results relay failed",
			slog.String("brand", brand),
			slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	contentType := relay.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	if relay.Cached {
		c.Header("X-Cache", "HIT")
	}
	c.Data(relay.StatusCode, contentType, relay.Body)
}

func (s *Server) handleInsightsPage(c *gin.Context) {
	brand := strings.TrimSpace(c.Query("brand"))
	if brand == "" {
		c.String(http.StatusBadRequest, "brand is required")
		return
	}

	interval := s.opts.PollInterval
	if interval <= 0 {
		interval = poller.DefaultInterval
	}
	c.HTML(http.StatusOK, "insights.html", gin.H{
		"Brand":    brand,
		"Interval": interval.String(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	backend := "unknown"
	if s.opts.BackendHealthy != nil {
		backend = "unhealthy"
		if s.opts.BackendHealthy.Load() {
			backend = "healthy"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": backend,
		"job":     s.jobs.Job().Status,
	})
}
