package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"topicscanner/internal/domain"
	"topicscanner/internal/usecase"
)

// Server exposes the analysis pipeline over HTTP.
type Server struct {
	orchestrator *usecase.Orchestrator
	logger       *slog.Logger
	engine       *gin.Engine
}

// NewServer builds the router with all routes registered.
func NewServer(orchestrator *usecase.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		orchestrator: orchestrator,
		logger:       logger,
		engine:       engine,
	}

	engine.GET("/healthz", s.health)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/analyses", s.createAnalysis)
		v1.GET("/analyses", s.listAnalyses)
		v1.GET("/analyses/:id", s.getAnalysis)
		v1.DELETE("/analyses/:id", s.deleteAnalysis)
	}

	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type createRequest struct {
	Query          string `json:"query"`
	AutoDetect     bool   `json:"autoDetect"`
	Source         string `json:"source"`
	Category       string `json:"category"`
	MaxArticles    int    `json:"maxArticles"`
	NrTopics       int    `json:"nrTopics"`
	MinClusterSize int    `json:"minClusterSize"`
}

func (s *Server) createAnalysis(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	id, err := s.orchestrator.Submit(c.Request.Context(), usecase.SubmitRequest{
		Query:            req.Query,
		AutoDetect:       req.AutoDetect,
		Source:           req.Source,
		Category:         req.Category,
		MaxArticles:      req.MaxArticles,
		TargetTopicCount: req.NrTopics,
		MinClusterSize:   req.MinClusterSize,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		s.logger.Error("submit failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":     id,
		"status": string(domain.StatusPending),
	})
}

func (s *Server) getAnalysis(c *gin.Context) {
	analysis, err := s.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("analysis not found"))
			return
		}
		s.logger.Error("get failed", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	c.JSON(http.StatusOK, toAnalysisResponse(analysis, true))
}

func (s *Server) listAnalyses(c *gin.Context) {
	// Echo the clamped values so the response describes the page actually
	// served, not the raw query string.
	limit, offset := usecase.NormalizePage(intQuery(c, "limit", 20), intQuery(c, "offset", 0))

	items, total, err := s.orchestrator.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	summaries := make([]analysisResponse, 0, len(items))
	for i := range items {
		summaries = append(summaries, toAnalysisResponse(&items[i], false))
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  summaries,
	})
}

func (s *Server) deleteAnalysis(c *gin.Context) {
	if err := s.orchestrator.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("analysis not found"))
			return
		}
		s.logger.Error("delete failed", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
