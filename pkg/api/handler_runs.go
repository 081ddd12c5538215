package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/negentropy-ai/engine/pkg/knowledge"
	"github.com/negentropy-ai/engine/pkg/models"
)

// dashboardHandler handles GET /knowledge/dashboard.
func (s *Server) dashboardHandler(c *gin.Context) {
	summary, err := s.runs.Dashboard(c.Request.Context(), appName(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// listPipelineRunsHandler handles GET /knowledge/pipelines.
func (s *Server) listPipelineRunsHandler(c *gin.Context) {
	if runID := c.Query("run_id"); runID != "" {
		run, err := s.runs.GetPipelineRun(c.Request.Context(), appName(c), runID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
		return
	}
	runs, err := s.runs.ListPipelineRuns(c.Request.Context(), appName(c), queryInt(c, "limit", 50))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// upsertPipelineRunHandler handles POST /knowledge/pipelines.
func (s *Server) upsertPipelineRunHandler(c *gin.Context) {
	s.upsertRun(c, s.runs.UpsertPipelineRun)
}

// listGraphRunsHandler handles GET /knowledge/graph.
func (s *Server) listGraphRunsHandler(c *gin.Context) {
	if runID := c.Query("run_id"); runID != "" {
		run, err := s.runs.GetGraphRun(c.Request.Context(), appName(c), runID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
		return
	}
	runs, err := s.runs.ListGraphRuns(c.Request.Context(), appName(c), queryInt(c, "limit", 50))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// upsertGraphRunHandler handles POST /knowledge/graph.
func (s *Server) upsertGraphRunHandler(c *gin.Context) {
	s.upsertRun(c, s.runs.UpsertGraphRun)
}

func validRunStatus(v string) bool {
	switch models.RunStatus(v) {
	case models.RunStatusPending, models.RunStatusRunning, models.RunStatusCompleted, models.RunStatusFailed:
		return true
	default:
		return false
	}
}

func (s *Server) upsertRun(c *gin.Context, upsert func(ctx context.Context, req knowledge.RunUpsertRequest) (*models.PipelineRun, error)) {
	var req upsertRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}
	if !validRunStatus(req.Status) {
		badRequest(c, "status", "must be one of pending, running, completed, failed")
		return
	}

	run, err := upsert(c.Request.Context(), knowledge.RunUpsertRequest{
		AppName:         appName(c),
		RunID:           req.RunID,
		Status:          models.RunStatus(req.Status),
		Payload:         req.Payload,
		IdempotencyKey:  req.IdempotencyKey,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
