package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/negentropy-ai/engine/pkg/models"
)

// createSessionHandler handles POST /sessions.
func (s *Server) createSessionHandler(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}
	thread, err := s.sessions.CreateSession(c.Request.Context(), appName(c), req.UserID, req.State)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

// listSessionsHandler handles GET /sessions.
func (s *Server) listSessionsHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		badRequest(c, "user_id", "user_id is required")
		return
	}
	threads, err := s.sessions.ListSessions(c.Request.Context(), models.ThreadFilters{
		AppName: appName(c),
		UserID:  userID,
		Limit:   queryInt(c, "limit", 50),
		Offset:  queryInt(c, "offset", 0),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": threads})
}

// getSessionHandler handles GET /sessions/:id, with an optional recent-N
// event filter.
func (s *Server) getSessionHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		badRequest(c, "user_id", "user_id is required")
		return
	}
	thread, events, err := s.sessions.GetSession(c.Request.Context(), appName(c), userID, c.Param("id"), queryInt(c, "recent_n", 0))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Thread: thread, Events: events})
}

// deleteSessionHandler handles DELETE /sessions/:id. Events cascade.
func (s *Server) deleteSessionHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		badRequest(c, "user_id", "user_id is required")
		return
	}
	if err := s.sessions.DeleteSession(c.Request.Context(), appName(c), userID, c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func validAuthor(v string) bool {
	switch models.Author(v) {
	case models.AuthorUser, models.AuthorAgent, models.AuthorTool:
		return true
	default:
		return false
	}
}

// appendEventHandler handles POST /sessions/:id/events: the append
// protocol, including state-delta routing.
func (s *Server) appendEventHandler(c *gin.Context) {
	var req appendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}
	if !validAuthor(req.Author) {
		badRequest(c, "author", "must be one of user, agent, tool")
		return
	}

	event, err := s.sessions.AppendEvent(c.Request.Context(), appName(c), req.UserID, c.Param("id"), models.AppendEventRequest{
		InvocationID: req.InvocationID,
		Author:       models.Author(req.Author),
		EventType:    req.EventType,
		Content:      req.Content,
		StateDelta:   req.StateDelta,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// updateTitleHandler handles PATCH /sessions/:id/title.
func (s *Server) updateTitleHandler(c *gin.Context) {
	var req updateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}
	if err := s.sessions.UpdateSessionTitle(c.Request.Context(), c.Param("id"), req.Title); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
