package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// createCorpusHandler handles POST /knowledge/base.
func (s *Server) createCorpusHandler(c *gin.Context) {
	var req createCorpusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}

	corpus, err := s.repository.CreateCorpus(c.Request.Context(), appName(c), req.Name, req.Description, req.Config)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, corpus)
}

// listCorporaHandler handles GET /knowledge/base.
func (s *Server) listCorporaHandler(c *gin.Context) {
	corpora, err := s.repository.ListCorpora(c.Request.Context(), appName(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": corpora})
}

// updateCorpusHandler handles PATCH /knowledge/base/:id.
func (s *Server) updateCorpusHandler(c *gin.Context) {
	var req updateCorpusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}

	corpus, err := s.repository.UpdateCorpus(c.Request.Context(), appName(c), c.Param("id"), req.Name, req.Description, req.Config)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, corpus)
}

// deleteCorpusHandler handles DELETE /knowledge/base/:id. Chunk rows cascade
// with the corpus.
func (s *Server) deleteCorpusHandler(c *gin.Context) {
	if err := s.repository.DeleteCorpus(c.Request.Context(), appName(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listChunksHandler handles GET /knowledge/base/:id/knowledge: paginated
// chunk listing, optionally filtered to one source_uri.
func (s *Server) listChunksHandler(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	var sourceURI *string
	if v := c.Query("source_uri"); v != "" {
		sourceURI = &v
	}

	chunks, err := s.repository.ListChunks(c.Request.Context(), c.Param("id"), sourceURI, limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": chunks, "limit": limit, "offset": offset})
}

func queryInt(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
