package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/negentropy-ai/engine/pkg/models"
)

// searchHandler handles POST /knowledge/base/:id/search: mode-dispatched
// retrieval plus optional rerank.
func (s *Server) searchHandler(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}
	if req.SemanticWeight != nil && (*req.SemanticWeight < 0 || *req.SemanticWeight > 1) {
		badRequest(c, "semantic_weight", "must be between 0 and 1")
		return
	}
	if req.KeywordWeight != nil && (*req.KeywordWeight < 0 || *req.KeywordWeight > 1) {
		badRequest(c, "keyword_weight", "must be between 0 and 1")
		return
	}

	search := models.SearchRequest{
		CorpusID:       c.Param("id"),
		Query:          req.Query,
		Mode:           models.SearchMode(req.Mode),
		Limit:          req.Limit,
		MetadataFilter: req.MetadataFilter,
		Rerank:         req.Rerank,
	}
	if req.SemanticWeight != nil {
		search.SemanticWeight = *req.SemanticWeight
	}
	if req.KeywordWeight != nil {
		search.KeywordWeight = *req.KeywordWeight
	}

	results, err := s.engine.Search(c.Request.Context(), search)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toSearchItems(results)})
}
