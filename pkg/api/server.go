package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/negentropy-ai/engine/pkg/artifact"
	"github.com/negentropy-ai/engine/pkg/knowledge"
	"github.com/negentropy-ai/engine/pkg/session"
	"github.com/negentropy-ai/engine/pkg/tracing"
)

// maxUploadBytes caps multipart document uploads.
const maxUploadBytes = 50 << 20

// Server holds the service-layer dependencies the HTTP handlers call into.
type Server struct {
	sessions   session.Store
	repository *knowledge.Repository
	pipeline   *knowledge.Pipeline
	engine     *knowledge.Engine
	runs       *knowledge.Runs
	artifacts  artifact.Store
	tracer     *tracing.Tracer
	log        *slog.Logger
}

// ServerDeps bundles the constructor arguments; optional fields may be nil
// and their routes degrade to 404/500 accordingly.
type ServerDeps struct {
	Sessions   session.Store
	Repository *knowledge.Repository
	Pipeline   *knowledge.Pipeline
	Engine     *knowledge.Engine
	Runs       *knowledge.Runs
	Artifacts  artifact.Store
	Tracer     *tracing.Tracer
	Log        *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		sessions:   deps.Sessions,
		repository: deps.Repository,
		pipeline:   deps.Pipeline,
		engine:     deps.Engine,
		runs:       deps.Runs,
		artifacts:  deps.Artifacts,
		tracer:     deps.Tracer,
		log:        deps.Log,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestContextMiddleware())
	r.MaxMultipartMemory = maxUploadBytes

	kb := r.Group("/knowledge")
	{
		kb.POST("/base", s.createCorpusHandler)
		kb.GET("/base", s.listCorporaHandler)
		kb.PATCH("/base/:id", s.updateCorpusHandler)
		kb.DELETE("/base/:id", s.deleteCorpusHandler)

		kb.POST("/base/:id/ingest", s.ingestTextHandler)
		kb.POST("/base/:id/ingest_url", s.ingestURLHandler)
		kb.POST("/base/:id/ingest_file", s.ingestFileHandler)
		kb.POST("/base/:id/replace_source", s.replaceSourceHandler)
		kb.POST("/base/:id/sync_source", s.syncSourceHandler)

		kb.POST("/base/:id/search", s.searchHandler)
		kb.GET("/base/:id/knowledge", s.listChunksHandler)

		kb.GET("/dashboard", s.dashboardHandler)
		kb.GET("/pipelines", s.listPipelineRunsHandler)
		kb.POST("/pipelines", s.upsertPipelineRunHandler)
		kb.GET("/graph", s.listGraphRunsHandler)
		kb.POST("/graph", s.upsertGraphRunHandler)
	}

	sess := r.Group("/sessions")
	{
		sess.POST("", s.createSessionHandler)
		sess.GET("", s.listSessionsHandler)
		sess.GET("/:id", s.getSessionHandler)
		sess.DELETE("/:id", s.deleteSessionHandler)
		sess.POST("/:id/events", s.appendEventHandler)
		sess.PATCH("/:id/title", s.updateTitleHandler)
	}

	return r
}

// appName resolves the tenant label for a request. Every row is scoped by
// it; the upstream auth collaborator sets the header.
func appName(c *gin.Context) string {
	if v := c.GetHeader("X-App-Name"); v != "" {
		return v
	}
	return "default"
}
