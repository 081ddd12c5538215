package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/negentropy-ai/engine/pkg/knowledge"
)

// ingestTextHandler handles POST /knowledge/base/:id/ingest.
func (s *Server) ingestTextHandler(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}
	if req.Text == nil || *req.Text == "" {
		badRequest(c, "text", "text is required")
		return
	}
	s.runPipeline(c, knowledge.IngestRequest{
		AppName: appName(c), CorpusID: c.Param("id"), RunID: req.RunID,
		IdempotencyKey: req.IdempotencyKey, Operation: knowledge.OpIngestText,
		Text: req.Text, SourceURI: req.SourceURI,
		ChunkConfig: req.chunkConfig(), Metadata: req.Metadata,
	})
}

// ingestURLHandler handles POST /knowledge/base/:id/ingest_url.
func (s *Server) ingestURLHandler(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}
	if req.URL == nil || *req.URL == "" {
		badRequest(c, "url", "url is required")
		return
	}
	s.runPipeline(c, knowledge.IngestRequest{
		AppName: appName(c), CorpusID: c.Param("id"), RunID: req.RunID,
		IdempotencyKey: req.IdempotencyKey, Operation: knowledge.OpIngestURL,
		URL: req.URL, ChunkConfig: req.chunkConfig(), Metadata: req.Metadata,
	})
}

// replaceSourceHandler handles POST /knowledge/base/:id/replace_source:
// delete the prior chunks for source_uri, then re-ingest.
func (s *Server) replaceSourceHandler(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}
	if req.SourceURI == nil || *req.SourceURI == "" {
		badRequest(c, "source_uri", "source_uri is required")
		return
	}
	if (req.Text == nil || *req.Text == "") && (req.URL == nil || *req.URL == "") {
		badRequest(c, "text", "text or url is required")
		return
	}
	s.runPipeline(c, knowledge.IngestRequest{
		AppName: appName(c), CorpusID: c.Param("id"), RunID: req.RunID,
		IdempotencyKey: req.IdempotencyKey, Operation: knowledge.OpReplaceSource,
		Text: req.Text, URL: req.URL, SourceURI: req.SourceURI,
		ChunkConfig: req.chunkConfig(), Metadata: req.Metadata,
	})
}

// syncSourceHandler handles POST /knowledge/base/:id/sync_source: refetch the
// URL and replace its chunks.
func (s *Server) syncSourceHandler(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid request body: "+err.Error())
		return
	}
	if req.URL == nil || *req.URL == "" {
		badRequest(c, "url", "url is required")
		return
	}
	s.runPipeline(c, knowledge.IngestRequest{
		AppName: appName(c), CorpusID: c.Param("id"), RunID: req.RunID,
		IdempotencyKey: req.IdempotencyKey, Operation: knowledge.OpSyncSource,
		URL: req.URL, SourceURI: req.URL,
		ChunkConfig: req.chunkConfig(), Metadata: req.Metadata,
	})
}

func (s *Server) runPipeline(c *gin.Context, req knowledge.IngestRequest) {
	run, err := s.pipeline.Run(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ingestFileHandler handles POST /knowledge/base/:id/ingest_file (multipart,
// ≤50 MiB). The content hash dedups retries and double-submits: a repeated
// upload returns the prior document with is_new=false and writes nothing.
func (s *Server) ingestFileHandler(c *gin.Context) {
	corpusID := c.Param("id")
	app := appName(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file", "multipart file field is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		badRequest(c, "file", "file exceeds the 50 MiB upload limit")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "file", "could not read uploaded file")
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		badRequest(c, "file", "could not read uploaded file")
		return
	}
	if len(raw) > maxUploadBytes {
		badRequest(c, "file", "file exceeds the 50 MiB upload limit")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	var contentTypePtr *string
	if contentType != "" {
		contentTypePtr = &contentType
	}

	objectKey := knowledge.ObjectKey(app, corpusID, fileHeader.Filename)
	result, err := s.repository.RecordUpload(c.Request.Context(), app, corpusID, raw, fileHeader.Filename, contentTypePtr, objectKey)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !result.IsNew {
		c.JSON(http.StatusOK, uploadResponse{Document: result.Document, IsNew: false})
		return
	}

	// New content: write the blob, then ingest its text.
	if s.artifacts != nil {
		if _, err := s.artifacts.Put(c.Request.Context(), app, objectKey, raw, contentType); err != nil {
			s.respondError(c, err)
			return
		}
	}

	text, err := knowledge.ExtractText(raw, contentType)
	if err != nil {
		s.respondError(c, err)
		return
	}

	sourceURI := result.Document.GCSURI
	run, err := s.pipeline.Run(c.Request.Context(), knowledge.IngestRequest{
		AppName: app, CorpusID: corpusID, Operation: knowledge.OpIngestText,
		Text: &text, SourceURI: &sourceURI,
		ChunkConfig: ingestRequest{
			ChunkSize: queryInt(c, "chunk_size", 0),
			Overlap:   queryInt(c, "overlap", 0),
		}.chunkConfig(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, uploadResponse{Document: result.Document, IsNew: true, Run: run})
}
