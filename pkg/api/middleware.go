package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/tracing"
)

// requestContextMiddleware attaches the request's identity to the context so
// every span created while handling it carries session.id and user.id
//, and wraps the request in a server span when a tracer is wired.
func (s *Server) requestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := tracing.RequestContext{
			SessionID: c.GetHeader("X-Session-ID"),
			UserID:    c.GetHeader("X-User-ID"),
			RequestID: c.GetHeader("X-Request-ID"),
		}
		if rc.RequestID == "" {
			rc.RequestID = uuid.New().String()
		}
		ctx := tracing.WithRequestContext(c.Request.Context(), rc)

		if s.tracer != nil {
			spanCtx, span := s.tracer.Start(ctx, c.Request.Method+" "+c.FullPath(), models.SpanKindServer)
			span.SetAttribute("http.method", c.Request.Method)
			span.SetAttribute("http.route", c.FullPath())
			span.SetAttribute("request.id", rc.RequestID)
			defer func() {
				span.SetAttribute("http.status_code", c.Writer.Status())
				span.End(nil)
			}()
			ctx = spanCtx
		}

		c.Header("X-Request-ID", rc.RequestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
