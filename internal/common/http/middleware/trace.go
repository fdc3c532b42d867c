package middleware

import (
	"context"
	"strings"

	"codejudge/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"

	traceIDContextKey   = "trace_id"
	requestIDContextKey = "request_id"
)

// TraceContextMiddleware ensures trace and request ids are present in the
// gin context, the request context and the response headers. The trace id is
// propagated to compile servers so one judge attempt can be followed across
// processes.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(traceIDHeader))
		if traceID == "" {
			traceID = uuid.NewString()
		}
		requestID := uuid.NewString()

		c.Set(traceIDContextKey, traceID)
		c.Set(requestIDContextKey, requestID)

		ctx := context.WithValue(c.Request.Context(), contextkey.TraceID, traceID)
		ctx = context.WithValue(ctx, contextkey.RequestID, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(traceIDHeader, traceID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// TraceIDHeader is the header carrying the trace id between services.
func TraceIDHeader() string {
	return traceIDHeader
}
