package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/disbursement/internal/domain/event"
	"github.com/garyjia/disbursement/internal/tracing"
)

const (
	// HeaderUserID carries the acting user's id
	HeaderUserID = "X-User-ID"

	// HeaderRequestID carries the request id; generated when absent
	HeaderRequestID = "X-Request-ID"
)

type contextKey string

const (
	userIDKey    = contextKey("userID")
	requestIDKey = contextKey("requestID")
)

// requestIDMiddleware assigns a request id and makes it the correlation id of any events raised
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Header(HeaderRequestID, requestID)
		c.Set(string(requestIDKey), requestID)
		c.Request = c.Request.WithContext(event.WithCorrelationID(c.Request.Context(), requestID))

		c.Next()
	}
}

// tracingMiddleware opens a server span per request
func tracingMiddleware(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("http.request_id", c.GetString(string(requestIDKey))),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		tracing.SetStatusFromHTTPCode(span, status)
	}
}

// loggingMiddleware logs one line per request
func loggingMiddleware(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(string(requestIDKey)),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderUserID+", "+HeaderRequestID)
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, "+HeaderRequestID)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// actorMiddleware reads the acting user from the X-User-ID header
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   HeaderUserID + " header required",
			})
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "invalid " + HeaderUserID + " header",
			})
			return
		}

		c.Set(string(userIDKey), userID)
		c.Next()
	}
}

// actorID returns the user id set by actorMiddleware
func actorID(c *gin.Context) int64 {
	return c.GetInt64(string(userIDKey))
}
