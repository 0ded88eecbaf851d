// Package middleware holds gin HTTP middleware for internal/httpapi:
// request ID propagation, request/response logging, and sensitive-field
// redaction before anything reaches the log line.
package middleware

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veridocs/trainforge/internal/logger"
)

const maxBodySize = 1024 * 10

const requestIDHeader = "X-Request-ID"

// loggerResponseBodyWriter mirrors writes into a buffer so the logger
// middleware can include the response body without consuming it from the
// real ResponseWriter.
type loggerResponseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r loggerResponseBodyWriter) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"password"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)"token"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)"access_token"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)"authorization"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)"api_key"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)"secret"\s*:\s*"[^"]*"`),
}

// sanitizeBody redacts common sensitive JSON fields before logging.
func sanitizeBody(body string) string {
	result := body
	for _, re := range sensitivePatterns {
		result = re.ReplaceAllStringFunc(result, func(m string) string {
			idx := strings.Index(m, ":")
			if idx < 0 {
				return m
			}
			return m[:idx+1] + `"***"`
		})
	}
	return strings.ReplaceAll(result, "\n", "\\n")
}

func readRequestBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	contentType := c.GetHeader("Content-Type")
	if !strings.Contains(contentType, "application/json") &&
		!strings.Contains(contentType, "application/x-www-form-urlencoded") &&
		!strings.Contains(contentType, "text/") {
		return "[non-text body skipped]"
	}

	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "[failed to read request body]"
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	logBodyBytes := bodyBytes
	truncated := ""
	if len(bodyBytes) > maxBodySize {
		logBodyBytes = bodyBytes[:maxBodySize]
		truncated = "... [truncated]"
	}
	return sanitizeBody(string(logBodyBytes) + truncated)
}

// RequestID assigns (or propagates) a request ID and attaches a
// request-scoped *logger.Logger to the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)

		// Reuse the job-scoped logger enrichment for requests too: a
		// request ID plays the same role as a job ID until a job exists.
		c.Request = c.Request.WithContext(logger.WithJobID(c.Request.Context(), requestID))
		c.Set(requestIDHeader, requestID)

		c.Next()
	}
}

// Logger logs each request's method, path, status, latency, and (bounded,
// redacted) request/response bodies.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		var requestBody string
		if c.Request.Method == "POST" || c.Request.Method == "PUT" || c.Request.Method == "PATCH" {
			requestBody = readRequestBody(c)
		}

		responseBody := &bytes.Buffer{}
		c.Writer = &loggerResponseBodyWriter{ResponseWriter: c.Writer, body: responseBody}

		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		responseBodyStr := ""
		if responseBody.Len() > 0 {
			contentType := c.Writer.Header().Get("Content-Type")
			if strings.Contains(contentType, "application/json") || strings.Contains(contentType, "text/") {
				b := responseBody.Bytes()
				truncated := ""
				if len(b) > maxBodySize {
					b = b[:maxBodySize]
					truncated = "... [truncated]"
				}
				responseBodyStr = sanitizeBody(string(b) + truncated)
			}
		}

		entry := logger.GetLogger(c.Request.Context()).WithFields(map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status_code": c.Writer.Status(),
			"size":        c.Writer.Size(),
			"latency":     latency.String(),
			"client_ip":   c.ClientIP(),
		})
		if requestBody != "" {
			entry = entry.WithField("request_body", requestBody)
		}
		if responseBodyStr != "" {
			entry = entry.WithField("response_body", responseBodyStr)
		}
		entry.Info("request handled")
	}
}
