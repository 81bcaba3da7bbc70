package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
)

// corsMiddleware answers preflight requests and stamps CORS headers. An
// empty origin list allows every origin; otherwise only listed origins are
// echoed back.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

const jsonBodyLimit = 1 << 20

// uploadBodyFactor bounds a whole upload request relative to the per-file
// limit so an album of maximum-size tracks still fits in one request.
const uploadBodyFactor = 20

// maxBodySize rejects oversized request bodies by route class before the
// handlers read them. Per-file limits stay with the upload handlers; this
// is the outer bound that keeps a runaway request off the temp disk.
func maxBodySize(uploadLimit int64) gin.HandlerFunc {
	if uploadLimit < jsonBodyLimit {
		uploadLimit = jsonBodyLimit
	}
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		limit := int64(jsonBodyLimit)
		if strings.Contains(c.Request.URL.Path, "/upload/") {
			limit = uploadLimit
		}
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// requestLogger records one line per handled request. Server errors log at
// warn so they surface in the daemon log without raising the level.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Duration("elapsed", time.Since(start)),
			logging.String("client", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn("request failed", attrs...)
			return
		}
		s.logger.Debug("request handled", attrs...)
	}
}
