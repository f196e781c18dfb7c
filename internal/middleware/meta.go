package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ocms-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "responseMeta"
	requestStartKey = "requestStart"
)

// WithResponseMeta opens the envelope meta block for the request.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit flags whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	meta(c)["cache_hit"] = hit
}

// Meta returns the meta block stamped with the request id and the time spent
// so far. It is read once, right before the body is written.
func Meta(c *gin.Context) map[string]interface{} {
	m := meta(c)
	if id := requestid.Value(c); id != "" {
		m["request_id"] = id
	}
	if start, ok := c.Get(requestStartKey); ok {
		if t, ok := start.(time.Time); ok {
			m["processing_time_ms"] = time.Since(t).Milliseconds()
		}
	}
	return m
}

func meta(c *gin.Context) map[string]interface{} {
	if raw, ok := c.Get(responseMetaKey); ok {
		if m, ok := raw.(map[string]interface{}); ok {
			return m
		}
	}
	m := map[string]interface{}{}
	c.Set(responseMetaKey, m)
	return m
}
