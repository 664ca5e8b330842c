package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey  = "response_meta"
	responseStartKey = "response_started_at"
)

// ResponseMeta allocates the per-request meta map that handlers merge into the envelope.
func ResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetMeta records a meta entry for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	Meta(c)[key] = value
}

// Meta returns the request's meta map, refreshing processing_time_ms when ResponseMeta ran.
func Meta(c *gin.Context) map[string]interface{} {
	var meta map[string]interface{}
	if value, exists := c.Get(responseMetaKey); exists {
		meta, _ = value.(map[string]interface{})
	}
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(responseMetaKey, meta)
	}
	if started, ok := c.Get(responseStartKey); ok {
		if t, ok := started.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(t).Milliseconds()
		}
	}
	return meta
}
