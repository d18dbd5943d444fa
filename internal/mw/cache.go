package mw

import (
	"bytes"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache pairs a go-cache store with a flush generation, so a
// response computed before a flush is never stored after it.
type ResponseCache struct {
	store      *cache.Cache
	generation atomic.Uint64
}

// NewResponseCache wraps store.
func NewResponseCache(store *cache.Cache) *ResponseCache {
	return &ResponseCache{store: store}
}

// Flush drops every cached response and invalidates responses in flight.
func (rc *ResponseCache) Flush() {
	rc.generation.Add(1)
	rc.store.Flush()
}

// Cache is a middleware for in-memory caching of GET requests.
func (rc *ResponseCache) Cache(duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if resp, found := rc.store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		generation := rc.generation.Load()
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses
		if blw.Status() < 200 || blw.Status() >= 300 {
			return
		}
		// A write finished while this response was being built.
		if rc.generation.Load() != generation {
			return
		}
		response := cachedResponse{
			status: blw.Status(),
			// Make a copy of the header map.
			headers: blw.Header().Clone(),
			body:    blw.body.Bytes(),
		}
		rc.store.Set(key, response, duration)
	}
}

// Invalidate flushes the cache after every successful mutating request, so
// slot listings never outlive a change to the slots or their occupancy.
func (rc *ResponseCache) Invalidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if status := c.Writer.Status(); status >= 200 && status < 300 {
			rc.Flush()
		}
	}
}
