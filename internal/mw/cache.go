package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheStatusHeader reports HIT or MISS on cached routes.
const CacheStatusHeader = "X-Cache"

// entry is a stored response, replayed verbatim on a hit.
type entry struct {
	status int
	header http.Header
	body   []byte
}

func (e entry) replay(w gin.ResponseWriter) {
	dst := w.Header()
	for k, v := range e.header {
		dst[k] = v
	}
	dst.Set(CacheStatusHeader, "HIT")
	w.WriteHeader(e.status)
	w.Write(e.body)
}

// teeWriter copies everything the handler writes into buf.
type teeWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// cacheKey is the path plus the query in canonical order, so
// ?limit=5&spotId=a and ?spotId=a&limit=5 share an entry.
func cacheKey(r *http.Request) string {
	q := r.URL.Query().Encode()
	if q == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + q
}

// Cache keeps successful GET responses in store for ttl. A ttl of zero or
// less turns it into a pass-through.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ttl <= 0 || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := cacheKey(c.Request)
		if hit, ok := store.Get(key); ok {
			hit.(entry).replay(c.Writer)
			c.Abort()
			return
		}

		c.Writer.Header().Set(CacheStatusHeader, "MISS")
		tee := teeWriter{ResponseWriter: c.Writer, buf: new(bytes.Buffer)}
		c.Writer = tee
		c.Next()

		status := tee.Status()
		if status < 200 || status > 299 {
			return
		}
		header := tee.Header().Clone()
		header.Del(CacheStatusHeader)
		store.Set(key, entry{status: status, header: header, body: tee.buf.Bytes()}, ttl)
	}
}
