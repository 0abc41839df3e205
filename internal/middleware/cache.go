package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/store-rating/internal/config"
	"github.com/iliyamo/store-rating/internal/logger"
)

const cacheStatusHeader = "X-Cache"

// cachedResponse is the value stored in Redis for one cache entry.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body"`
}

// bodyRecorder tees the response into a buffer of at most limit bytes
// (unbounded when limit <= 0) while it is written to the client.
type bodyRecorder struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	written   int64
	limit     int64
	truncated bool
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	keep := b
	if r.limit > 0 {
		room := r.limit - r.written
		if room < 0 {
			room = 0
		}
		if int64(len(keep)) > room {
			keep = keep[:room]
			r.truncated = true
		}
	}
	r.buf.Write(keep)
	r.written += int64(len(b))
	return r.ResponseWriter.Write(b)
}

// CacheStore is the key/value backend of ResponseCache.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

type redisStore struct{ rdb *redis.Client }

func (s redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.rdb.Get(ctx, key).Bytes()
}

func (s redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s redisStore) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Unlink(ctx, keys...).Err()
}

// routePrefix is the part of a cache key shared by every entry of route.
func routePrefix(cfg config.CacheConfig, route string) string {
	return cfg.Prefix + ":" + strconv.FormatUint(xxhash.Sum64String(route), 16) + ":"
}

// cacheKeyFrom hashes the request attributes selected by cfg.KeyStrategy
// under the prefix of the matched route.  Strategies naming "user" keep
// entries private to the caller.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var src []string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		src = nil
	case "method_route":
		src = []string{r.Method}
	case "method_route_query":
		src = []string{r.Method, r.URL.RawQuery}
	case "user_route_query":
		src = []string{userID(c), r.URL.RawQuery}
	default:
		src = []string{r.URL.RawQuery}
	}
	sum := xxhash.Sum64String(strings.Join(src, "\x00"))
	return routePrefix(cfg, c.Path()) + strconv.FormatUint(sum, 16)
}

// ResponseCache stores whole 200 responses.  A nil *ResponseCache is valid
// and caches nothing.
type ResponseCache struct {
	store CacheStore
	cfg   config.CacheConfig
}

func NewResponseCache(cfg config.CacheConfig, store CacheStore) *ResponseCache {
	return &ResponseCache{store: store, cfg: cfg}
}

// NewRedisCache returns a Redis backed ResponseCache, or nil when caching is
// disabled or rdb is nil.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return NewResponseCache(cfg, redisStore{rdb: rdb})
}

func (rc *ResponseCache) load(ctx context.Context, key string) (*cachedResponse, bool) {
	raw, err := rc.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var entry cachedResponse
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Status == 0 {
		return nil, false
	}
	return &entry, true
}

func (rc *ResponseCache) save(ctx context.Context, key string, entry cachedResponse) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = rc.store.Set(ctx, key, raw, rc.cfg.TTL)
}

// Invalidate drops every cached entry of the given routes.
func (rc *ResponseCache) Invalidate(ctx context.Context, routes ...string) error {
	if rc == nil {
		return nil
	}
	for _, route := range routes {
		if err := rc.store.DeletePrefix(ctx, routePrefix(rc.cfg, route)); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateOnWrite drops the entries of routes after every successful
// request that is not a GET, HEAD or OPTIONS.
func (rc *ResponseCache) InvalidateOnWrite(log *logger.Logger, routes ...string) echo.MiddlewareFunc {
	if rc == nil {
		return passThrough
	}
	if log == nil {
		log = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return nil
			}
			if c.Response().Status >= http.StatusBadRequest {
				return nil
			}
			ctx := context.WithoutCancel(c.Request().Context())
			if err := rc.Invalidate(ctx, routes...); err != nil {
				log.Warn(ctx, "cache: invalidation failed", err)
			}
			return nil
		}
	}
}

// Middleware serves hits from the store and records misses.
func (rc *ResponseCache) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	if rc == nil {
		return next
	}
	return func(c echo.Context) error {
		if !rc.cfg.Caches(c.Request().Method) {
			return next(c)
		}
		ctx := c.Request().Context()
		key := cacheKeyFrom(rc.cfg, c)
		res := c.Response()

		if entry, ok := rc.load(ctx, key); ok {
			for name, vals := range entry.Header {
				if strings.EqualFold(name, echo.HeaderContentLength) {
					continue
				}
				res.Header()[name] = append([]string(nil), vals...)
			}
			res.Header().Set(cacheStatusHeader, "HIT")
			res.WriteHeader(entry.Status)
			_, err := res.Write(entry.Body)
			return err
		}

		rec := &bodyRecorder{ResponseWriter: res.Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
		res.Writer = rec
		res.Header().Set(cacheStatusHeader, "MISS")
		if err := next(c); err != nil {
			return err
		}
		if rec.status != http.StatusOK || rec.truncated {
			return nil
		}
		hdr := res.Header().Clone()
		hdr.Del(cacheStatusHeader)
		rc.save(context.WithoutCancel(ctx), key, cachedResponse{Status: rec.status, Header: hdr, Body: rec.buf.Bytes()})
		return nil
	}
}
