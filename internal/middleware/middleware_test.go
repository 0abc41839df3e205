package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/config"
	"github.com/iliyamo/store-rating/internal/logger"
	"github.com/iliyamo/store-rating/internal/metrics"
	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/utils"
)

const secret = "mw-secret"

func newCtx(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func bearer(t *testing.T, role model.Role, now time.Time) (string, model.User) {
	t.Helper()
	u := model.User{ID: uuid.New(), Name: "Bob", Email: "bob@x.com", Role: role}
	tok, err := utils.NewAccessToken(secret, u, time.Hour, now)
	require.NoError(t, err)
	return "Bearer " + tok.Token, u
}

func TestJWTAuthRejects(t *testing.T) {
	expired, _ := bearer(t, model.RoleUser, time.Now().Add(-2*time.Hour))
	cases := map[string]struct {
		header string
		msg    string
	}{
		"missing":   {"", "missing bearer token"},
		"scheme":    {"Basic abc", "missing bearer token"},
		"empty":     {"Bearer ", "missing bearer token"},
		"malformed": {"Bearer not.a.jwt", "invalid token"},
		"expired":   {expired, "token expired"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			c, _ := newCtx(req)

			err := JWTAuth(secret, nil)(okHandler)(c)
			typed := apperr.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, apperr.CodeUnauthorized, typed.Code())
			assert.Equal(t, tc.msg, typed.Message())
		})
	}
}

func TestJWTAuthSetsIdentity(t *testing.T) {
	header, u := bearer(t, model.RoleOwner, time.Now())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, header)
	c, rec := newCtx(req)

	var got model.Identity
	err := JWTAuth(secret, logger.Nop())(func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		got = id
		return okHandler(c)
	})(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Identity{ID: u.ID, Role: model.RoleOwner, Email: "bob@x.com", Name: "Bob"}, got)
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(model.RoleAdmin, model.RoleOwner)

	c, _ := newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(mw(okHandler)(c)))

	c, _ = newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	SetIdentity(c, model.Identity{ID: uuid.New(), Role: model.RoleUser})
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(mw(okHandler)(c)))

	c, rec := newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	SetIdentity(c, model.Identity{ID: uuid.New(), Role: model.RoleOwner})
	require.NoError(t, mw(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c, _ := newCtx(req)
	c.SetPath("/auth/login")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:10.0.0.1:route:POST /auth/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))

	id := uuid.New()
	SetIdentity(c, model.Identity{ID: id, Role: model.RoleUser})
	assert.Equal(t, "rl:user:"+id.String(), buildRateKey(cfg, c))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 2, retryAfterSeconds(1500*time.Millisecond))
	assert.Equal(t, 1, retryAfterSeconds(time.Second))
	assert.Equal(t, 0, retryAfterSeconds(-10*time.Millisecond))
}

func TestBuildRateKeyDefaultStrategy(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.2")
	c, _ := newCtx(req)
	c.SetPath("/auth/register")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "unknown"}
	assert.Equal(t, "rl:ip:10.0.0.2:user:anon:route:POST /auth/register", buildRateKey(cfg, c))
}

func TestMiddlewaresPassThroughWithoutRedis(t *testing.T) {
	for name, mw := range map[string]echo.MiddlewareFunc{
		"ratelimit": NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		"cache":     NewRedisCache(config.CacheConfig{Enabled: true, Methods: []string{"GET"}}, nil).Middleware,
		"purge":     NewRedisCache(config.CacheConfig{Enabled: true}, nil).InvalidateOnWrite(nil, "/"),
	} {
		t.Run(name, func(t *testing.T) {
			c, rec := newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, mw(okHandler)(c))
			assert.Equal(t, "ok", rec.Body.String())
		})
	}
}

func TestCacheKeyScoping(t *testing.T) {
	mk := func(query string, who *model.Identity) echo.Context {
		c, _ := newCtx(httptest.NewRequest(http.MethodGet, "/admin/dashboard"+query, nil))
		c.SetPath("/admin/dashboard")
		if who != nil {
			SetIdentity(c, *who)
		}
		return c
	}
	a := model.Identity{ID: uuid.New()}
	b := model.Identity{ID: uuid.New()}

	shared := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	assert.Equal(t, cacheKeyFrom(shared, mk("", &a)), cacheKeyFrom(shared, mk("", &b)))
	assert.NotEqual(t, cacheKeyFrom(shared, mk("?x=1", &a)), cacheKeyFrom(shared, mk("", &a)))

	perUser := config.CacheConfig{Prefix: "cache", KeyStrategy: "user_route_query"}
	assert.NotEqual(t, cacheKeyFrom(perUser, mk("", &a)), cacheKeyFrom(perUser, mk("", &b)))
	assert.Contains(t, cacheKeyFrom(perUser, mk("", &a)), "cache:")
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// dashboardServer mimics the admin routes: a cached count and writes that
// change it.
func dashboardServer(rc *ResponseCache) (*echo.Echo, *atomic.Int64) {
	var users atomic.Int64
	users.Store(1)

	e := echo.New()
	g := e.Group("/admin", rc.InvalidateOnWrite(nil, "/admin/dashboard"))
	g.GET("/dashboard", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]int64{"totalUsers": users.Load()})
	}, rc.Middleware)
	g.POST("/users", func(c echo.Context) error {
		users.Add(1)
		return c.JSON(http.StatusCreated, map[string]string{"message": "User created successfully"})
	})
	g.DELETE("/users/:id", func(c echo.Context) error {
		return apperr.New(apperr.CodeNotFound, "user not found")
	})
	return e, &users
}

func call(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestDashboardCacheFreshAfterWrite(t *testing.T) {
	store := newMemStore()
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: []string{"GET"}, Prefix: "cache", TTL: time.Minute}.Normalize(), store)
	e, _ := dashboardServer(rc)

	first := call(e, http.MethodGet, "/admin/dashboard")
	assert.Equal(t, "MISS", first.Header().Get(cacheStatusHeader))
	assert.JSONEq(t, `{"totalUsers":1}`, first.Body.String())

	again := call(e, http.MethodGet, "/admin/dashboard")
	assert.Equal(t, "HIT", again.Header().Get(cacheStatusHeader))
	assert.JSONEq(t, `{"totalUsers":1}`, again.Body.String())

	require.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/admin/users").Code)
	assert.Zero(t, store.len())

	after := call(e, http.MethodGet, "/admin/dashboard")
	assert.Equal(t, "MISS", after.Header().Get(cacheStatusHeader))
	assert.JSONEq(t, `{"totalUsers":2}`, after.Body.String())
}

func TestFailedWriteKeepsCache(t *testing.T) {
	store := newMemStore()
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: []string{"GET"}, Prefix: "cache", TTL: time.Minute}.Normalize(), store)
	e, _ := dashboardServer(rc)

	call(e, http.MethodGet, "/admin/dashboard")
	require.Equal(t, 1, store.len())

	call(e, http.MethodDelete, "/admin/users/"+uuid.NewString())
	assert.Equal(t, 1, store.len())
}

func TestInvalidateOnlyTouchesNamedRoute(t *testing.T) {
	store := newMemStore()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	rc := NewResponseCache(cfg, store)
	ctx := context.Background()

	mk := func(path string) string {
		c, _ := newCtx(httptest.NewRequest(http.MethodGet, path+"?page=2", nil))
		c.SetPath(path)
		return cacheKeyFrom(cfg, c)
	}
	require.NoError(t, store.Set(ctx, mk("/admin/dashboard"), []byte("{}"), 0))
	require.NoError(t, store.Set(ctx, mk("/admin/stores"), []byte("{}"), 0))

	require.NoError(t, rc.Invalidate(ctx, "/admin/dashboard"))
	_, err := store.Get(ctx, mk("/admin/dashboard"))
	assert.ErrorIs(t, err, redis.Nil)
	_, err = store.Get(ctx, mk("/admin/stores"))
	assert.NoError(t, err)

	var nilCache *ResponseCache
	assert.NoError(t, nilCache.Invalidate(ctx, "/admin/dashboard"))
}

func TestBodyRecorderLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	br := &bodyRecorder{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, err := br.Write([]byte("abc"))
	require.NoError(t, err)
	assert.False(t, br.truncated)
	_, err = br.Write([]byte("def"))
	require.NoError(t, err)

	assert.True(t, br.truncated)
	assert.Equal(t, "abcd", br.buf.String())
	assert.Equal(t, "abcdef", rec.Body.String())
	assert.Equal(t, int64(6), br.written)
}

func TestBodyRecorderUnbounded(t *testing.T) {
	rec := httptest.NewRecorder()
	br := &bodyRecorder{ResponseWriter: rec, status: http.StatusOK}
	br.WriteHeader(http.StatusCreated)
	_, err := br.Write([]byte(`{"totalUsers":3}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, br.status)
	assert.Equal(t, `{"totalUsers":3}`, br.buf.String())
	assert.False(t, br.truncated)
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Service: "test", Output: &buf})
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(RequestID(log), RequestLogger(log, m))
	e.GET("/missing", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "nope") })

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))
	out := buf.String()
	assert.Contains(t, out, `"message":"request.complete"`)
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"route":"/missing"`)

	n, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, n)
}

func TestRequestIDGenerated(t *testing.T) {
	c, rec := newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, RequestID(nil)(okHandler)(c))
	_, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID))
	assert.NoError(t, err)
}
