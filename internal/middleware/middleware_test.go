package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func whoami(c echo.Context) error {
	a, err := CurrentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, a)
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthSetsActor(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	tok := signToken(t, jwt.MapClaims{"sub": "17", "role": "customer", "exp": time.Now().Add(time.Hour).Unix()})
	rec := serve(e, http.MethodGet, "/me", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"UserID":17,"Role":"CUSTOMER"}`, rec.Body.String())
}

func TestJWTAuthNumericSubject(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	tok := signToken(t, jwt.MapClaims{"sub": 5, "role": "STAFF", "exp": time.Now().Add(time.Hour).Unix()})
	rec := serve(e, http.MethodGet, "/me", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"UserID":5`)
}

func TestJWTAuthRejects(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "garbage").Code)

	expired := signToken(t, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Hour).Unix()})
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", expired).Code)

	noExp := signToken(t, jwt.MapClaims{"sub": "1"})
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", noExp).Code)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString([]byte("other"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", other).Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/staff", whoami, JWTAuth(testSecret), RequireRole(model.RoleStaff))

	customer := signToken(t, jwt.MapClaims{"sub": "1", "role": "CUSTOMER", "exp": time.Now().Add(time.Hour).Unix()})
	staff := signToken(t, jwt.MapClaims{"sub": "2", "role": "STAFF", "exp": time.Now().Add(time.Hour).Unix()})

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/staff", customer).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/staff", staff).Code)
}

func TestCurrentActorWithoutIdentity(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, err := CurrentActor(c)
	assert.ErrorIs(t, err, ErrNoIdentity)

	c.Set("user_id", "abc")
	_, err = CurrentActor(c)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func rateCfg() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestTokenBucketLocalFallback(t *testing.T) {
	e := echo.New()
	e.GET("/x", ok, NewTokenBucket(rateCfg(), nil))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	e := echo.New()
	e.GET("/x", ok, NewTokenBucket(rateCfg(), rdb))

	first := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodGet, "/x", "").Code)
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := rateCfg()
	cfg.Enabled = false
	e := echo.New()
	e.GET("/x", ok, NewTokenBucket(cfg, nil))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
	}
}

func TestRedisCacheHitAndMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	calls := 0
	e := echo.New()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 10}
	e.GET("/classes", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"n": calls})
	}, NewRedisCache(cfg, rdb))

	first := serve(e, http.MethodGet, "/classes", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, http.MethodGet, "/classes", "")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestRedisCacheSkipsOversizedBodies(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	e := echo.New()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 4}
	e.GET("/big", func(c echo.Context) error { return c.String(http.StatusOK, "way too long") }, NewRedisCache(cfg, rdb))

	serve(e, http.MethodGet, "/big", "")
	rec := serve(e, http.MethodGet, "/big", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "way too long", rec.Body.String())
}

func TestPayloadRoundTrip(t *testing.T) {
	h := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, h, []byte(`{}`))
	require.NoError(t, err)
	status, hdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, `{}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}
