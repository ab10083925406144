package middleware

import (
    "context"
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

    "github.com/iliyamo/venue-attendance/internal/config"
    "github.com/iliyamo/venue-attendance/internal/utils"
)

const secret = "test-secret"

func protected(mw ...echo.MiddlewareFunc) *echo.Echo {
    e := echo.New()
    e.GET("/who", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"business_id": BusinessID(c), "staff": StaffID(c)})
    }, mw...)
    return e
}

func get(e *echo.Echo, bearer string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodGet, "/who", nil)
    if bearer != "" {
        req.Header.Set("Authorization", "Bearer "+bearer)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func mint(t *testing.T, bid uint64, role string) string {
    t.Helper()
    at, err := utils.NewAccessToken(secret, 9, bid, role, time.Hour, time.Now())
    require.NoError(t, err)
    return at.Token
}

func TestJWTAuthSetsTenant(t *testing.T) {
    e := protected(JWTAuth(secret))

    rec := get(e, mint(t, 42, utils.RoleStaff))
    require.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"business_id":42,"staff":"9"}`, rec.Body.String())
}

func TestJWTAuthRejects(t *testing.T) {
    e := protected(JWTAuth(secret))

    assert.Equal(t, http.StatusUnauthorized, get(e, "").Code)
    assert.Equal(t, http.StatusUnauthorized, get(e, "garbage").Code)

    other, err := utils.NewAccessToken("other-secret", 9, 42, utils.RoleStaff, time.Hour, time.Now())
    require.NoError(t, err)
    assert.Equal(t, http.StatusUnauthorized, get(e, other.Token).Code)

    expired, err := utils.NewAccessToken(secret, 9, 42, utils.RoleStaff, time.Hour, time.Now().Add(-2*time.Hour))
    require.NoError(t, err)
    assert.Equal(t, http.StatusUnauthorized, get(e, expired.Token).Code)

    // Signed correctly but without a business scope.
    raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "9", "role": utils.RoleStaff, "exp": time.Now().Add(time.Hour).Unix()})
    unscoped, err := raw.SignedString([]byte(secret))
    require.NoError(t, err)
    rec := get(e, unscoped)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.Contains(t, rec.Body.String(), "business scope")
}

func TestRequireRole(t *testing.T) {
    e := protected(JWTAuth(secret), RequireRole(utils.RoleManager))

    assert.Equal(t, http.StatusForbidden, get(e, mint(t, 1, utils.RoleStaff)).Code)
    assert.Equal(t, http.StatusOK, get(e, mint(t, 1, utils.RoleManager)).Code)
}

func TestTokenBucketPerBusiness(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })

    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            time.Hour,
        KeyStrategy:    "business",
        Prefix:         "rl",
    }
    e := protected(JWTAuth(secret), NewTokenBucket(cfg, rdb))

    a := mint(t, 1, utils.RoleStaff)
    assert.Equal(t, http.StatusOK, get(e, a).Code)
    assert.Equal(t, http.StatusOK, get(e, a).Code)
    rec := get(e, a)
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))

    // Another tenant has its own bucket.
    assert.Equal(t, http.StatusOK, get(e, mint(t, 2, utils.RoleStaff)).Code)
}

func TestTokenBucketDisabledWithoutRedis(t *testing.T) {
    cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
    e := protected(JWTAuth(secret), NewTokenBucket(cfg, nil))
    tok := mint(t, 1, utils.RoleStaff)
    for i := 0; i < 3; i++ {
        assert.Equal(t, http.StatusOK, get(e, tok).Code)
    }
}

func TestTakeRefills(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    ctx := context.Background()

    cfg := config.RateLimitConfig{Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute}
    t0 := time.Unix(1_700_000_000, 0)

    d, err := take(ctx, rdb, cfg, "k", t0)
    require.NoError(t, err)
    assert.True(t, d.Allowed)
    assert.Equal(t, int64(0), d.Remaining)

    d, err = take(ctx, rdb, cfg, "k", t0.Add(400*time.Millisecond))
    require.NoError(t, err)
    assert.False(t, d.Allowed)
    assert.Equal(t, 600*time.Millisecond, d.RetryAfter)

    d, err = take(ctx, rdb, cfg, "k", t0.Add(time.Second))
    require.NoError(t, err)
    assert.True(t, d.Allowed)
}
