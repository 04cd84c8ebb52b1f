package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"taskboard/internal/auth"
	"taskboard/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func perform(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	admin, _, err := tokens.Issue(&model.User{ID: 1, Role: model.RoleAdmin})
	require.NoError(t, err)
	user, _, err := tokens.Issue(&model.User{ID: 2, Role: model.RoleUser})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/", Auth(tokens), RequireAdmin(), func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID})
	})

	assert.Equal(t, http.StatusUnauthorized, perform(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "not-a-jwt").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, user).Code)

	rec := perform(r, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1}`, rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimiter(rate.Limit(0.001), 2, IPKeyFunc), okHandler)

	assert.Equal(t, http.StatusOK, perform(r, "").Code)
	assert.Equal(t, http.StatusOK, perform(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, "").Code)
}

func TestVisitorTableEvictsIdleKeys(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	table := newVisitorTable(rate.Limit(0.001), 1, time.Minute, func() time.Time { return now })

	first := table.get("10.0.0.1")
	assert.True(t, first.Allow())
	table.get("10.0.0.2")
	assert.Equal(t, 2, table.len())

	now = now.Add(30 * time.Second)
	assert.Same(t, first, table.get("10.0.0.1"))

	now = now.Add(45 * time.Second)
	table.get("10.0.0.3")
	assert.Equal(t, 2, table.len(), "10.0.0.2 was idle for a full minute")

	now = now.Add(2 * time.Minute)
	fresh := table.get("10.0.0.1")
	assert.NotSame(t, first, fresh)
	assert.True(t, fresh.Allow())
	assert.Equal(t, 1, table.len())
}

func TestDistributedRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewDistributedRateLimiter(client, nil)
	r := gin.New()
	r.GET("/", limiter.Middleware("test", RateLimit{Rate: 2, Window: time.Minute, KeyFunc: IPKeyFunc}), okHandler)

	assert.Equal(t, http.StatusOK, perform(r, "").Code)
	assert.Equal(t, http.StatusOK, perform(r, "").Code)
	rec := perform(r, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	mr.Close()
	rec = perform(r, "")
	assert.Equal(t, http.StatusOK, rec.Code, "redis outages fail open")
	assert.Equal(t, "true", rec.Header().Get("X-RateLimit-Error"))
}

func TestRecoveryAndRequestID(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	r := gin.New()
	r.Use(RequestLogger(logger), RecoveryWithLog(logger))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	rec := perform(r, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
