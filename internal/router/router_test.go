package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/config"
	"github.com/iliyamo/adspace-marketplace/internal/handler"
	"github.com/iliyamo/adspace-marketplace/internal/middleware"
	"github.com/iliyamo/adspace-marketplace/internal/model"
	"github.com/iliyamo/adspace-marketplace/internal/service"
	"github.com/iliyamo/adspace-marketplace/internal/utils"
)

type fakeMarket struct {
	handler.Market // unimplemented methods panic
}

func (fakeMarket) Listing(context.Context) (*service.ListingResult, error) {
	return &service.ListingResult{Items: []model.Listing{}}, nil
}

func (fakeMarket) MyRentals(context.Context, string, int) ([]model.RentalRecord, error) {
	return []model.RentalRecord{}, nil
}

func get(e *echo.Echo, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitKeysOnSessionUser(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	limiter := middleware.NewTokenBucket(config.RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "user",
		Prefix:         "test:rl",
	}, rdb, zap.NewNop())

	e := echo.New()
	RegisterMarketplace(e, handler.NewAdSpaceHandler(fakeMarket{}, zap.NewNop()), Options{
		JWTSecret: "s3cret",
		CanWrite:  func() bool { return false },
		RateLimit: limiter,
	})

	tok, err := utils.NewAccessToken("s3cret", "u1", 5)
	require.NoError(t, err)
	rec := get(e, "/v1/my-rentals", tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mr.Exists("test:rl:user:u1"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.False(t, mr.Exists("test:rl:user:anon"))

	// rejected sessions are not charged
	rec = get(e, "/v1/my-rentals", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, mr.Exists("test:rl:user:anon"))

	rec = get(e, "/v1/adspaces", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mr.Exists("test:rl:user:anon"))
}

func TestRegisterWithoutRateLimit(t *testing.T) {
	e := echo.New()
	RegisterMarketplace(e, handler.NewAdSpaceHandler(fakeMarket{}, zap.NewNop()), Options{JWTSecret: "s3cret"})

	rec := get(e, "/v1/adspaces", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}
