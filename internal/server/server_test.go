package server

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/assert/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Blackmamoth/collably-sub000/internal/auth"
	"github.com/Blackmamoth/collably-sub000/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: ":0", RateLimit: 100},
		CORS:   config.CORSConfig{AllowOrigins: "*", AllowHeaders: "Authorization"},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", AccessTokenExpiry: time.Hour},
		Board:  config.BoardConfig{PresenceTTL: time.Minute},
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()
	srv := New(cfg, nil, rdb)
	srv.SetupMiddleware()
	srv.SetupRoutes()
	defer srv.boardHandler.Hub().Shutdown()

	resp, _ := srv.App().Test(httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = srv.App().Test(httptest.NewRequest("GET", "/api/me", nil))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, _ := auth.NewJWTManager(cfg.Auth.JWTSecret, time.Hour).GenerateAccessToken("m1", "w1", "Ana")
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = srv.App().Test(req)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"memberId":"m1","name":"Ana","workspaceId":"w1"}`, string(body))

	// 업그레이드가 아닌 요청은 426
	resp, _ = srv.App().Test(httptest.NewRequest("GET", "/ws/projects/p1/elements", nil))
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestHealthReportsMissingDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	srv := New(testConfig(), nil, rdb)
	srv.SetupRoutes()
	defer srv.boardHandler.Hub().Shutdown()

	resp, _ := srv.App().Test(httptest.NewRequest("GET", "/health", nil))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.MatchRegex(t, string(body), `"database":\{"status":"unhealthy","error":"database not configured"\}`)
	assert.MatchRegex(t, string(body), `"redis":\{"status":"healthy"`)

	resp, _ = srv.App().Test(httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
