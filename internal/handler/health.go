package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger 헬스체크 대상 컴포넌트 (DB, Redis)
type Pinger func(ctx context.Context) error

// HealthHandler 헬스체크 핸들러
type HealthHandler struct {
	required map[string]Pinger
	optional map[string]Pinger
}

// NewHealthHandler HealthHandler 생성. required 실패는 unhealthy, optional 실패는 degraded.
func NewHealthHandler(required, optional map[string]Pinger) *HealthHandler {
	return &HealthHandler{required: required, optional: optional}
}

// ComponentCheck 컴포넌트 상태
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse 헬스체크 응답
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

func check(ctx context.Context, ping Pinger, failed string) ComponentCheck {
	start := time.Now()
	if err := ping(ctx); err != nil {
		return ComponentCheck{Status: failed, Error: err.Error()}
	}
	return ComponentCheck{Status: "healthy", Latency: time.Since(start).String()}
}

func names(m map[string]Pinger) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Check 전체 상태 확인
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	for _, name := range names(h.required) {
		result := check(ctx, h.required[name], "unhealthy")
		if result.Status != "healthy" {
			response.Status = "unhealthy"
		}
		response.Checks[name] = result
	}
	for _, name := range names(h.optional) {
		result := check(ctx, h.optional[name], "degraded")
		if result.Status != "healthy" && response.Status == "healthy" {
			response.Status = "degraded"
		}
		response.Checks[name] = result
	}

	statusCode := fiber.StatusOK
	if response.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}
	return c.Status(statusCode).JSON(response)
}

// Liveness K8s liveness probe용 (단순 체크)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Readiness K8s readiness probe용 (필수 컴포넌트 체크)
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	for _, ping := range h.required {
		if err := ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
		}
	}
	return c.SendString("READY")
}
