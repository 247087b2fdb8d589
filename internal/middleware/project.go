package middleware

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/Blackmamoth/collably-sub000/internal/auth"
	"github.com/Blackmamoth/collably-sub000/internal/service"
)

// MembershipChecker 프로젝트 멤버십 조회 (service.MemberService)
type MembershipChecker interface {
	IsProjectMember(ctx context.Context, projectID, memberID string) (bool, error)
}

// ProjectMiddleware 프로젝트 권한 미들웨어
type ProjectMiddleware struct {
	members MembershipChecker
}

// NewProjectMiddleware ProjectMiddleware 생성
func NewProjectMiddleware(members MembershipChecker) *ProjectMiddleware {
	return &ProjectMiddleware{members: members}
}

// RequireMembership 프로젝트가 속한 워크스페이스의 활성 멤버 필수
func (m *ProjectMiddleware) RequireMembership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.GetClaimsFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		projectID := c.Params("projectId")
		if projectID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "project ID is required",
			})
		}

		ok, err := m.members.IsProjectMember(c.UserContext(), projectID, claims.MemberID)
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "project not found",
			})
		}
		if err != nil {
			log.Printf("[ProjectMiddleware] membership lookup failed (project=%s member=%s): %v", projectID, claims.MemberID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to check membership",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "not a project member",
			})
		}

		c.Locals("projectID", projectID)
		return c.Next()
	}
}
