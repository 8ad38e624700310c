package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/inkpress/account_service/internal/dto"
	"github.com/inkpress/account_service/internal/helper"
	"github.com/inkpress/account_service/internal/services"
)

// AuthMiddleware authenticates the request and resolves the principal's role
// set once, caching it on the request context. Downstream guards read the
// cached set instead of going back to storage.
func AuthMiddleware(auth helper.Auth, svc services.AccountService) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		// 1) try cookie first
		tokenStr := strings.TrimSpace(ctx.Cookies("access_token"))

		// 2) fallback to Authorization header
		if tokenStr == "" {
			tokenStr = strings.TrimSpace(ctx.Get("Authorization"))
		}

		principal, err := auth.VerifyToken(tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		roles, err := svc.RolesOf(principal.UserID)
		if err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal error",
			})
		}
		principal.Roles = roles

		ctx.Locals("userID", principal.UserID)
		ctx.Locals("principal", principal)
		return ctx.Next()
	}
}

// RequireRole permits the request only when the cached principal holds the
// named role. Must run after AuthMiddleware.
func RequireRole(roleName string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		principal, ok := ctx.Locals("principal").(dto.Principal)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		if !principal.HasRole(roleName) {
			return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "not authorized",
			})
		}

		return ctx.Next()
	}
}
