package middleware

import (
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/dto"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/identity"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/gofiber/fiber/v2"
)

// RequireRoles lets the request through only for the listed roles. It must
// run after JWTProtected.
func RequireRoles(roles ...models.Role) fiber.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *fiber.Ctx) error {
		actor, err := identity.GetActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		if !allowed[actor.Role] {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Insufficient role", Kind: "FORBIDDEN",
			})
		}
		return c.Next()
	}
}
