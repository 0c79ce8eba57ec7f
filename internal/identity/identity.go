// Package identity turns the identity provider's access token into the
// authenticated actor of an operation.
package identity

import (
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// LocalsKey is where the JWT middleware stores the parsed token.
const LocalsKey = "user"

// ActorKey is where a resolved actor is cached for the rest of the request.
const ActorKey = "actor"

var (
	ErrNoToken    = errors.New("invalid token in context")
	ErrBadClaims  = errors.New("invalid claims")
	ErrBadSubject = errors.New("missing or malformed sub claim")
	ErrBadRole    = errors.New("missing or unknown role claim")
)

// FromToken reads the sub and role claims.
func FromToken(token *jwt.Token) (models.Actor, error) {
	if token == nil {
		return models.Actor{}, ErrNoToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Actor{}, ErrBadClaims
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil || userID == uuid.Nil {
		return models.Actor{}, ErrBadSubject
	}

	role, _ := claims["role"].(string)
	actor := models.Actor{UserID: userID, Role: models.Role(role)}
	if !actor.Role.Valid() {
		return models.Actor{}, ErrBadRole
	}
	return actor, nil
}

// GetActor extracts the actor from the JWT stored in Fiber context locals.
func GetActor(c *fiber.Ctx) (models.Actor, error) {
	if actor, ok := c.Locals(ActorKey).(models.Actor); ok {
		return actor, nil
	}
	token, ok := c.Locals(LocalsKey).(*jwt.Token)
	if !ok {
		return models.Actor{}, ErrNoToken
	}
	actor, err := FromToken(token)
	if err != nil {
		return models.Actor{}, err
	}
	c.Locals(ActorKey, actor)
	return actor, nil
}

// IssueToken signs an HS256 access token in the shape the provider issues.
// The server never mints tokens itself; tests and local tooling do.
func IssueToken(secret string, actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  actor.UserID.String(),
		"role": string(actor.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
