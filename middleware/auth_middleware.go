package middleware

import (
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	config "github.com/mindmates/backend/configs"
)

func Protected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(config.Config("JWT_SECRET")),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

var blacklistClient *redis.Client

// SetBlacklistClient wires the redis client consulted for revoked tokens.
func SetBlacklistClient(rdb *redis.Client) {
	blacklistClient = rdb
}

// NotBlacklisted rejects tokens revoked by logout. Runs after Protected(),
// so the signature has already been verified.
func NotBlacklisted() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rdb := blacklistClient
		if rdb == nil {
			return c.Next()
		}

		raw := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if raw == "" {
			return c.Next()
		}

		exists, err := rdb.Exists(c.Context(), "blacklist:"+raw).Result()
		if err == nil && exists > 0 {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"status": "error", "message": "Token has been revoked", "data": nil})
		}
		return c.Next()
	}
}

// UserID extracts the authenticated user id set by Protected().
func UserID(c *fiber.Ctx) uint {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	id, _ := claims["user_id"].(float64)
	return uint(id)
}

// RawToken returns the bearer token string from the Authorization header.
func RawToken(c *fiber.Ctx) string {
	return strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
}
