package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORS allows the browser UI to call the API from any origin.
func CORS() fiber.Handler {
	methods := strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions}, ", ")

	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, methods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Origin, Content-Type, Accept, "+RequestIDHeader)
		c.Set(fiber.HeaderAccessControlExposeHeaders, "Content-Length, Content-Type, Location, "+RequestIDHeader)
		c.Set(fiber.HeaderAccessControlMaxAge, "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
