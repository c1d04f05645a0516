package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestIDKey is the fiber locals key carrying the request identifier.
const RequestIDKey = "request_id"

// RequestID tags every request with an identifier so audit lines for a
// money movement can be correlated across client retries. An inbound
// X-Request-ID is honored; otherwise one is generated. The id is always
// echoed back on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Locals(RequestIDKey, id)
		return c.Next()
	}
}
