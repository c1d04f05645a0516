package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func requestIDApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := c.Locals(RequestIDKey).(string)
		return c.SendString(id)
	})
	return app
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	app := requestIDApp()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("response must carry a generated request id")
	}
}

func TestRequestIDHonorsInbound(t *testing.T) {
	app := requestIDApp()

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("inbound request id must be echoed, got %q", got)
	}
}
