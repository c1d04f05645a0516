package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/potato707/MicroSystem-sub001/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	logger := logging.Discard()
	app.Use(Idempotency(cache, time.Minute, logger))

	calls := 0
	app.Post("/transfers", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"calls": calls})
	})
	app.Post("/failing", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusInternalServerError)
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, cleanup
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodPost, "/transfers", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
}

func TestIdempotencyReplaysCommittedResponse(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	first := post(t, app, "/transfers", "key-1")
	if first.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", first.StatusCode)
	}

	second := post(t, app, "/transfers", "key-1")
	if second.StatusCode != fiber.StatusCreated {
		t.Fatalf("replay must keep the original status, got %d", second.StatusCode)
	}

	var payload struct {
		Calls int `json:"calls"`
	}
	body, _ := io.ReadAll(second.Body)
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode replayed body: %v", err)
	}
	if payload.Calls != 1 {
		t.Fatalf("handler must run exactly once, ran %d times", payload.Calls)
	}
}

func TestIdempotencyDistinctKeysRunHandlerAgain(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	post(t, app, "/transfers", "key-a")
	resp := post(t, app, "/transfers", "key-b")

	var payload struct {
		Calls int `json:"calls"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Calls != 2 {
		t.Fatalf("distinct keys must reach the handler, got %d calls", payload.Calls)
	}
}

func TestIdempotencyDoesNotCacheServerErrors(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	first := post(t, app, "/failing", "key-err")
	if first.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", first.StatusCode)
	}

	// The reservation was released, so a retry reaches the handler instead
	// of replaying the failure.
	second := post(t, app, "/failing", "key-err")
	if second.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected retry to reach handler, got %d", second.StatusCode)
	}
}

func post(t *testing.T, app *fiber.App, path, key string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("Idempotency-Key", key)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}
