package api

import (
	"github.com/driveline/callbridge/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

// receiveCallingWebhook ingests signed platform events. It replies 200
// with a minimal body no matter what happened internally, so a bad
// event can never wedge the platform's delivery queue.
func receiveCallingWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	_, _ = services.Webhooks.Receive(body, c.Get(fiber.HeaderAuthorization))

	return c.JSON(fiber.Map{"ok": true})
}
