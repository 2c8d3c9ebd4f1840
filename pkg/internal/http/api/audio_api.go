package api

import (
	"encoding/base64"

	"github.com/driveline/callbridge/pkg/internal/http/exts"
	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/driveline/callbridge/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

type audioPayload struct {
	Audio      string         `json:"audio" validate:"required"`
	DurationMs int64          `json:"duration_ms"`
	Metadata   map[string]any `json:"metadata"`
}

func (p audioPayload) decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Audio)
}

func roomQueue(c *fiber.Ctx) (*services.AudioQueue, error) {
	callID := c.Params("room")
	session, ok := services.Sessions.Get(callID)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "no such call session")
	}
	if session.Status == models.CallStatusEnded {
		return nil, fiber.NewError(fiber.StatusGone, "this call has already ended")
	}
	return services.Queues.Get(callID), nil
}

func enqueueAudio(c *fiber.Ctx) error {
	var data audioPayload
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}
	payload, err := data.decode()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "audio must be base64 encoded")
	}

	queue, err := roomQueue(c)
	if err != nil {
		return err
	}

	id := queue.Enqueue(payload, data.DurationMs, data.Metadata)
	return c.JSON(fiber.Map{"item_id": id})
}

func interruptAudio(c *fiber.Ctx) error {
	var data audioPayload
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}
	payload, err := data.decode()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "audio must be base64 encoded")
	}

	queue, err := roomQueue(c)
	if err != nil {
		return err
	}

	id := queue.InterruptAndPlay(payload, data.DurationMs, data.Metadata)
	return c.JSON(fiber.Map{"item_id": id})
}

func pauseAudio(c *fiber.Ctx) error {
	queue, err := roomQueue(c)
	if err != nil {
		return err
	}
	queue.Pause()
	return c.SendStatus(fiber.StatusOK)
}

func resumeAudio(c *fiber.Ctx) error {
	queue, err := roomQueue(c)
	if err != nil {
		return err
	}
	queue.Resume()
	return c.SendStatus(fiber.StatusOK)
}

func clearAudio(c *fiber.Ctx) error {
	queue, err := roomQueue(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"discarded": queue.Clear()})
}
