package api

import (
	"context"

	"github.com/driveline/callbridge/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func getRecording(c *fiber.Ctx) error {
	callID := c.Params("room")

	session, ok := services.Sessions.Get(callID)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such call session")
	}

	_, active := services.Recordings.Active(callID)
	return c.JSON(fiber.Map{
		"recording_id":     session.RecordingID,
		"recording_status": session.RecordingStatus,
		"is_active":        active,
	})
}

func startRecording(c *fiber.Ctx) error {
	callID := c.Params("room")
	if _, ok := services.Sessions.Get(callID); !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such call session")
	}

	id, err := services.Recordings.Start(context.Background(), callID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"egress_id": id})
}

func stopRecording(c *fiber.Ctx) error {
	callID := c.Params("room")
	if _, ok := services.Sessions.Get(callID); !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such call session")
	}

	if err := services.Recordings.Stop(context.Background(), callID); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusOK)
}
