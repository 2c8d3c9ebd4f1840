package api

import (
	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/driveline/callbridge/pkg/internal/http/exts"
	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/driveline/callbridge/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

func exchangeRoomToken(c *fiber.Ctx) error {
	callID := c.Params("room")

	var data struct {
		Identity string `json:"identity" validate:"required"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	role := models.Role(data.Role)
	if data.Role == "" {
		role = services.ResolveRole(data.Identity, "")
	} else if !role.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown participant role")
	}

	tk, err := services.EncodeRoomToken(callID, data.Identity, data.Name, role)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"token":    tk,
		"role":     role,
		"endpoint": viper.GetString("calling.endpoint"),
	})
}

func requestHandoff(c *fiber.Ctx) error {
	callID := c.Params("room")
	if _, ok := services.Sessions.Get(callID); !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such call session")
	}

	var data struct {
		AgentID   string `json:"agent_id" validate:"required"`
		AgentName string `json:"agent_name"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	tk, err := services.EncodeRoomToken(callID, data.AgentID, data.AgentName, models.RoleHumanAgent)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	services.Sessions.LogEvent(callID, "handoff_requested", map[string]any{"agent_id": data.AgentID})
	services.Events.Publish(bus.Event{
		Kind:    bus.KindHandoffRequested,
		CallID:  callID,
		Payload: bus.ParticipantPayload{Identity: data.AgentID, Role: models.RoleHumanAgent},
	})

	return c.JSON(fiber.Map{
		"token":    tk,
		"endpoint": viper.GetString("calling.endpoint"),
	})
}
