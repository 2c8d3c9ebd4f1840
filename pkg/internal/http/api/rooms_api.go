package api

import (
	"context"
	"fmt"

	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/driveline/callbridge/pkg/internal/http/exts"
	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/driveline/callbridge/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/livekit/protocol/livekit"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func listRoom(c *fiber.Ctx) error {
	return c.JSON(services.Sessions.List())
}

func createRoom(c *fiber.Ctx) error {
	var data struct {
		CallID   string         `json:"call_id" validate:"required"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	room, err := services.Lk.CreateRoom(context.Background(), &livekit.CreateRoomRequest{
		Name:            data.CallID,
		EmptyTimeout:    viper.GetUint32("calling.empty_timeout_duration"),
		MaxParticipants: viper.GetUint32("calling.max_participants"),
	})
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("remote livekit error: %v", err))
	}

	session, existing := services.Sessions.CreateOrGet(data.CallID, room.Sid, data.Metadata)
	if !existing {
		services.Sessions.LogEvent(data.CallID, "room_created", map[string]any{"room_sid": room.Sid})
		services.Events.Publish(bus.Event{Kind: bus.KindCallCreated, CallID: data.CallID})
	}

	return c.JSON(fiber.Map{
		"session":     session,
		"is_existing": existing,
	})
}

func getRoom(c *fiber.Ctx) error {
	session, ok := services.Sessions.Get(c.Params("room"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such call session")
	}
	return c.JSON(session)
}

func deleteRoom(c *fiber.Ctx) error {
	callID := c.Params("room")
	if _, ok := services.Sessions.Get(callID); !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such call session")
	}

	if _, err := services.Lk.DeleteRoom(context.Background(), &livekit.DeleteRoomRequest{
		Room: callID,
	}); err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("Unable to delete room at livekit side")
	}

	session, changed := services.Sessions.MarkEnded(callID)
	if changed {
		services.Sessions.LogEvent(callID, "room_deleted", nil)
		services.Events.Publish(bus.Event{
			Kind:    bus.KindCallEnded,
			CallID:  callID,
			Payload: map[string]any{"duration": session.Duration},
		})
	}
	return c.JSON(session)
}

func listParticipants(c *fiber.Ctx) error {
	callID := c.Params("room")

	res, err := services.Lk.ListParticipants(context.Background(), &livekit.ListParticipantsRequest{
		Room: callID,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("remote livekit error: %v", err))
	}
	return c.JSON(res.Participants)
}

func removeParticipant(c *fiber.Ctx) error {
	callID := c.Params("room")
	identity := c.Params("identity")

	if _, err := services.Lk.RemoveParticipant(context.Background(), &livekit.RoomParticipantIdentity{
		Room:     callID,
		Identity: identity,
	}); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("remote livekit error: %v", err))
	}

	services.Sessions.RemoveParticipant(callID, identity)
	return c.SendStatus(fiber.StatusOK)
}

func listSubscribableTracks(c *fiber.Ctx) error {
	callID := c.Params("room")
	role := models.Role(c.Query("role", string(models.RoleDriver)))
	if !role.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown subscriber role")
	}

	res, err := services.Lk.ListParticipants(context.Background(), &livekit.ListParticipantsRequest{
		Room: callID,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("remote livekit error: %v", err))
	}

	tracks := services.DescribeTracks(res.Participants)
	return c.JSON(services.SubscribableTracks(tracks, role))
}
