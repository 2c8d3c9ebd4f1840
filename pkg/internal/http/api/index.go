package api

import (
	"github.com/gofiber/fiber/v2"
)

func MapAPIs(app *fiber.App, baseURL string) {
	webhooks := app.Group("/webhooks").Name("Webhooks")
	{
		webhooks.Post("/livekit", receiveCallingWebhook)
	}

	api := app.Group(baseURL).Name("API")
	{
		rooms := api.Group("/rooms").Name("Rooms API")
		{
			rooms.Get("/", listRoom)
			rooms.Post("/", createRoom)
			rooms.Get("/:room", getRoom)
			rooms.Delete("/:room", deleteRoom)

			rooms.Get("/:room/participants", listParticipants)
			rooms.Delete("/:room/participants/:identity", removeParticipant)
			rooms.Get("/:room/tracks", listSubscribableTracks)

			rooms.Post("/:room/token", exchangeRoomToken)
			rooms.Post("/:room/handoff", requestHandoff)

			rooms.Get("/:room/recording", getRecording)
			rooms.Post("/:room/recording", startRecording)
			rooms.Delete("/:room/recording", stopRecording)

			rooms.Post("/:room/audio", enqueueAudio)
			rooms.Post("/:room/audio/interrupt", interruptAudio)
			rooms.Post("/:room/audio/pause", pauseAudio)
			rooms.Post("/:room/audio/resume", resumeAudio)
			rooms.Delete("/:room/audio", clearAudio)
		}

		api.Post("/events/forward", forwardEvent)
	}
}
