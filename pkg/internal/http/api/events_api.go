package api

import (
	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/driveline/callbridge/pkg/internal/http/exts"
	"github.com/driveline/callbridge/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

var forwardableKinds = map[string]bus.Kind{
	"transcript":        bus.KindTranscript,
	"turn_state":        bus.KindTurnState,
	"handoff_requested": bus.KindHandoffRequested,
}

// forwardEvent tags collaborator-produced fragments (transcripts, turn
// state, handoff requests) onto the call event bus. The core forwards
// these; it does not produce them.
func forwardEvent(c *fiber.Ctx) error {
	var data struct {
		CallID  string         `json:"call_id" validate:"required"`
		Kind    string         `json:"kind" validate:"required"`
		Speaker string         `json:"speaker"`
		Text    string         `json:"text"`
		State   string         `json:"state"`
		Extra   map[string]any `json:"extra"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	kind, ok := forwardableKinds[data.Kind]
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "this event kind cannot be forwarded")
	}

	services.Sessions.LogEvent(data.CallID, data.Kind, map[string]any{
		"speaker": data.Speaker,
		"text":    data.Text,
		"state":   data.State,
	})
	services.Events.Publish(bus.Event{
		Kind:   kind,
		CallID: data.CallID,
		Payload: bus.ForwardedPayload{
			Speaker: data.Speaker,
			Text:    data.Text,
			State:   data.State,
			Extra:   data.Extra,
		},
	})

	return c.SendStatus(fiber.StatusOK)
}
