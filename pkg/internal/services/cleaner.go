package services

import (
	"context"

	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/livekit/protocol/livekit"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DoAutoCallCleanup closes sessions whose room no longer exists on the
// platform. Webhooks normally handle this; the sweep only catches events
// lost in transit.
func DoAutoCallCleanup() {
	res, err := Lk.ListRooms(context.Background(), &livekit.ListRoomsRequest{})
	if err != nil {
		log.Error().Err(err).Msg("An error occurred when listing rooms for cleanup...")
		return
	}
	alive := lo.Map(res.Rooms, func(room *livekit.Room, _ int) string {
		return room.Name
	})

	var count int
	for _, session := range Sessions.List() {
		if session.Status == models.CallStatusEnded {
			continue
		}
		if lo.Contains(alive, session.CallID) {
			continue
		}
		if _, changed := Sessions.MarkEnded(session.CallID); changed {
			Events.Publish(bus.Event{Kind: bus.KindCallEnded, CallID: session.CallID})
			count++
		}
	}

	log.Debug().Int("affected", count).Msg("Clean up stale call sessions accomplished.")
}
