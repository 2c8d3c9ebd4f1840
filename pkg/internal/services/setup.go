package services

import (
	"context"

	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/driveline/callbridge/pkg/internal/database"
	"github.com/livekit/protocol/livekit"
	"github.com/spf13/viper"
)

var (
	Events     *bus.Bus
	Sessions   *SessionStore
	Queues     *QueueRegistry
	Recordings *RecordingController
	Agent      *AgentClient
	Webhooks   *WebhookDispatcher
)

// SetupServices wires the orchestration components together. Call after
// SetupLiveKit and the database source are ready.
func SetupServices() {
	Events = bus.New()
	Sessions = NewSessionStore(database.C)
	Queues = NewQueueRegistry(
		Events,
		publishToRoom,
		viper.GetInt("audio.sample_rate"),
		viper.GetInt("audio.channels"),
	)
	Recordings = NewRecordingController(Egress, Sessions, Events, viper.GetString("recording.prefix"))
	Agent = NewAgentClient(viper.GetString("agent.endpoint"))
	Webhooks = NewWebhookDispatcher(
		Sessions, Events, Recordings,
		viper.GetString("calling.api_key"),
		viper.GetString("calling.api_secret"),
		viper.GetBool("webhook.strict"),
	)

	go Queues.Watch()
	go Recordings.Watch()
	go NewCoordinator(Events, Agent, viper.GetString("agent.identity"), viper.GetBool("agent.autojoin")).Watch()
}

// publishToRoom ships queued audio bytes into the room over the
// platform's data channel; actual media transport stays on the platform.
func publishToRoom(room string, item *AudioQueueItem) error {
	_, err := Lk.SendData(context.Background(), &livekit.SendDataRequest{
		Room: room,
		Data: item.Payload,
		Kind: livekit.DataPacket_RELIABLE,
	})
	return err
}
