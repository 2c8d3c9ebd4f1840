package services

import (
	"context"
	"time"

	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/rs/zerolog/log"
)

// Coordinator asks the AI agent to join a call when it turns active and
// to leave when it ends. Both commands are best-effort; a call proceeds
// without the agent if the agent process is down.
type Coordinator struct {
	events   *bus.Bus
	agent    *AgentClient
	identity string
	autojoin bool
}

func NewCoordinator(events *bus.Bus, agent *AgentClient, identity string, autojoin bool) *Coordinator {
	if identity == "" {
		identity = "callbridge-ai-bot"
	}
	return &Coordinator{
		events:   events,
		agent:    agent,
		identity: identity,
		autojoin: autojoin,
	}
}

func (c *Coordinator) Watch() {
	sub := c.events.Subscribe("agent-coordinator", 32, bus.KindCallActive, bus.KindCallEnded)
	for evt := range sub.C {
		switch evt.Kind {
		case bus.KindCallActive:
			if c.autojoin {
				c.joinAgent(evt.CallID)
			}
		case bus.KindCallEnded:
			c.leaveAgent(evt.CallID)
		}
	}
}

func (c *Coordinator) joinAgent(callID string) {
	token, err := EncodeRoomToken(callID, c.identity, "AI Agent", models.RoleAIAgent)
	if err != nil {
		log.Warn().Err(err).Str("call_id", callID).Msg("An error occurred when minting agent token...")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.agent.JoinRoom(ctx, AgentJoinRequest{
		RoomName: callID,
		Token:    token,
		CallID:   callID,
		Metadata: map[string]any{"role": models.RoleAIAgent},
	}); err != nil {
		log.Warn().Err(err).Str("call_id", callID).Msg("An error occurred when inviting agent to the call...")
	}
}

func (c *Coordinator) leaveAgent(callID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.agent.LeaveRoom(ctx, callID); err != nil {
		log.Warn().Err(err).Str("call_id", callID).Msg("An error occurred when dismissing agent from the call...")
	}
}
