package services

import (
	"strings"

	"github.com/driveline/callbridge/pkg/internal/models"
	jsoniter "github.com/json-iterator/go"
)

// ResolveRole determines a participant's role. A valid role declared in
// the participant's metadata always wins; the identity substring
// convention is a best-effort fallback only, and unknown identities are
// treated as drivers. The function is pure and total.
func ResolveRole(identity string, metadata string) models.Role {
	if len(metadata) > 0 {
		var decl struct {
			Role models.Role `json:"role"`
		}
		if err := jsoniter.UnmarshalFromString(metadata, &decl); err == nil && decl.Role.Valid() {
			return decl.Role
		}
	}

	name := strings.ToLower(identity)
	switch {
	case strings.Contains(name, "bot"), strings.Contains(name, "ai"):
		return models.RoleAIAgent
	case strings.Contains(name, "agent"), strings.Contains(name, "support"):
		return models.RoleHumanAgent
	default:
		return models.RoleDriver
	}
}

// SubscribableTracks filters the room's published audio tracks down to
// the ones the subscriber should receive:
//   - a driver hears everything not published by a driver;
//   - the AI agent hears only drivers, never itself or another agent,
//     which is what keeps feedback loops out of the pipeline;
//   - a human agent hears everything not published by a human agent.
//
// Output order follows input order and the function performs no I/O.
func SubscribableTracks(tracks []models.TrackDescriptor, subscriber models.Role) []models.TrackDescriptor {
	out := make([]models.TrackDescriptor, 0, len(tracks))
	for _, track := range tracks {
		if track.Kind != "audio" {
			continue
		}
		switch subscriber {
		case models.RoleAIAgent:
			if track.PublisherRole == models.RoleDriver {
				out = append(out, track)
			}
		case models.RoleHumanAgent:
			if track.PublisherRole != models.RoleHumanAgent {
				out = append(out, track)
			}
		default:
			if track.PublisherRole != models.RoleDriver {
				out = append(out, track)
			}
		}
	}
	return out
}
