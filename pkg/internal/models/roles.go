package models

type Role string

const (
	RoleDriver     Role = "driver"
	RoleAIAgent    Role = "ai_agent"
	RoleHumanAgent Role = "human_agent"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDriver, RoleAIAgent, RoleHumanAgent:
		return true
	}
	return false
}

// TrackDescriptor is derived from the platform's live track listing for a
// single subscription decision; it is never cached between decisions.
type TrackDescriptor struct {
	SID               string `json:"sid"`
	Kind              string `json:"kind"`
	PublisherIdentity string `json:"publisher_identity"`
	PublisherRole     Role   `json:"publisher_role"`
	Muted             bool   `json:"muted"`
}
