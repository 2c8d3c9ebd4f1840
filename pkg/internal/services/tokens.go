package services

import (
	"time"

	"github.com/driveline/callbridge/pkg/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/livekit/protocol/auth"
	"github.com/spf13/viper"
)

// EncodeRoomToken mints a signed credential for one participant. The
// declared role rides along in the token metadata so the platform echoes
// it back on join, which is what the role resolver trusts first.
func EncodeRoomToken(room string, identity string, name string, role models.Role) (string, error) {
	grant := &auth.VideoGrant{
		Room:      room,
		RoomJoin:  true,
		RoomAdmin: role == models.RoleHumanAgent,
	}

	metadata, _ := jsoniter.Marshal(map[string]any{"role": role})

	duration := time.Second * time.Duration(viper.GetInt("calling.token_duration"))
	tk := auth.NewAccessToken(viper.GetString("calling.api_key"), viper.GetString("calling.api_secret"))
	tk.AddGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetMetadata(string(metadata)).
		SetValidFor(duration)

	return tk.ToJWT()
}
