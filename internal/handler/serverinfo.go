package handler

import (
	"encoding/json"

	"github.com/lower-elements/example-web-game/internal/gameserver"
	"github.com/lower-elements/example-web-game/internal/protocol"
)

// HandleGetServerInfo replies to the requester alone with the roster of
// online identities.
func HandleGetServerInfo(sess *gameserver.Session, _ json.RawMessage, deps *Deps) {
	online := make([]protocol.OnlineUser, 0, deps.Sessions.Len())
	deps.Sessions.ForEach(func(other *gameserver.Session) {
		online = append(online, protocol.OnlineUser{Username: other.Username()})
	})
	if len(online) == 0 {
		return
	}
	sess.SendEvent(protocol.EventServerInfo, protocol.ServerInfoData{OnlineList: online})
}
