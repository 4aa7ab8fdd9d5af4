package handler

import (
	"encoding/json"

	"github.com/lower-elements/example-web-game/internal/gameserver"
	"github.com/lower-elements/example-web-game/internal/protocol"
)

// HandleChat broadcasts a public chat line to every session except the
// sender; the sender's own client already presented the line locally.
func HandleChat(sess *gameserver.Session, data json.RawMessage, deps *Deps) {
	var req protocol.ChatData
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	if req.Message == "" {
		return
	}
	deps.Sessions.Broadcast(protocol.EventSpeak, protocol.SpeakData{
		Text:   sess.Username() + ": " + req.Message,
		Buffer: "Public chat",
		Sound:  "ui/chat.ogg",
	}, sess.ID)
}
