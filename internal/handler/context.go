// Package handler maps inbound client events to authoritative actions on the
// world. Each handler gets the sending session and the shared dependencies
// explicitly; nothing is captured implicitly.
package handler

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/lower-elements/example-web-game/internal/gameserver"
	"github.com/lower-elements/example-web-game/internal/protocol"
	"github.com/lower-elements/example-web-game/internal/world"
)

// Deps holds shared dependencies injected into all event handlers.
type Deps struct {
	Log      *zap.Logger
	World    *world.Map
	Sessions *gameserver.SessionStore
}

// RegisterAll registers every server-side event handler into the registry.
func RegisterAll(reg *protocol.Registry, deps *Deps) {
	reg.Register(protocol.EventChat, func(sess any, data json.RawMessage) {
		HandleChat(sess.(*gameserver.Session), data, deps)
	})
	reg.Register(protocol.EventMove, func(sess any, data json.RawMessage) {
		HandleMove(sess.(*gameserver.Session), data, deps)
	})
	reg.Register(protocol.EventGetServerInfo, func(sess any, data json.RawMessage) {
		HandleGetServerInfo(sess.(*gameserver.Session), data, deps)
	})
}
