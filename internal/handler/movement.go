package handler

import (
	"encoding/json"

	"github.com/lower-elements/example-web-game/internal/gameserver"
	"github.com/lower-elements/example-web-game/internal/protocol"
)

// Direction deltas for one-unit axis-aligned steps.
var directionDeltas = map[string][2]float64{
	"forward":  {0, 1},
	"backward": {0, -1},
	"left":     {-1, 0},
	"right":    {1, 0},
}

// HandleMove turns a directional intent into a one-unit move of the sender's
// player. The cooldown gate is authoritative here: intents arriving before
// expiry are dropped no matter what the client believes, and unknown
// directions are ignored.
func HandleMove(sess *gameserver.Session, data json.RawMessage, deps *Deps) {
	var req protocol.MoveData
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	delta, ok := directionDeltas[req.Direction]
	if !ok {
		return
	}
	player := sess.Player()
	if player == nil || !player.CanMove() {
		return
	}
	x, y, z := player.Position()
	player.Move(x+delta[0], y+delta[1], z, true, true)
}
