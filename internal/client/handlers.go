package client

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/lower-elements/example-web-game/internal/protocol"
	"github.com/lower-elements/example-web-game/internal/world"
)

// registerHandlers builds the inbound dispatch table. Every handler tolerates
// malformed payloads and out-of-order delivery; the replica must never crash
// on server input.
func (c *Client) registerHandlers() {
	bind := func(event string, fn func(*Client, json.RawMessage)) {
		c.registry.Register(event, func(sess any, data json.RawMessage) {
			fn(sess.(*Client), data)
		})
	}
	bind(protocol.EventSpeak, (*Client).onSpeak)
	bind(protocol.EventLoadMap, (*Client).onLoadMap)
	bind(protocol.EventReloadMap, (*Client).onLoadMap)
	bind(protocol.EventSpawnEntities, (*Client).onSpawnEntities)
	bind(protocol.EventRemoveEntities, (*Client).onRemoveEntities)
	bind(protocol.EventEntityMove, (*Client).onEntityMove)
	bind(protocol.EventEntityPlaySound, (*Client).onEntityPlaySound)
	bind(protocol.EventServerInfo, (*Client).onServerInfo)
}

func (c *Client) onSpeak(data json.RawMessage) {
	var msg protocol.SpeakData
	if err := json.Unmarshal(data, &msg); err != nil || msg.Text == "" {
		return
	}
	c.buffers.Insert(msg.Buffer, msg.Text)
	c.presenter.Speak(msg.Buffer, msg.Text)
	if msg.Sound != "" {
		c.presenter.PlaySound(msg.Sound, false)
	}
}

// onLoadMap replaces the replica wholesale. reloadMap arrives with the same
// payload when the server mutates the current map's geometry.
func (c *Client) onLoadMap(data json.RawMessage) {
	var msg protocol.LoadMapData
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	playerID := msg.PlayerID
	if playerID == "" {
		playerID = c.PlayerID()
	}
	if playerID == "" {
		c.log.Warn("map load without a player identity, dropped")
		return
	}
	if err := c.setReplica(msg.Map, playerID, msg.Position.X, msg.Position.Y, msg.Position.Z); err != nil {
		c.log.Error("map load rejected", zap.Error(err))
	}
}

// onSpawnEntities upserts: a snapshot for a known entity is a reposition, not
// a duplicate spawn, so replayed rosters stay idempotent.
func (c *Client) onSpawnEntities(data json.RawMessage) {
	var msg protocol.SpawnEntitiesData
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	replica := c.Replica()
	if replica == nil {
		return
	}
	for _, snap := range msg.Entities {
		if e := replica.Entity(snap.ID); e != nil {
			replica.PlaceEntity(e, snap.X, snap.Y, snap.Z)
			continue
		}
		replica.SpawnEntityID(snap.ID, snap.X, snap.Y, snap.Z)
	}
}

func (c *Client) onRemoveEntities(data json.RawMessage) {
	var msg protocol.RemoveEntitiesData
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	replica := c.Replica()
	if replica == nil {
		return
	}
	for _, id := range msg.Entities {
		if e := replica.Entity(id); e != nil {
			replica.RemoveEntity(e)
		}
	}
}

// onEntityMove replays an authoritative position. A move to the position the
// replica already has is skipped entirely so footsteps are not re-triggered
// by duplicate delivery.
func (c *Client) onEntityMove(data json.RawMessage) {
	var msg protocol.EntityMoveData
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	replica := c.Replica()
	if replica == nil {
		return
	}
	e := replica.Entity(msg.ID)
	if e == nil {
		e = replica.SpawnEntityID(msg.ID, msg.X, msg.Y, msg.Z)
	} else {
		x, y, z := e.Position()
		if x == msg.X && y == msg.Y && z == msg.Z {
			return
		}
		if !replica.PlaceEntity(e, msg.X, msg.Y, msg.Z) {
			return
		}
	}
	if msg.PlaySound {
		// Air is the reserved "no platform here" kind and stays silent.
		if kind := e.PlatformKind(); kind != world.PlatformKindAir {
			c.presenter.PlaySoundAt(footstepSound(kind), false, msg.X, msg.Y, msg.Z)
		}
	}
}

// footstepSound maps the platform kind under an entity to its step sound.
func footstepSound(kind string) string {
	return "steps/" + kind + ".ogg"
}

func (c *Client) onEntityPlaySound(data json.RawMessage) {
	var msg protocol.EntityPlaySoundData
	if err := json.Unmarshal(data, &msg); err != nil || msg.Path == "" {
		return
	}
	if replica := c.Replica(); replica != nil {
		if e := replica.Entity(msg.ID); e != nil {
			x, y, z := e.Position()
			c.presenter.PlaySoundAt(msg.Path, msg.Looping, x, y, z)
			return
		}
	}
	c.presenter.PlaySound(msg.Path, msg.Looping)
}

func (c *Client) onServerInfo(data json.RawMessage) {
	var msg protocol.ServerInfoData
	if err := json.Unmarshal(data, &msg); err != nil || len(msg.OnlineList) == 0 {
		return
	}
	names := make([]string, 0, len(msg.OnlineList))
	for _, u := range msg.OnlineList {
		names = append(names, u.Username)
	}
	line := strings.Join(names, ", ") + " online."
	c.buffers.Insert("Online players", line)
	c.presenter.Speak("Online players", line)
}
