package world

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lower-elements/example-web-game/internal/protocol"
)

// MovementCooldown is the minimum time between two accepted moves of the same
// entity. The server enforces it regardless of client-side throttling.
const MovementCooldown = 277 * time.Millisecond

// Role tags an entity as a plain world object or a player avatar.
type Role int

const (
	RoleGeneric Role = iota
	RolePlayer
)

// EventSender delivers one named event to a connected player. The gameserver
// session implements it; replica entities carry none.
type EventSender interface {
	SendEvent(event string, data any)
}

var entitySerial atomic.Uint64

func nextEntityID() string {
	return fmt.Sprintf("entity:%d", entitySerial.Add(1))
}

// PlayerID derives the in-world identity for an account. The same account
// always maps to the same ID, and the "player:" namespace keeps it disjoint
// from server-assigned generic entity IDs.
func PlayerID(username string) string {
	return "player:" + strings.ToLower(username)
}

// Entity is a positioned, identified object owned by exactly one Map. Players
// are entities with RolePlayer plus an account username and an event sender.
// All mutable state is guarded by the owning Map's lock.
type Entity struct {
	id string
	m  *Map

	x, y, z float64

	lastMove     time.Time
	platformKind string

	role     Role
	username string
	sender   EventSender
}

// ID is immutable after construction and is the sole key used by the spatial
// index and by ID-to-entity lookups.
func (e *Entity) ID() string { return e.id }

func (e *Entity) Role() Role { return e.role }

// Username returns the owning account's username. Empty for non-players.
func (e *Entity) Username() string { return e.username }

// Position returns the entity's current coordinates.
func (e *Entity) Position() (float64, float64, float64) {
	e.m.mu.RLock()
	defer e.m.mu.RUnlock()
	return e.x, e.y, e.z
}

// PlatformKind returns the kind of platform underfoot after the last accepted
// move, or PlatformKindAir.
func (e *Entity) PlatformKind() string {
	e.m.mu.RLock()
	defer e.m.mu.RUnlock()
	return e.platformKind
}

// CanMove reports whether the movement cooldown has expired.
func (e *Entity) CanMove() bool {
	e.m.mu.RLock()
	defer e.m.mu.RUnlock()
	return e.canMoveLocked()
}

func (e *Entity) canMoveLocked() bool {
	return e.m.now().Sub(e.lastMove) >= e.m.cooldown
}

// Move requests a move to (x, y, z). The move is silently rejected when the
// cooldown has not expired, the destination is outside the owning map, or the
// spatial index refuses to re-index the entity. On acceptance the cooldown
// restarts, sound sources tracking this entity re-anchor, and, if broadcast is
// set, an entityMove event goes out to the map's players. Returns whether the
// move was accepted.
func (e *Entity) Move(x, y, z float64, playSound, broadcast bool) bool {
	return e.m.moveEntity(e, x, y, z, playSound, broadcast)
}

// PlaySound broadcasts a positioned sound to the map's players. With
// excludeSelf set the entity's own session is left out of the fan-out.
func (e *Entity) PlaySound(path string, looping, excludeSelf bool) {
	var excluding []string
	if excludeSelf {
		excluding = []string{e.id}
	}
	e.m.SendEventToAll(protocol.EventEntityPlaySound, protocol.EntityPlaySoundData{
		ID:      e.id,
		Path:    path,
		Looping: looping,
	}, excluding...)
}

// Snapshot returns the entity's wire form.
func (e *Entity) Snapshot() protocol.EntitySnapshot {
	x, y, z := e.Position()
	return protocol.EntitySnapshot{ID: e.id, X: x, Y: y, Z: z}
}

// Destroy detaches the entity from its map. The removal broadcast and the
// tracker deregistration happen inside RemoveEntity; destroying an entity
// twice is a benign no-op.
func (e *Entity) Destroy() {
	e.m.RemoveEntity(e)
}
