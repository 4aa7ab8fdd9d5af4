package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lower-elements/example-web-game/internal/protocol"
)

func TestPlayerIDIsDeterministicAndNamespaced(t *testing.T) {
	assert.Equal(t, "player:alice", PlayerID("Alice"))
	assert.Equal(t, PlayerID("BOB"), PlayerID("bob"))

	m := testMap(t)
	e := m.SpawnEntity(0, 0, 0)
	assert.NotEqual(t, PlayerID("alice"), e.ID())
	assert.Contains(t, e.ID(), "entity:")
}

func TestMoveRejectedOutsideBounds(t *testing.T) {
	m, clock := clockedMap(t)
	e := m.SpawnEntity(0, 0, 0)
	clock.advance(MovementCooldown)

	assert.False(t, e.Move(500, 0, 0, false, false))
	x, y, z := e.Position()
	assert.Equal(t, [3]float64{0, 0, 0}, [3]float64{x, y, z})

	// Bounds are inclusive: moving exactly onto the edge is fine.
	assert.True(t, e.Move(100, 0, 0, false, false))
	x, _, _ = e.Position()
	assert.Equal(t, 100.0, x)
}

func TestMoveCooldownIsServerEnforced(t *testing.T) {
	m, clock := clockedMap(t)
	sender := &fakeSender{}
	m.SpawnPlayer("watcher", sender, 50, 50, 0)
	e := m.SpawnEntity(0, 0, 0)

	// Spawn starts the cooldown.
	assert.False(t, e.CanMove())
	assert.False(t, e.Move(1, 0, 0, true, true))
	assert.Empty(t, sender.byEvent(protocol.EventEntityMove))

	clock.advance(MovementCooldown)
	assert.True(t, e.CanMove())
	require.True(t, e.Move(1, 0, 0, true, true))

	// Immediately after an accepted move the gate is shut again: no position
	// change, no broadcast.
	assert.False(t, e.Move(2, 0, 0, true, true))
	x, _, _ := e.Position()
	assert.Equal(t, 1.0, x)
	require.Len(t, sender.byEvent(protocol.EventEntityMove), 1)

	clock.advance(MovementCooldown - 1)
	assert.False(t, e.CanMove())
	clock.advance(1)
	assert.True(t, e.CanMove())
}

func TestMoveBroadcastPayload(t *testing.T) {
	m, clock := clockedMap(t)
	sender := &fakeSender{}
	m.SpawnPlayer("watcher", sender, 50, 50, 0)
	e := m.SpawnEntity(0, 0, 0)
	clock.advance(MovementCooldown)

	require.True(t, e.Move(1, 2, 3, true, true))

	moves := sender.byEvent(protocol.EventEntityMove)
	require.Len(t, moves, 1)
	data, ok := moves[0].data.(protocol.EntityMoveData)
	require.True(t, ok)
	assert.Equal(t, protocol.EntityMoveData{ID: e.ID(), X: 1, Y: 2, Z: 3, PlaySound: true}, data)

	// Without the broadcast flag nothing goes out.
	clock.advance(MovementCooldown)
	require.True(t, e.Move(2, 2, 3, true, false))
	assert.Len(t, sender.byEvent(protocol.EventEntityMove), 1)
}

func TestMoveResolvesPlatformKind(t *testing.T) {
	m, clock := clockedMap(t)
	m.SpawnPlatform(box(t, 0, 10, 0, 10, 0, 0), "grass")
	e := m.SpawnEntity(5, 5, 0)
	assert.Equal(t, "grass", e.PlatformKind())

	clock.advance(MovementCooldown)
	require.True(t, e.Move(50, 50, 0, true, false))
	assert.Equal(t, PlatformKindAir, e.PlatformKind())
}

func TestPlaySoundExcludeSelf(t *testing.T) {
	m := testMap(t)
	aSender := &fakeSender{}
	bSender := &fakeSender{}
	a := m.SpawnPlayer("alice", aSender, 1, 1, 0)
	m.SpawnPlayer("bob", bSender, 2, 2, 0)

	a.PlaySound("ui/ding.ogg", false, true)

	assert.Empty(t, aSender.byEvent(protocol.EventEntityPlaySound))
	sounds := bSender.byEvent(protocol.EventEntityPlaySound)
	require.Len(t, sounds, 1)
	data, ok := sounds[0].data.(protocol.EntityPlaySoundData)
	require.True(t, ok)
	assert.Equal(t, protocol.EntityPlaySoundData{ID: a.ID(), Path: "ui/ding.ogg"}, data)

	a.PlaySound("ui/ding.ogg", false, false)
	assert.Len(t, aSender.byEvent(protocol.EventEntityPlaySound), 1)
}

func TestDestroyRemovesFromMap(t *testing.T) {
	m := testMap(t)
	e := m.SpawnEntity(0, 0, 0)
	require.Equal(t, 1, m.EntityCount())

	e.Destroy()
	assert.Equal(t, 0, m.EntityCount())
	// Double destroy is harmless.
	e.Destroy()
}

func TestPlaceEntityBypassesCooldownButNotBounds(t *testing.T) {
	m := testMap(t)
	e := m.SpawnEntity(0, 0, 0)

	// Cooldown is still running, yet placement succeeds.
	require.True(t, m.PlaceEntity(e, 10, 10, 0))
	x, y, _ := e.Position()
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 10.0, y)

	assert.False(t, m.PlaceEntity(e, 1000, 0, 0))
	x, _, _ = e.Position()
	assert.Equal(t, 10.0, x)
}
