package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lower-elements/example-web-game/internal/geom"
	"github.com/lower-elements/example-web-game/internal/protocol"
	"github.com/lower-elements/example-web-game/internal/world"
)

type spokenLine struct {
	buffer, text string
}

type playedSound struct {
	path       string
	looping    bool
	positioned bool
	x, y, z    float64
}

type fakePresenter struct {
	spoken []spokenLine
	played []playedSound
}

func (p *fakePresenter) Speak(buffer, text string) {
	p.spoken = append(p.spoken, spokenLine{buffer, text})
}

func (p *fakePresenter) PlaySound(path string, looping bool) {
	p.played = append(p.played, playedSound{path: path, looping: looping})
}

func (p *fakePresenter) PlaySoundAt(path string, looping bool, x, y, z float64) {
	p.played = append(p.played, playedSound{path: path, looping: looping, positioned: true, x: x, y: y, z: z})
}

func newTestClient() (*Client, *fakePresenter) {
	p := &fakePresenter{}
	return New(zap.NewNop(), p), p
}

// serverDump builds a map dump the way the server would send it.
func serverDump(t *testing.T) protocol.MapDump {
	t.Helper()
	bounds, err := geom.NewBox(-100, 100, -100, 100, -10, 10)
	require.NoError(t, err)
	m := world.NewMap(bounds)
	floor, err := geom.NewBox(-100, 100, -100, 100, -10, 0)
	require.NoError(t, err)
	m.SpawnPlatform(floor, "grass")
	m.SpawnZone(floor, "The meadow")
	return m.Dump()
}

func deliver(t *testing.T, c *Client, event string, data any) {
	t.Helper()
	frame, err := protocol.Encode(event, data)
	require.NoError(t, err)
	c.HandleFrame(frame)
}

func loadTestMap(t *testing.T, c *Client) {
	t.Helper()
	deliver(t, c, protocol.EventLoadMap, protocol.LoadMapData{
		Map:      serverDump(t),
		Position: protocol.Vec3{X: 1, Y: 2, Z: 0},
		PlayerID: "player:alice",
	})
}

func TestLoadMapInstallsReplica(t *testing.T) {
	c, _ := newTestClient()
	assert.Nil(t, c.Replica())

	loadTestMap(t, c)

	replica := c.Replica()
	require.NotNil(t, replica)
	assert.Equal(t, "player:alice", c.PlayerID())

	player := c.Player()
	require.NotNil(t, player)
	x, y, z := player.Position()
	assert.Equal(t, [3]float64{1, 2, 0}, [3]float64{x, y, z})
	assert.Equal(t, "grass", player.PlatformKind())
	require.NotNil(t, replica.ZoneAt(0, 0, 0))
}

func TestReloadMapKeepsIdentity(t *testing.T) {
	c, _ := newTestClient()
	loadTestMap(t, c)

	deliver(t, c, protocol.EventReloadMap, protocol.LoadMapData{
		Map:      serverDump(t),
		Position: protocol.Vec3{X: 5, Y: 5, Z: 0},
	})

	assert.Equal(t, "player:alice", c.PlayerID())
	player := c.Player()
	require.NotNil(t, player)
	x, y, _ := player.Position()
	assert.Equal(t, [2]float64{5, 5}, [2]float64{x, y})
}

func TestSpeakFilesAndVoices(t *testing.T) {
	c, p := newTestClient()

	deliver(t, c, protocol.EventSpeak, protocol.SpeakData{
		Text: "bob: hello", Buffer: "Public chat", Sound: "ui/chat.ogg",
	})

	require.Len(t, p.spoken, 1)
	assert.Equal(t, spokenLine{"Public chat", "bob: hello"}, p.spoken[0])
	require.Len(t, p.played, 1)
	assert.Equal(t, playedSound{path: "ui/chat.ogg"}, p.played[0])

	// Filed under the named buffer and mirrored into Main.
	require.NotNil(t, c.Buffers().Get("Public chat"))
	assert.Equal(t, 1, c.Buffers().Get("Public chat").Len())
	assert.Equal(t, 1, c.Buffers().Get("Main").Len())
}

func TestSpawnEntitiesIsIdempotent(t *testing.T) {
	c, _ := newTestClient()
	loadTestMap(t, c)

	roster := protocol.SpawnEntitiesData{Entities: []protocol.EntitySnapshot{
		{ID: "player:alice", X: 1, Y: 2, Z: 0},
		{ID: "player:bob", X: 3, Y: 4, Z: 0},
	}}
	deliver(t, c, protocol.EventSpawnEntities, roster)
	deliver(t, c, protocol.EventSpawnEntities, roster)

	assert.Equal(t, 2, c.Replica().EntityCount())
	bob := c.Replica().Entity("player:bob")
	require.NotNil(t, bob)
	x, _, _ := bob.Position()
	assert.Equal(t, 3.0, x)
}

func TestRemoveEntitiesIsIdempotent(t *testing.T) {
	c, _ := newTestClient()
	loadTestMap(t, c)
	deliver(t, c, protocol.EventSpawnEntities, protocol.SpawnEntitiesData{
		Entities: []protocol.EntitySnapshot{{ID: "player:bob", X: 3, Y: 4, Z: 0}},
	})

	removal := protocol.RemoveEntitiesData{Entities: []string{"player:bob"}}
	deliver(t, c, protocol.EventRemoveEntities, removal)
	deliver(t, c, protocol.EventRemoveEntities, removal)

	assert.Nil(t, c.Replica().Entity("player:bob"))
	assert.Equal(t, 1, c.Replica().EntityCount())
}

func TestEntityMoveReplaysAndResolvesFootsteps(t *testing.T) {
	c, p := newTestClient()
	loadTestMap(t, c)

	// A move for an unknown entity spawns it in place.
	deliver(t, c, protocol.EventEntityMove, protocol.EntityMoveData{
		ID: "player:bob", X: 3, Y: 4, Z: 0, PlaySound: true,
	})
	bob := c.Replica().Entity("player:bob")
	require.NotNil(t, bob)
	require.Len(t, p.played, 1)
	assert.Equal(t, playedSound{path: "steps/grass.ogg", positioned: true, x: 3, y: 4, z: 0}, p.played[0])

	// Duplicate delivery of the same position triggers nothing.
	deliver(t, c, protocol.EventEntityMove, protocol.EntityMoveData{
		ID: "player:bob", X: 3, Y: 4, Z: 0, PlaySound: true,
	})
	assert.Len(t, p.played, 1)

	// A silent reposition moves without a footstep.
	deliver(t, c, protocol.EventEntityMove, protocol.EntityMoveData{
		ID: "player:bob", X: 6, Y: 4, Z: 0, PlaySound: false,
	})
	x, _, _ := bob.Position()
	assert.Equal(t, 6.0, x)
	assert.Len(t, p.played, 1)
}

func TestEntityMoveOffPlatformIsSilent(t *testing.T) {
	c, p := newTestClient()

	// The floor platform only covers the plaza; everywhere else is air.
	bounds, err := geom.NewBox(-100, 100, -100, 100, -10, 10)
	require.NoError(t, err)
	m := world.NewMap(bounds)
	plaza, err := geom.NewBox(-10, 10, -10, 10, -10, 0)
	require.NoError(t, err)
	m.SpawnPlatform(plaza, "stone")
	deliver(t, c, protocol.EventLoadMap, protocol.LoadMapData{
		Map:      m.Dump(),
		Position: protocol.Vec3{},
		PlayerID: "player:alice",
	})

	deliver(t, c, protocol.EventEntityMove, protocol.EntityMoveData{
		ID: "player:bob", X: 50, Y: 50, Z: 0, PlaySound: true,
	})
	bob := c.Replica().Entity("player:bob")
	require.NotNil(t, bob)
	assert.Equal(t, world.PlatformKindAir, bob.PlatformKind())
	assert.Empty(t, p.played)

	// Stepping back onto stone is audible again.
	deliver(t, c, protocol.EventEntityMove, protocol.EntityMoveData{
		ID: "player:bob", X: 0, Y: 0, Z: 0, PlaySound: true,
	})
	require.Len(t, p.played, 1)
	assert.Equal(t, "steps/stone.ogg", p.played[0].path)
}

func TestEntityPlaySoundIsPositionedForKnownEntities(t *testing.T) {
	c, p := newTestClient()
	loadTestMap(t, c)

	deliver(t, c, protocol.EventEntityPlaySound, protocol.EntityPlaySoundData{
		ID: "player:alice", Path: "voice/laugh.ogg",
	})
	require.Len(t, p.played, 1)
	assert.Equal(t, playedSound{path: "voice/laugh.ogg", positioned: true, x: 1, y: 2, z: 0}, p.played[0])

	// Sounds for entities the replica never saw still play, unpositioned.
	deliver(t, c, protocol.EventEntityPlaySound, protocol.EntityPlaySoundData{
		ID: "entity:99", Path: "amb/thunder.ogg", Looping: true,
	})
	require.Len(t, p.played, 2)
	assert.Equal(t, playedSound{path: "amb/thunder.ogg", looping: true}, p.played[1])
}

func TestServerInfoAnnouncesRoster(t *testing.T) {
	c, p := newTestClient()

	deliver(t, c, protocol.EventServerInfo, protocol.ServerInfoData{
		OnlineList: []protocol.OnlineUser{{Username: "alice"}, {Username: "bob"}},
	})

	require.Len(t, p.spoken, 1)
	assert.Equal(t, spokenLine{"Online players", "alice, bob online."}, p.spoken[0])
}

func TestMalformedFramesAreDropped(t *testing.T) {
	c, p := newTestClient()
	c.HandleFrame([]byte(`{broken`))
	c.HandleFrame([]byte(`{"event":"speak","data":{"text":42}}`))
	assert.Empty(t, p.spoken)
}

func TestBufferNavigation(t *testing.T) {
	bm := NewBufferManager()
	bm.Insert("Public chat", "first")
	bm.Insert("Public chat", "second")
	bm.Insert("Connections", "bob has joined the game.")

	assert.Equal(t, "Main", bm.Current().Name)
	assert.Equal(t, 3, bm.Current().Len())

	chat := bm.Switch(SwitchForward)
	assert.Equal(t, "Public chat", chat.Name)
	assert.Equal(t, "first", chat.CurrentItem())
	assert.Equal(t, "second", chat.Move(SwitchForward))
	assert.Equal(t, "second", chat.Move(SwitchForward)) // clamped at the end
	assert.Equal(t, "first", chat.Move(SwitchTop))

	assert.Equal(t, "Connections", bm.Switch(SwitchBottom).Name)
	assert.Equal(t, "Main", bm.Switch(SwitchTop).Name)
}
