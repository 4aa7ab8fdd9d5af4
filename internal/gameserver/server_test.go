package gameserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lower-elements/example-web-game/internal/config"
	"github.com/lower-elements/example-web-game/internal/geom"
	"github.com/lower-elements/example-web-game/internal/protocol"
	"github.com/lower-elements/example-web-game/internal/userdir"
	"github.com/lower-elements/example-web-game/internal/world"
)

// fakeDirectory is an in-memory userdir.Directory for connection tests.
type fakeDirectory struct {
	accounts map[string]*userdir.Account
	saved    []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{accounts: make(map[string]*userdir.Account)}
}

func (d *fakeDirectory) FindByEmailAndPassword(_ context.Context, email, password string) (*userdir.Account, error) {
	acc, ok := d.accounts[email]
	if !ok || password != "secret" {
		return nil, nil
	}
	return acc, nil
}

func (d *fakeDirectory) ReplaceByEmail(_ context.Context, email string, acc *userdir.Account) (bool, error) {
	if _, ok := d.accounts[email]; !ok {
		return false, nil
	}
	d.accounts[email] = acc
	d.saved = append(d.saved, email)
	return true, nil
}

func (d *fakeDirectory) Insert(_ context.Context, email, username, _ string) (*userdir.Account, error) {
	acc := &userdir.Account{Email: email, Username: username, NormalizedUsername: userdir.Normalize(username)}
	d.accounts[email] = acc
	return acc, nil
}

func newTestServer(t *testing.T) (*Server, *fakeDirectory) {
	t.Helper()
	bounds, err := geom.NewBox(-50, 50, -50, 50, -50, 50)
	require.NoError(t, err)
	m := world.NewMap(bounds)
	m.SetCooldown(0)
	dir := newFakeDirectory()
	reg := protocol.NewRegistry()
	srv := New(config.Default(), zap.NewNop(), dir, m, protocol.Vec3{}, reg)
	return srv, dir
}

// connect admits a transportless session the same way serveConn would after a
// successful handshake.
func connect(t *testing.T, srv *Server, dir *fakeDirectory, username string) *Session {
	t.Helper()
	acc, err := dir.Insert(context.Background(), username+"@example.com", username, "secret")
	require.NoError(t, err)
	sess := NewSession(srv.nextID.Add(1), acc, nil, zap.NewNop(), 64)
	srv.admit(sess)
	return sess
}

func drainEvents(t *testing.T, sess *Session) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		select {
		case frame := <-sess.Frames():
			env, err := protocol.Decode(frame)
			require.NoError(t, err)
			out = append(out, env)
		default:
			return out
		}
	}
}

func filterEvents(envs []protocol.Envelope, name string) []protocol.Envelope {
	var out []protocol.Envelope
	for _, e := range envs {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func TestSessionStore(t *testing.T) {
	ss := NewSessionStore()
	a := NewSession(1, &userdir.Account{Username: "alice"}, nil, zap.NewNop(), 4)
	b := NewSession(2, &userdir.Account{Username: "bob"}, nil, zap.NewNop(), 4)
	ss.Add(a)
	ss.Add(b)
	assert.Equal(t, 2, ss.Len())
	assert.Same(t, a, ss.Get(1))

	ss.Remove(1)
	assert.Nil(t, ss.Get(1))
	assert.Equal(t, 1, ss.Len())

	// Removing twice is a no-op.
	ss.Remove(1)
	assert.Equal(t, 1, ss.Len())
}

func TestBroadcastExcludesByID(t *testing.T) {
	ss := NewSessionStore()
	a := NewSession(1, &userdir.Account{Username: "alice"}, nil, zap.NewNop(), 4)
	b := NewSession(2, &userdir.Account{Username: "bob"}, nil, zap.NewNop(), 4)
	ss.Add(a)
	ss.Add(b)

	ss.Broadcast(protocol.EventSpeak, protocol.SpeakData{Text: "hello"}, a.ID)

	assert.Empty(t, drainEvents(t, a))
	require.Len(t, drainEvents(t, b), 1)
}

func TestSendRawDropsWhenQueueFull(t *testing.T) {
	sess := NewSession(1, &userdir.Account{Username: "alice"}, nil, zap.NewNop(), 2)
	sess.SendRaw([]byte("one"))
	sess.SendRaw([]byte("two"))
	sess.SendRaw([]byte("three")) // dropped, queue is full

	assert.Equal(t, []byte("one"), <-sess.Frames())
	assert.Equal(t, []byte("two"), <-sess.Frames())
	select {
	case frame := <-sess.Frames():
		t.Fatalf("unexpected frame %q", frame)
	default:
	}
}

func TestSendRawAfterClose(t *testing.T) {
	sess := NewSession(1, &userdir.Account{Username: "alice"}, nil, zap.NewNop(), 2)
	sess.Close()
	sess.Close() // idempotent
	sess.SendRaw([]byte("late"))
	select {
	case frame := <-sess.Frames():
		t.Fatalf("unexpected frame %q", frame)
	default:
	}
}

func TestAdmitSendsMapAndAnnounces(t *testing.T) {
	srv, dir := newTestServer(t)
	a := connect(t, srv, dir, "alice")
	b := connect(t, srv, dir, "bob")

	aEvents := drainEvents(t, a)

	// The joiner gets the map dump with its own spawn state first.
	loads := filterEvents(aEvents, protocol.EventLoadMap)
	require.Len(t, loads, 1)
	var load protocol.LoadMapData
	require.NoError(t, json.Unmarshal(loads[0].Data, &load))
	assert.Equal(t, "player:alice", load.PlayerID)

	// Alice, present first, hears bob spawn and the join announcement.
	spawns := filterEvents(aEvents, protocol.EventSpawnEntities)
	require.Len(t, spawns, 2) // own roster catch-up + bob's spawn
	speaks := filterEvents(aEvents, protocol.EventSpeak)
	require.Len(t, speaks, 1)
	var speak protocol.SpeakData
	require.NoError(t, json.Unmarshal(speaks[0].Data, &speak))
	assert.Equal(t, "bob has joined the game.", speak.Text)
	assert.Equal(t, "Connections", speak.Buffer)

	// Bob never hears about his own join.
	bEvents := drainEvents(t, b)
	assert.Empty(t, filterEvents(bEvents, protocol.EventSpeak))
	assert.Equal(t, 2, srv.Store().Len())
	assert.Equal(t, 2, srv.World().PlayerCount())
}

func TestDropSessionTearsDownEverything(t *testing.T) {
	srv, dir := newTestServer(t)
	a := connect(t, srv, dir, "alice")
	b := connect(t, srv, dir, "bob")
	c := connect(t, srv, dir, "carol")
	aliceID := a.Player().ID()
	drainEvents(t, b)
	drainEvents(t, c)

	srv.dropSession(a)

	assert.Nil(t, srv.Store().Get(a.ID))
	assert.Nil(t, a.Player())
	assert.Nil(t, srv.World().Entity(aliceID))
	assert.Equal(t, []string{"alice@example.com"}, dir.saved)

	// Everyone left behind hears exactly one removal and one departure line.
	for _, sess := range []*Session{b, c} {
		events := drainEvents(t, sess)
		removals := filterEvents(events, protocol.EventRemoveEntities)
		require.Len(t, removals, 1)
		var removal protocol.RemoveEntitiesData
		require.NoError(t, json.Unmarshal(removals[0].Data, &removal))
		assert.Equal(t, []string{aliceID}, removal.Entities)

		speaks := filterEvents(events, protocol.EventSpeak)
		require.Len(t, speaks, 1)
		var speak protocol.SpeakData
		require.NoError(t, json.Unmarshal(speaks[0].Data, &speak))
		assert.Equal(t, "alice has left the game.", speak.Text)
	}
}

func TestDuplicateLoginSupersedesOldSession(t *testing.T) {
	srv, dir := newTestServer(t)
	a1 := connect(t, srv, dir, "alice")
	b := connect(t, srv, dir, "bob")
	drainEvents(t, a1)
	drainEvents(t, b)

	a2 := connect(t, srv, dir, "alice")

	// The old session is gone; the new one owns the player identity.
	assert.Equal(t, 2, srv.Store().Len())
	assert.Nil(t, srv.Store().Get(a1.ID))
	assert.Same(t, a2, srv.Store().Get(a2.ID))
	assert.Nil(t, a1.Player())
	require.NotNil(t, a2.Player())
	assert.Same(t, a2.Player(), srv.World().Entity("player:alice"))
	assert.Equal(t, 2, srv.World().PlayerCount())

	// Bob saw alice leave exactly once and rejoin exactly once.
	bEvents := drainEvents(t, b)
	removals := filterEvents(bEvents, protocol.EventRemoveEntities)
	require.Len(t, removals, 1)
	var removal protocol.RemoveEntitiesData
	require.NoError(t, json.Unmarshal(removals[0].Data, &removal))
	assert.Equal(t, []string{"player:alice"}, removal.Entities)

	var texts []string
	for _, ev := range filterEvents(bEvents, protocol.EventSpeak) {
		var speak protocol.SpeakData
		require.NoError(t, json.Unmarshal(ev.Data, &speak))
		texts = append(texts, speak.Text)
	}
	assert.Equal(t, []string{"alice has left the game.", "alice has joined the game."}, texts)

	// The superseded session's own teardown path finds nothing left to do.
	srv.dropSession(a1)
	assert.Empty(t, drainEvents(t, b))
	assert.Equal(t, 2, srv.Store().Len())
	assert.Equal(t, 2, srv.World().PlayerCount())
}

func TestDropSessionMissingAccountStillTearsDown(t *testing.T) {
	srv, dir := newTestServer(t)
	a := connect(t, srv, dir, "alice")
	delete(dir.accounts, "alice@example.com")

	srv.dropSession(a)

	assert.Equal(t, 0, srv.Store().Len())
	assert.Equal(t, 0, srv.World().PlayerCount())
}
