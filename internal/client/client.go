// Package client is the replica side of the wire protocol: it mirrors the
// authoritative map from server events and forwards intents back. Audio and
// speech output stay behind the Presenter interface.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/lower-elements/example-web-game/internal/geom"
	"github.com/lower-elements/example-web-game/internal/protocol"
	"github.com/lower-elements/example-web-game/internal/world"
)

// Presenter renders game output. Implementations wrap a speech synthesizer
// and an audio engine; tests record calls.
type Presenter interface {
	// Speak voices one line that was filed under the named review buffer.
	Speak(buffer, text string)
	// PlaySound plays an unpositioned sound.
	PlaySound(path string, looping bool)
	// PlaySoundAt plays a sound positioned in world space.
	PlaySoundAt(path string, looping bool, x, y, z float64)
}

// Client owns one connection to the game server and the local replica map.
// Inbound events mutate the replica through the same dispatch-table mechanism
// the server uses for intents.
type Client struct {
	log       *zap.Logger
	presenter Presenter
	buffers   *BufferManager
	registry  *protocol.Registry

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       deadlock.RWMutex
	replica  *world.Map
	playerID string
}

// New builds a disconnected client; Dial attaches the transport.
func New(log *zap.Logger, presenter Presenter) *Client {
	c := &Client{
		log:       log,
		presenter: presenter,
		buffers:   NewBufferManager(),
		registry:  protocol.NewRegistry(),
	}
	c.registerHandlers()
	return c
}

// Dial connects to the server's websocket endpoint, presenting the signed-in
// cookie pair for the handshake.
func (c *Client) Dial(ctx context.Context, url, email, password string) error {
	header := http.Header{}
	header.Add("Cookie", (&http.Cookie{Name: "email", Value: email}).String())
	header.Add("Cookie", (&http.Cookie{Name: "password", Value: password}).String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("dialing game server: %w", err)
	}
	c.conn = conn
	return nil
}

// Run reads and dispatches inbound events until the connection closes or ctx
// is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading from server: %w", err)
		}
		c.HandleFrame(frame)
	}
}

// HandleFrame decodes and dispatches one inbound frame. Malformed frames are
// logged and dropped.
func (c *Client) HandleFrame(frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		c.log.Debug("malformed server frame ignored", zap.Error(err))
		return
	}
	c.registry.Dispatch(env.Event, c, env.Data)
}

// Close shuts the transport; Run returns after the next read fails.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// SendEvent serializes and writes one outbound event.
func (c *Client) SendEvent(event string, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("client is not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Chat sends a public chat line.
func (c *Client) Chat(message string) error {
	return c.SendEvent(protocol.EventChat, protocol.ChatData{Message: message})
}

// Move sends a directional movement intent.
func (c *Client) Move(direction string) error {
	return c.SendEvent(protocol.EventMove, protocol.MoveData{Direction: direction})
}

// RequestServerInfo asks for the online roster.
func (c *Client) RequestServerInfo() error {
	return c.SendEvent(protocol.EventGetServerInfo, nil)
}

// Replica returns the local mirror of the server map, nil before loadMap.
func (c *Client) Replica() *world.Map {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.replica
}

// PlayerID returns the server-assigned identity of the local player.
func (c *Client) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// Player returns the local player entity in the replica, nil before loadMap.
func (c *Client) Player() *world.Entity {
	c.mu.RLock()
	replica, id := c.replica, c.playerID
	c.mu.RUnlock()
	if replica == nil {
		return nil
	}
	return replica.Entity(id)
}

// Buffers exposes the review buffers for cursor navigation.
func (c *Client) Buffers() *BufferManager {
	return c.buffers
}

// setReplica installs a freshly loaded map and respawns the local player in
// it at the given position.
func (c *Client) setReplica(dump protocol.MapDump, playerID string, x, y, z float64) error {
	m := world.NewMap(geom.Box{})
	if err := m.LoadFromDump(dump); err != nil {
		return err
	}
	player := m.SpawnEntityID(playerID, x, y, z)
	m.TrackSoundSources(player)

	c.mu.Lock()
	c.replica = m
	c.playerID = playerID
	c.mu.Unlock()
	return nil
}
