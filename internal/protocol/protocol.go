// Package protocol defines the JSON wire model shared by the server and the
// client: the event envelope, the event names, and the payload shapes.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Event names sent by clients.
const (
	EventChat          = "chat"
	EventMove          = "move"
	EventGetServerInfo = "getServerInfo"
)

// Event names sent by the server.
const (
	EventSpeak           = "speak"
	EventLoadMap         = "loadMap"
	EventReloadMap       = "reloadMap"
	EventSpawnEntities   = "spawnEntities"
	EventRemoveEntities  = "removeEntities"
	EventEntityMove      = "entityMove"
	EventEntityPlaySound = "entityPlaySound"
	EventServerInfo      = "serverInfo"
)

// Envelope is one text frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode marshals an event and its payload into a wire frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return frame, nil
}

// Decode parses a wire frame into its envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Vec3 is a point in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ChatData asks the server to broadcast a chat line.
type ChatData struct {
	Message string `json:"message"`
}

// MoveData carries a directional movement intent.
type MoveData struct {
	Direction string `json:"direction"` // forward, backward, left, right
}

// SpeakData presents a line of text on the client, optionally preceded by a
// one-shot sound and optionally filed into a named review buffer.
type SpeakData struct {
	Text   string `json:"text"`
	Buffer string `json:"buffer,omitempty"`
	Sound  string `json:"sound,omitempty"`
}

// EntitySnapshot is the wire form of one entity's position.
type EntitySnapshot struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

// SpawnEntitiesData batch-creates replica entities.
type SpawnEntitiesData struct {
	Entities []EntitySnapshot `json:"entities"`
}

// RemoveEntitiesData batch-destroys replica entities by ID.
type RemoveEntitiesData struct {
	Entities []string `json:"entities"`
}

// EntityMoveData applies a position update to one replica entity.
type EntityMoveData struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	PlaySound bool    `json:"playSound"`
}

// EntityPlaySoundData plays a sound positioned at an entity.
type EntityPlaySoundData struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Looping bool   `json:"looping"`
}

// LoadMapData replaces the client's map wholesale and repositions its player.
type LoadMapData struct {
	Map      MapDump `json:"map"`
	Position Vec3    `json:"position"`
	PlayerID string  `json:"playerId"`
}

// OnlineUser is one row of the online roster.
type OnlineUser struct {
	Username string `json:"username"`
}

// ServerInfoData answers a getServerInfo request.
type ServerInfoData struct {
	OnlineList []OnlineUser `json:"onlineList"`
}

// BoxDump is the wire form of an axis-aligned bounding box.
type BoxDump struct {
	MinX float64 `json:"minx"`
	MaxX float64 `json:"maxx"`
	MinY float64 `json:"miny"`
	MaxY float64 `json:"maxy"`
	MinZ float64 `json:"minz"`
	MaxZ float64 `json:"maxz"`
}

// PlatformDump is a serialized walkable region.
type PlatformDump struct {
	BoxDump
	Kind string `json:"type"`
}

// ZoneDump is a serialized labeled region.
type ZoneDump struct {
	BoxDump
	Text string `json:"text"`
}

// SoundSourceDump is a serialized ambient sound region.
type SoundSourceDump struct {
	BoxDump
	Path   string  `json:"soundPath"`
	Volume float64 `json:"volume"`
}

// MapDump is the full serialized static state of a map. Entities are never
// part of a dump; they are synchronized through live spawn/remove events.
type MapDump struct {
	BoxDump
	Platforms    []PlatformDump    `json:"platforms"`
	Zones        []ZoneDump        `json:"zones"`
	SoundSources []SoundSourceDump `json:"soundSources"`
}
