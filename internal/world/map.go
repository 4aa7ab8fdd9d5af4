package world

import (
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/lower-elements/example-web-game/internal/geom"
	"github.com/lower-elements/example-web-game/internal/protocol"
)

// Map is the authoritative bounded region of the world: a spatial index of
// live entities plus append-only sequences of static elements. Static element
// order is spawn order; point lookups walk it in reverse so the most recently
// spawned element wins ties. Every mutation goes through Map methods under
// m.mu; entity and protocol code never reach into the index directly.
type Map struct {
	mu deadlock.RWMutex

	bounds geom.Box
	index  *SpatialIndex

	platforms    []*Platform
	zones        []*Zone
	soundSources []*SoundSource

	// Player subset of the index, for map-wide broadcast without a full scan.
	players map[string]*Entity

	track *tracker

	now      func() time.Time
	cooldown time.Duration
}

func NewMap(bounds geom.Box) *Map {
	return &Map{
		bounds:   bounds,
		index:    NewSpatialIndex(),
		players:  make(map[string]*Entity),
		track:    newTracker(),
		now:      time.Now,
		cooldown: MovementCooldown,
	}
}

// SetClock replaces the movement-cooldown clock. Tests use it to step time
// deterministically.
func (m *Map) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetCooldown overrides the per-entity movement period.
func (m *Map) SetCooldown(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldown = d
}

// Bounds returns the world edges of the map.
func (m *Map) Bounds() geom.Box {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bounds
}

// Contains reports whether the point lies inside the map's bounds.
func (m *Map) Contains(x, y, z float64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bounds.Contains(x, y, z)
}

// SpawnPlatform appends a walkable region.
func (m *Map) SpawnPlatform(box geom.Box, kind string) *Platform {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Platform{Box: box, Kind: kind}
	m.platforms = append(m.platforms, p)
	return p
}

// SpawnZone appends a labeled region.
func (m *Map) SpawnZone(box geom.Box, text string) *Zone {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := &Zone{Box: box, Text: text}
	m.zones = append(m.zones, z)
	return z
}

// SpawnSoundSource appends an ambient sound region. When ref is non-nil the
// source follows that entity for the lifetime of either side: its anchor is
// re-clamped on every accepted move of ref.
func (m *Map) SpawnSoundSource(box geom.Box, path string, volume float64, ref *Entity) *SoundSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &SoundSource{Box: box, Path: path, Volume: volume}
	if ref != nil {
		s.Retarget(ref.x, ref.y, ref.z)
		m.track.attach(ref.id, s)
	} else {
		s.AnchorX, s.AnchorY, s.AnchorZ = box.Center()
	}
	m.soundSources = append(m.soundSources, s)
	return s
}

// TrackSoundSources subscribes every current sound source to ref. Used by the
// client after a map load, where all sources follow the local player.
func (m *Map) TrackSoundSources(ref *Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.soundSources {
		s.Retarget(ref.x, ref.y, ref.z)
		m.track.attach(ref.id, s)
	}
}

// RemoveSoundSource takes one sound source out of the map and cancels its
// entity tracking. Removing a source that is not in the map returns false.
func (m *Map) RemoveSoundSource(s *SoundSource) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.soundSources {
		if cur == s {
			m.soundSources = append(m.soundSources[:i], m.soundSources[i+1:]...)
			m.track.detachSource(s)
			return true
		}
	}
	return false
}

// PlatformAt returns the most recently spawned platform containing the point,
// or nil. Later spawns are treated as overlays on top of earlier ones.
func (m *Map) PlatformAt(x, y, z float64) *Platform {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.platforms) - 1; i >= 0; i-- {
		if m.platforms[i].Box.Contains(x, y, z) {
			return m.platforms[i]
		}
	}
	return nil
}

// ZoneAt returns the most recently spawned zone containing the point, or nil.
func (m *Map) ZoneAt(x, y, z float64) *Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.zones) - 1; i >= 0; i-- {
		if m.zones[i].Box.Contains(x, y, z) {
			return m.zones[i]
		}
	}
	return nil
}

// SoundSourceAt returns the most recently spawned sound source containing the
// point, or nil.
func (m *Map) SoundSourceAt(x, y, z float64) *SoundSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.soundSources) - 1; i >= 0; i-- {
		if m.soundSources[i].Box.Contains(x, y, z) {
			return m.soundSources[i]
		}
	}
	return nil
}

func (m *Map) platformKindAt(x, y, z float64) string {
	for i := len(m.platforms) - 1; i >= 0; i-- {
		if m.platforms[i].Box.Contains(x, y, z) {
			return m.platforms[i].Kind
		}
	}
	return PlatformKindAir
}

// SpawnEntity creates a generic entity with a server-assigned ID and inserts
// it into the map.
func (m *Map) SpawnEntity(x, y, z float64) *Entity {
	return m.SpawnEntityID(nextEntityID(), x, y, z)
}

// SpawnEntityID creates a generic entity with an explicit ID. The client
// replica uses it to replay server-assigned spawns.
func (m *Map) SpawnEntityID(id string, x, y, z float64) *Entity {
	e := &Entity{id: id, m: m, x: x, y: y, z: z, role: RoleGeneric}
	m.addEntity(e)
	return e
}

// SpawnPlayer creates the player entity for an authenticated account and
// inserts it into the map. Its ID derives from the normalized username, so
// the same account always occupies the same identity.
func (m *Map) SpawnPlayer(username string, sender EventSender, x, y, z float64) *Entity {
	e := &Entity{
		id:       PlayerID(username),
		m:        m,
		x:        x,
		y:        y,
		z:        z,
		role:     RolePlayer,
		username: username,
		sender:   sender,
	}
	m.addEntity(e)
	return e
}

// addEntity implements the join rule: the spawn broadcast goes to everyone
// already present (never the joiner), and a joining player then receives the
// full roster including itself, so its replica starts consistent without
// double-counting its own spawn.
func (m *Map) addEntity(e *Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A spawn under an already-occupied ID supersedes the holder: the old
	// entity is removed (with its removal broadcast) before the new one
	// enters, so the index and the player set never disagree.
	if old := m.index.Get(e.id); old != nil {
		m.removeEntityLocked(old)
	}

	m.sendEventToAllLocked(protocol.EventSpawnEntities, protocol.SpawnEntitiesData{
		Entities: []protocol.EntitySnapshot{{ID: e.id, X: e.x, Y: e.y, Z: e.z}},
	}, e.id)

	m.index.Add(e)
	// Spawning starts the movement cooldown, so a fresh entity cannot move
	// again until one period has passed.
	e.lastMove = m.now()
	e.platformKind = m.platformKindAt(e.x, e.y, e.z)

	if e.role == RolePlayer {
		m.players[e.id] = e
		m.sendRosterLocked(e)
	}
}

// sendRosterLocked sends the full current entity roster to one player.
func (m *Map) sendRosterLocked(e *Entity) {
	if e.sender == nil {
		return
	}
	roster := make([]protocol.EntitySnapshot, 0, m.index.Len())
	m.index.ForEach(func(other *Entity) {
		roster = append(roster, protocol.EntitySnapshot{ID: other.id, X: other.x, Y: other.y, Z: other.z})
	})
	e.sender.SendEvent(protocol.EventSpawnEntities, protocol.SpawnEntitiesData{Entities: roster})
}

// RemoveEntity takes an entity out of the map and tells the remaining players
// to drop it. Removing an absent entity, or one whose ID has since been taken
// over by another entity, is a benign no-op returning false.
func (m *Map) RemoveEntity(e *Entity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeEntityLocked(e)
}

func (m *Map) removeEntityLocked(e *Entity) bool {
	if !m.index.Remove(e) {
		return false
	}
	if m.players[e.id] == e {
		delete(m.players, e.id)
	}
	m.track.detachTarget(e.id)
	m.sendEventToAllLocked(protocol.EventRemoveEntities, protocol.RemoveEntitiesData{
		Entities: []string{e.id},
	})
	return true
}

// Entity returns the indexed entity with the given ID, or nil.
func (m *Map) Entity(id string) *Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index.Get(id)
}

// EntityCount returns the number of entities currently indexed.
func (m *Map) EntityCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index.Len()
}

// PlayerCount returns the number of players currently in the map.
func (m *Map) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// EntitiesIn returns all entities inside the box: a rectangle query on (x, y)
// with the z range filtered afterwards.
func (m *Map) EntitiesIn(box geom.Box) []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cx, cy, _ := box.Center()
	sx, sy, _ := box.Size()
	var result []*Entity
	for _, e := range m.index.Query(cx, cy, sx, sy) {
		if e.z >= box.MinZ && e.z <= box.MaxZ {
			result = append(result, e)
		}
	}
	return result
}

// ForEachEntity visits a stable snapshot of the membership, so callbacks may
// destroy entities.
func (m *Map) ForEachEntity(fn func(*Entity)) {
	m.mu.RLock()
	snapshot := make([]*Entity, 0, m.index.Len())
	m.index.ForEach(func(e *Entity) { snapshot = append(snapshot, e) })
	m.mu.RUnlock()
	for _, e := range snapshot {
		fn(e)
	}
}

// SendEventToAll delivers an event to every player currently tracked by the
// map except those whose entity ID is in excluding.
func (m *Map) SendEventToAll(event string, data any, excluding ...string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.sendEventToAllLocked(event, data, excluding...)
}

func (m *Map) sendEventToAllLocked(event string, data any, excluding ...string) {
	for id, p := range m.players {
		if p.sender == nil || contains(excluding, id) {
			continue
		}
		p.sender.SendEvent(event, data)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// moveEntity applies the movement state machine: cooldown gate, bounds gate,
// index re-index gate, then position update, re-anchoring of tracking sound
// sources, and the optional broadcast. Rejections leave the entity unchanged
// and emit nothing.
func (m *Map) moveEntity(e *Entity, x, y, z float64, playSound, broadcast bool) bool {
	m.mu.Lock()
	if !e.canMoveLocked() {
		m.mu.Unlock()
		return false
	}
	if !m.bounds.Contains(x, y, z) {
		m.mu.Unlock()
		return false
	}
	oldX, oldY, oldZ := e.x, e.y, e.z
	e.x, e.y, e.z = x, y, z
	if !m.index.Move(e) {
		e.x, e.y, e.z = oldX, oldY, oldZ
		m.mu.Unlock()
		return false
	}
	e.lastMove = m.now()
	e.platformKind = m.platformKindAt(x, y, z)
	m.track.notifyMove(e.id, x, y, z)
	if broadcast {
		m.sendEventToAllLocked(protocol.EventEntityMove, protocol.EntityMoveData{
			ID: e.id, X: x, Y: y, Z: z, PlaySound: playSound,
		})
	}
	m.mu.Unlock()
	return true
}

// PlaceEntity repositions an entity without the cooldown gate and without a
// broadcast: the client replica replays authoritative entityMove events with
// it, and the server uses it for teleport-style repositioning. Out-of-bounds
// placements and unindexed entities are still rejected.
func (m *Map) PlaceEntity(e *Entity, x, y, z float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bounds.Contains(x, y, z) {
		return false
	}
	oldX, oldY, oldZ := e.x, e.y, e.z
	e.x, e.y, e.z = x, y, z
	if !m.index.Move(e) {
		e.x, e.y, e.z = oldX, oldY, oldZ
		return false
	}
	e.platformKind = m.platformKindAt(x, y, z)
	m.track.notifyMove(e.id, x, y, z)
	return true
}

// Dump serializes the bounds and all static elements. Entities are excluded:
// they are synchronized through live spawn/remove events, never snapshots.
func (m *Map) Dump() protocol.MapDump {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d := protocol.MapDump{
		BoxDump:      boxDump(m.bounds),
		Platforms:    make([]protocol.PlatformDump, 0, len(m.platforms)),
		Zones:        make([]protocol.ZoneDump, 0, len(m.zones)),
		SoundSources: make([]protocol.SoundSourceDump, 0, len(m.soundSources)),
	}
	for _, p := range m.platforms {
		d.Platforms = append(d.Platforms, protocol.PlatformDump{BoxDump: boxDump(p.Box), Kind: p.Kind})
	}
	for _, z := range m.zones {
		d.Zones = append(d.Zones, protocol.ZoneDump{BoxDump: boxDump(z.Box), Text: z.Text})
	}
	for _, s := range m.soundSources {
		d.SoundSources = append(d.SoundSources, protocol.SoundSourceDump{BoxDump: boxDump(s.Box), Path: s.Path, Volume: s.Volume})
	}
	return d
}

// LoadFromDump replaces the bounds and static elements with the dump's
// contents. Existing elements are discarded; entities are untouched. The whole
// dump is validated before anything is installed: a bad box anywhere leaves
// the map exactly as it was.
func (m *Map) LoadFromDump(d protocol.MapDump) error {
	bounds, err := boxFromDump(d.BoxDump)
	if err != nil {
		return fmt.Errorf("load map bounds: %w", err)
	}
	platforms := make([]*Platform, 0, len(d.Platforms))
	for _, pd := range d.Platforms {
		box, err := boxFromDump(pd.BoxDump)
		if err != nil {
			return fmt.Errorf("load platform: %w", err)
		}
		platforms = append(platforms, &Platform{Box: box, Kind: pd.Kind})
	}
	zones := make([]*Zone, 0, len(d.Zones))
	for _, zd := range d.Zones {
		box, err := boxFromDump(zd.BoxDump)
		if err != nil {
			return fmt.Errorf("load zone: %w", err)
		}
		zones = append(zones, &Zone{Box: box, Text: zd.Text})
	}
	soundSources := make([]*SoundSource, 0, len(d.SoundSources))
	for _, sd := range d.SoundSources {
		box, err := boxFromDump(sd.BoxDump)
		if err != nil {
			return fmt.Errorf("load sound source: %w", err)
		}
		cx, cy, cz := box.Center()
		soundSources = append(soundSources, &SoundSource{
			Box: box, Path: sd.Path, Volume: sd.Volume,
			AnchorX: cx, AnchorY: cy, AnchorZ: cz,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bounds = bounds
	m.platforms = platforms
	m.zones = zones
	m.soundSources = soundSources
	m.track.detachAll()
	return nil
}

// Update advances all static elements by delta. No element has time-based
// behavior today; the world ticker calls this as the hook point for any that
// grows some.
func (m *Map) Update(delta time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = delta
}

// Destroy tears down all static elements and destroys every entity currently
// indexed. Entities are drained over a snapshot: each Destroy re-enters
// RemoveEntity, which broadcasts removal to whoever is still present.
func (m *Map) Destroy() {
	m.mu.Lock()
	snapshot := make([]*Entity, 0, m.index.Len())
	m.index.ForEach(func(e *Entity) { snapshot = append(snapshot, e) })
	m.platforms = nil
	m.zones = nil
	m.soundSources = nil
	m.track.detachAll()
	m.mu.Unlock()

	for _, e := range snapshot {
		e.Destroy()
	}
}
