package world

import "math"

// Cell size for the spatial grid. Rectangle queries touch every cell the
// rectangle covers, so the size only affects constant factors, not results.
const cellSize = 16.0

type cellKey struct {
	cx int32
	cy int32
}

func toCell(v float64) int32 {
	return int32(math.Floor(v / cellSize))
}

// SpatialIndex is a cell-grid index over entity (x, y) positions, keyed by
// entity ID. The z axis is range-filtered by callers after a query. The index
// is owned by exactly one Map and is only touched under that Map's lock, so it
// carries no lock of its own.
type SpatialIndex struct {
	cells map[cellKey]map[string]*Entity
	byID  map[string]cellKey
}

func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{
		cells: make(map[cellKey]map[string]*Entity),
		byID:  make(map[string]cellKey),
	}
}

func (si *SpatialIndex) key(e *Entity) cellKey {
	return cellKey{cx: toCell(e.x), cy: toCell(e.y)}
}

// Add inserts an entity at its current position. Adding an entity that is
// already present is a no-op; it never duplicates.
func (si *SpatialIndex) Add(e *Entity) {
	if _, ok := si.byID[e.id]; ok {
		return
	}
	k := si.key(e)
	cell := si.cells[k]
	if cell == nil {
		cell = make(map[string]*Entity)
		si.cells[k] = cell
	}
	cell[e.id] = e
	si.byID[e.id] = k
}

// Remove takes an entity out of the index. Returns false if it was not there,
// including when the slot for its ID is held by a different entity: a stale
// handle must never evict the entity that superseded it.
func (si *SpatialIndex) Remove(e *Entity) bool {
	k, ok := si.byID[e.id]
	if !ok || si.cells[k][e.id] != e {
		return false
	}
	delete(si.byID, e.id)
	cell := si.cells[k]
	delete(cell, e.id)
	if len(cell) == 0 {
		delete(si.cells, k)
	}
	return true
}

// Move re-indexes an entity at its current position. Returns false if the
// entity is not the one indexed under its ID; callers treat that as a
// rejected move.
func (si *SpatialIndex) Move(e *Entity) bool {
	oldK, ok := si.byID[e.id]
	if !ok || si.cells[oldK][e.id] != e {
		return false
	}
	newK := si.key(e)
	if oldK == newK {
		return true
	}
	cell := si.cells[oldK]
	delete(cell, e.id)
	if len(cell) == 0 {
		delete(si.cells, oldK)
	}
	newCell := si.cells[newK]
	if newCell == nil {
		newCell = make(map[string]*Entity)
		si.cells[newK] = newCell
	}
	newCell[e.id] = e
	si.byID[e.id] = newK
	return true
}

// Get returns the indexed entity with the given ID, or nil.
func (si *SpatialIndex) Get(id string) *Entity {
	k, ok := si.byID[id]
	if !ok {
		return nil
	}
	return si.cells[k][id]
}

// Len returns the number of indexed entities.
func (si *SpatialIndex) Len() int {
	return len(si.byID)
}

// Query returns all entities whose (x, y) lies inside the rectangle described
// by center and size, bounds inclusive. The result is a fresh slice, so it
// stays valid while the index keeps changing.
func (si *SpatialIndex) Query(centerX, centerY, sizeX, sizeY float64) []*Entity {
	minX := centerX - sizeX/2
	maxX := centerX + sizeX/2
	minY := centerY - sizeY/2
	maxY := centerY + sizeY/2

	var result []*Entity
	for cx := toCell(minX); cx <= toCell(maxX); cx++ {
		for cy := toCell(minY); cy <= toCell(maxY); cy++ {
			for _, e := range si.cells[cellKey{cx: cx, cy: cy}] {
				if e.x >= minX && e.x <= maxX && e.y >= minY && e.y <= maxY {
					result = append(result, e)
				}
			}
		}
	}
	return result
}

// ForEach visits every indexed entity. It iterates over a copy of the
// membership taken up front, so callbacks may add or remove entities.
func (si *SpatialIndex) ForEach(fn func(*Entity)) {
	snapshot := make([]*Entity, 0, len(si.byID))
	for id, k := range si.byID {
		snapshot = append(snapshot, si.cells[k][id])
	}
	for _, e := range snapshot {
		fn(e)
	}
}
