package world

// tracker is the observer registry linking sound sources to the entity they
// follow. Sources never hold callbacks into entities; the map dispatches
// position updates by ID lookup, and removing either side deregisters the
// pair. Guarded by the owning Map's lock.
type tracker struct {
	byTarget map[string][]*SoundSource
}

func newTracker() *tracker {
	return &tracker{byTarget: make(map[string][]*SoundSource)}
}

func (t *tracker) attach(targetID string, src *SoundSource) {
	t.byTarget[targetID] = append(t.byTarget[targetID], src)
}

// detachTarget drops every subscription following the given entity.
func (t *tracker) detachTarget(targetID string) {
	delete(t.byTarget, targetID)
}

// detachSource drops one source from whatever entity it follows.
func (t *tracker) detachSource(src *SoundSource) {
	for id, sources := range t.byTarget {
		kept := sources[:0]
		for _, s := range sources {
			if s != src {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(t.byTarget, id)
		} else {
			t.byTarget[id] = kept
		}
	}
}

func (t *tracker) detachAll() {
	t.byTarget = make(map[string][]*SoundSource)
}

// notifyMove re-anchors every source following the moved entity.
func (t *tracker) notifyMove(targetID string, x, y, z float64) {
	for _, src := range t.byTarget[targetID] {
		src.Retarget(x, y, z)
	}
}
