package world

import (
	"github.com/lower-elements/example-web-game/internal/geom"
	"github.com/lower-elements/example-web-game/internal/protocol"
)

// PlatformKindAir is the reserved kind for "no platform here": silent footsteps.
const PlatformKindAir = "air"

// Platform is a walkable region. Kind selects the footstep sound set played by
// the client when an entity steps inside it.
type Platform struct {
	Box  geom.Box
	Kind string
}

// Zone is a labeled region, used to answer "where am I" queries.
type Zone struct {
	Box  geom.Box
	Text string
}

// SoundSource is an ambient sound anchored to a box. The anchor is the point
// of the box closest to the reference entity the source tracks, and moves as
// that entity moves; the audio layer uses it for distance attenuation.
type SoundSource struct {
	Box    geom.Box
	Path   string
	Volume float64

	AnchorX, AnchorY, AnchorZ float64
}

// Retarget re-clamps the anchor to the closest point to (x, y, z).
func (s *SoundSource) Retarget(x, y, z float64) {
	s.AnchorX, s.AnchorY, s.AnchorZ = s.Box.ClosestPoint(x, y, z)
}

func boxDump(b geom.Box) protocol.BoxDump {
	return protocol.BoxDump{
		MinX: b.MinX, MaxX: b.MaxX,
		MinY: b.MinY, MaxY: b.MaxY,
		MinZ: b.MinZ, MaxZ: b.MaxZ,
	}
}

func boxFromDump(d protocol.BoxDump) (geom.Box, error) {
	return geom.NewBox(d.MinX, d.MaxX, d.MinY, d.MaxY, d.MinZ, d.MaxZ)
}
