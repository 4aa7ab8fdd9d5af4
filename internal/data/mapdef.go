package data

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lower-elements/example-web-game/internal/geom"
	"github.com/lower-elements/example-web-game/internal/world"
)

// MapDef is one map definition loaded from YAML: the play area bounds, the
// default spawn point, and the static elements placed at boot.
type MapDef struct {
	Name         string
	Bounds       geom.Box
	SpawnX       float64
	SpawnY       float64
	SpawnZ       float64
	Platforms    []PlatformDef
	Zones        []ZoneDef
	SoundSources []SoundSourceDef
}

type PlatformDef struct {
	Box  geom.Box
	Kind string
}

type ZoneDef struct {
	Box  geom.Box
	Text string
}

type SoundSourceDef struct {
	Box    geom.Box
	Path   string
	Volume float64
}

// --- YAML loading ---

type boxEntry struct {
	MinX float64 `yaml:"minx"`
	MaxX float64 `yaml:"maxx"`
	MinY float64 `yaml:"miny"`
	MaxY float64 `yaml:"maxy"`
	MinZ float64 `yaml:"minz"`
	MaxZ float64 `yaml:"maxz"`
}

func (e boxEntry) box() (geom.Box, error) {
	return geom.NewBox(e.MinX, e.MaxX, e.MinY, e.MaxY, e.MinZ, e.MaxZ)
}

type spawnEntry struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type platformEntry struct {
	boxEntry `yaml:",inline"`
	Type     string `yaml:"type"`
}

type zoneEntry struct {
	boxEntry `yaml:",inline"`
	Text     string `yaml:"text"`
}

type soundSourceEntry struct {
	boxEntry `yaml:",inline"`
	Path     string  `yaml:"sound_path"`
	Volume   float64 `yaml:"volume"`
}

type mapFile struct {
	Name         string             `yaml:"name"`
	Bounds       boxEntry           `yaml:"bounds"`
	Spawn        spawnEntry         `yaml:"spawn"`
	Platforms    []platformEntry    `yaml:"platforms"`
	Zones        []zoneEntry        `yaml:"zones"`
	SoundSources []soundSourceEntry `yaml:"sound_sources"`
}

// LoadMapDef loads one map definition from YAML.
func LoadMapDef(path string) (*MapDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map definition: %w", err)
	}
	var f mapFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse map definition: %w", err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("map definition %s: missing name", path)
	}

	bounds, err := f.Bounds.box()
	if err != nil {
		return nil, fmt.Errorf("map %q bounds: %w", f.Name, err)
	}
	def := &MapDef{
		Name:   f.Name,
		Bounds: bounds,
		SpawnX: f.Spawn.X,
		SpawnY: f.Spawn.Y,
		SpawnZ: f.Spawn.Z,
	}
	if !bounds.Contains(def.SpawnX, def.SpawnY, def.SpawnZ) {
		return nil, fmt.Errorf("map %q: spawn point outside bounds", f.Name)
	}

	for i, e := range f.Platforms {
		box, err := e.box()
		if err != nil {
			return nil, fmt.Errorf("map %q platform %d: %w", f.Name, i, err)
		}
		kind := e.Type
		if kind == "" {
			kind = world.PlatformKindAir
		}
		def.Platforms = append(def.Platforms, PlatformDef{Box: box, Kind: kind})
	}
	for i, e := range f.Zones {
		box, err := e.box()
		if err != nil {
			return nil, fmt.Errorf("map %q zone %d: %w", f.Name, i, err)
		}
		def.Zones = append(def.Zones, ZoneDef{Box: box, Text: e.Text})
	}
	for i, e := range f.SoundSources {
		box, err := e.box()
		if err != nil {
			return nil, fmt.Errorf("map %q sound source %d: %w", f.Name, i, err)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("map %q sound source %d: missing sound_path", f.Name, i)
		}
		volume := e.Volume
		if volume == 0 {
			volume = 1
		}
		def.SoundSources = append(def.SoundSources, SoundSourceDef{Box: box, Path: e.Path, Volume: volume})
	}
	return def, nil
}

// LoadMapDir loads every .yaml map definition in a directory, keyed by name.
func LoadMapDir(dir string) (map[string]*MapDef, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scan map directory: %w", err)
	}
	defs := make(map[string]*MapDef, len(paths))
	for _, path := range paths {
		def, err := LoadMapDef(path)
		if err != nil {
			return nil, err
		}
		if _, ok := defs[def.Name]; ok {
			return nil, fmt.Errorf("duplicate map name %q in %s", def.Name, path)
		}
		defs[def.Name] = def
	}
	return defs, nil
}

// Build instantiates the authoritative map from the definition.
func (def *MapDef) Build() *world.Map {
	m := world.NewMap(def.Bounds)
	for _, p := range def.Platforms {
		m.SpawnPlatform(p.Box, p.Kind)
	}
	for _, z := range def.Zones {
		m.SpawnZone(z.Box, z.Text)
	}
	for _, s := range def.SoundSources {
		m.SpawnSoundSource(s.Box, s.Path, s.Volume, nil)
	}
	return m
}
