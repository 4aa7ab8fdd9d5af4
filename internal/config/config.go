package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Network  NetworkConfig  `toml:"network"`
	World    WorldConfig    `toml:"world"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	BindAddress string `toml:"bind_address"`
	StaticDir   string `toml:"static_dir"` // client bundle served at /
	MapsDir     string `toml:"maps_dir"`   // YAML map definitions
	DefaultMap  string `toml:"default_map"`
}

type DatabaseConfig struct {
	DSN string `toml:"dsn"`
}

type NetworkConfig struct {
	SendQueueSize     int      `toml:"send_queue_size"`    // frames buffered per session
	WriteTimeout      Duration `toml:"write_timeout"`      // per websocket write
	MaxMessageSize    int64    `toml:"max_message_size"`   // inbound frame cap, bytes
	KeepaliveInterval Duration `toml:"keepalive_interval"` // service loop period
	SilenceThreshold  Duration `toml:"silence_threshold"`  // silent-session ping cutoff
	AuthTimeout       Duration `toml:"auth_timeout"`       // directory lookup budget
}

type WorldConfig struct {
	TickRate Duration `toml:"tick_rate"`
}

// Duration accepts TOML duration strings like "45s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type LoggingConfig struct {
	Level       string `toml:"level"` // debug, info, warn, error
	Development bool   `toml:"development"`
}

// Default returns the configuration used when a field (or the whole file) is
// absent.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress: ":3000",
			StaticDir:   "public",
			MapsDir:     "maps",
			DefaultMap:  "hub",
		},
		Network: NetworkConfig{
			SendQueueSize:     256,
			WriteTimeout:      Duration{10 * time.Second},
			MaxMessageSize:    4096,
			KeepaliveInterval: Duration{10 * time.Millisecond},
			SilenceThreshold:  Duration{20 * time.Second},
			AuthTimeout:       Duration{10 * time.Second},
		},
		World: WorldConfig{
			TickRate: Duration{50 * time.Millisecond},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.BindAddress == "" {
		return fmt.Errorf("server.bind_address must not be empty")
	}
	if c.Network.SendQueueSize <= 0 {
		return fmt.Errorf("network.send_queue_size must be positive")
	}
	if c.Network.KeepaliveInterval.Duration <= 0 {
		return fmt.Errorf("network.keepalive_interval must be positive")
	}
	if c.Network.SilenceThreshold.Duration <= 0 {
		return fmt.Errorf("network.silence_threshold must be positive")
	}
	if c.World.TickRate.Duration <= 0 {
		return fmt.Errorf("world.tick_rate must be positive")
	}
	return nil
}
