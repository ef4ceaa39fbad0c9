package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultPort       = 8080
	DefaultRoomWindow = 10 * time.Minute
	DefaultChunkSize  = 1 * 1024 * 1024 // 1 MiB
	DefaultServerURL  = "ws://localhost:8080/ws"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
)

// Config holds application configuration for both the coordinator and the
// CLI client.
type Config struct {
	// Port the coordinator listens on.
	Port int

	// RoomWindow is the room inactivity window; idle rooms are deleted
	// after this long without a membership or relay event.
	RoomWindow time.Duration

	// ChunkSize used by the transfer engine when splitting files.
	ChunkSize int

	// ServerURL is the coordinator websocket endpoint the CLI dials.
	ServerURL string

	// ICE servers for the peer-to-peer channel.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options carries CLI flag overrides into Load.
type Options struct {
	Port       int
	RoomWindow time.Duration
	ChunkSize  int
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		Port:       opts.Port,
		RoomWindow: opts.RoomWindow,
		ChunkSize:  opts.ChunkSize,
		ServerURL:  opts.ServerURL,
		STUNServer: opts.STUNServer,
		TURNServer: opts.TURNServer,
		TURNUser:   opts.TURNUser,
		TURNPass:   opts.TURNPass,
	}

	if cfg.Port == 0 {
		if v := os.Getenv("PORT"); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
			}
			cfg.Port = p
		}
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	if cfg.RoomWindow == 0 {
		if v := os.Getenv("ROOM_WINDOW"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid ROOM_WINDOW %q: %w", v, err)
			}
			cfg.RoomWindow = d
		}
	}
	if cfg.RoomWindow == 0 {
		cfg.RoomWindow = DefaultRoomWindow
	}

	if cfg.ChunkSize == 0 {
		if v := os.Getenv("CHUNK_SIZE"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid CHUNK_SIZE %q: %w", v, err)
			}
			cfg.ChunkSize = n
		}
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = os.Getenv("SERVER_URL")
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}

	if cfg.STUNServer == "" {
		cfg.STUNServer = os.Getenv("STUN_SERVER")
	}
	if cfg.STUNServer == "" {
		cfg.STUNServer = DefaultSTUN
	}

	if cfg.TURNServer == "" {
		cfg.TURNServer = os.Getenv("TURN_SERVER")
	}
	if cfg.TURNUser == "" {
		cfg.TURNUser = os.Getenv("TURN_USERNAME")
	}
	if cfg.TURNPass == "" {
		cfg.TURNPass = os.Getenv("TURN_PASSWORD")
	}

	return cfg, nil
}

// Addr returns the coordinator listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
