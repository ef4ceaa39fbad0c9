package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "ROOM_WINDOW", "CHUNK_SIZE", "SERVER_URL", "STUN_SERVER", "TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.RoomWindow != DefaultRoomWindow {
		t.Errorf("RoomWindow = %v, want %v", cfg.RoomWindow, DefaultRoomWindow)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, DefaultChunkSize)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q, want %q", cfg.ServerURL, DefaultServerURL)
	}
	if cfg.STUNServer != DefaultSTUN {
		t.Errorf("STUNServer = %q, want %q", cfg.STUNServer, DefaultSTUN)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9100")
	t.Setenv("ROOM_WINDOW", "5m")
	t.Setenv("CHUNK_SIZE", "65536")
	t.Setenv("SERVER_URL", "ws://relay.example.com/ws")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Port)
	}
	if cfg.RoomWindow != 5*time.Minute {
		t.Errorf("RoomWindow = %v, want 5m", cfg.RoomWindow)
	}
	if cfg.ChunkSize != 65536 {
		t.Errorf("ChunkSize = %d, want 65536", cfg.ChunkSize)
	}
	if cfg.ServerURL != "ws://relay.example.com/ws" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
}

func TestLoadFlagsBeatEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9100")
	t.Setenv("ROOM_WINDOW", "5m")

	cfg, err := Load(Options{Port: 7777, RoomWindow: time.Minute})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 7777 {
		t.Errorf("Port = %d, flags must beat env", cfg.Port)
	}
	if cfg.RoomWindow != time.Minute {
		t.Errorf("RoomWindow = %v, flags must beat env", cfg.RoomWindow)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(Options{}); err == nil {
		t.Fatal("expected an error for a malformed PORT")
	}
}

func TestLoadInvalidRoomWindow(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROOM_WINDOW", "tomorrow")

	if _, err := Load(Options{}); err == nil {
		t.Fatal("expected an error for a malformed ROOM_WINDOW")
	}
}

func TestTURNServers(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetTURNServers(); got != nil {
		t.Errorf("unset TURN should yield nil, got %v", got)
	}

	cfg.TURNServer = "turn:turn.example.com"
	urls := cfg.GetTURNServers()
	if len(urls) != 2 {
		t.Fatalf("expected udp and tcp variants, got %v", urls)
	}
}
