package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"BARRAGE_CONFIG",
		"BARRAGE_WS_ADDR",
		"BARRAGE_WS_RATE_RPS",
		"BARRAGE_WS_RATE_BURST",
		"BARRAGE_WS_LIVENESS_SECS",
		"BARRAGE_ROOM_WHITELIST",
		"BARRAGE_PUSH_TYPES",
		"BARRAGE_PRINT_ENABLED",
		"BARRAGE_PRINT_TYPES",
		"BARRAGE_GIFT_TTL_SECS",
		"BARRAGE_SINK_ENABLED",
		"BARRAGE_SINK_SQLITE_PATH",
		"BARRAGE_SINK_BATCH_SIZE",
		"BARRAGE_SINK_FLUSH_MAX_MS",
		"BARRAGE_AUTOREPLY_CONFIG",
		"BARRAGE_AUTOREPLY_AI",
		"BARRAGE_AUTOREPLY_WATCH",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.WS.Addr != ":8888" {
		t.Fatalf("unexpected ws addr: %q", cfg.WS.Addr)
	}
	if cfg.GiftTTL() != 10*time.Second {
		t.Fatalf("expected gift ttl 10s, got %s", cfg.GiftTTL())
	}
	if cfg.LivenessInterval() != 0 {
		t.Fatalf("liveness should default off, got %s", cfg.LivenessInterval())
	}
	if !cfg.Print.Enabled {
		t.Fatalf("console print should default on")
	}
	if cfg.Sink.Enabled {
		t.Fatalf("sink should default off")
	}
	if cfg.Sink.SQLitePath != "barrages.db" {
		t.Fatalf("unexpected sqlite path: %q", cfg.Sink.SQLitePath)
	}
	if cfg.Batch() != 1 || cfg.FlushInterval() != 0 {
		t.Fatalf("unexpected sink batching: batch=%d flush=%s", cfg.Batch(), cfg.FlushInterval())
	}
	if cfg.AutoReply.ConfigPath != "config/autoreply.json" {
		t.Fatalf("unexpected autoreply path: %q", cfg.AutoReply.ConfigPath)
	}
	if len(cfg.Rooms.Whitelist) != 0 || len(cfg.Push.Types) != 0 {
		t.Fatalf("filters should default empty")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BARRAGE_WS_ADDR", ":9000")
	t.Setenv("BARRAGE_WS_RATE_RPS", "5")
	t.Setenv("BARRAGE_WS_RATE_BURST", "10")
	t.Setenv("BARRAGE_WS_LIVENESS_SECS", "30")
	t.Setenv("BARRAGE_ROOM_WHITELIST", "123, 456;789")
	t.Setenv("BARRAGE_PUSH_TYPES", "1,5")
	t.Setenv("BARRAGE_PRINT_ENABLED", "false")
	t.Setenv("BARRAGE_GIFT_TTL_SECS", "20")
	t.Setenv("BARRAGE_SINK_ENABLED", "true")
	t.Setenv("BARRAGE_SINK_SQLITE_PATH", "/data/barrages.db")
	t.Setenv("BARRAGE_SINK_BATCH_SIZE", "25")
	t.Setenv("BARRAGE_SINK_FLUSH_MAX_MS", "250")
	t.Setenv("BARRAGE_AUTOREPLY_AI", "true")

	cfg := Load()
	if cfg.WS.Addr != ":9000" {
		t.Fatalf("ws addr: %q", cfg.WS.Addr)
	}
	if cfg.WS.RateRPS != 5 || cfg.WS.RateBurst != 10 {
		t.Fatalf("rate: %d/%d", cfg.WS.RateRPS, cfg.WS.RateBurst)
	}
	if cfg.LivenessInterval() != 30*time.Second {
		t.Fatalf("liveness: %s", cfg.LivenessInterval())
	}
	want := []int64{123, 456, 789}
	if len(cfg.Rooms.Whitelist) != len(want) {
		t.Fatalf("whitelist: %v", cfg.Rooms.Whitelist)
	}
	for i, id := range want {
		if cfg.Rooms.Whitelist[i] != id {
			t.Fatalf("whitelist: %v, want %v", cfg.Rooms.Whitelist, want)
		}
	}
	if len(cfg.Push.Types) != 2 || cfg.Push.Types[0] != 1 || cfg.Push.Types[1] != 5 {
		t.Fatalf("push types: %v", cfg.Push.Types)
	}
	if cfg.Print.Enabled {
		t.Fatalf("print should be off")
	}
	if cfg.GiftTTL() != 20*time.Second {
		t.Fatalf("gift ttl: %s", cfg.GiftTTL())
	}
	if !cfg.Sink.Enabled || cfg.Sink.SQLitePath != "/data/barrages.db" {
		t.Fatalf("sink: %+v", cfg.Sink)
	}
	if cfg.Batch() != 25 || cfg.FlushInterval() != 250*time.Millisecond {
		t.Fatalf("sink batching: batch=%d flush=%s", cfg.Batch(), cfg.FlushInterval())
	}
	if !cfg.AutoReply.EnableAIMatching {
		t.Fatalf("ai matching should be on")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "barrage.yaml")
	data := []byte(`ws:
  addr: ":7777"
rooms:
  whitelist: [42]
gift:
  ttl_secs: 15
autoreply:
  enable_ai_matching: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("BARRAGE_CONFIG", path)

	cfg := Load()
	if cfg.WS.Addr != ":7777" {
		t.Fatalf("ws addr: %q", cfg.WS.Addr)
	}
	if len(cfg.Rooms.Whitelist) != 1 || cfg.Rooms.Whitelist[0] != 42 {
		t.Fatalf("whitelist: %v", cfg.Rooms.Whitelist)
	}
	if cfg.GiftTTL() != 15*time.Second {
		t.Fatalf("gift ttl: %s", cfg.GiftTTL())
	}
	if !cfg.AutoReply.EnableAIMatching {
		t.Fatalf("ai matching should be on")
	}
}

func TestEnvBeatsYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "barrage.yaml")
	if err := os.WriteFile(path, []byte("ws:\n  addr: \":7777\"\n"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("BARRAGE_CONFIG", path)
	t.Setenv("BARRAGE_WS_ADDR", ":6666")

	cfg := Load()
	if cfg.WS.Addr != ":6666" {
		t.Fatalf("env should win over yaml, got %q", cfg.WS.Addr)
	}
}

func TestListParsingIgnoresJunk(t *testing.T) {
	clearEnv(t)
	t.Setenv("BARRAGE_ROOM_WHITELIST", "abc, 11, , xyz")
	t.Setenv("BARRAGE_PUSH_TYPES", "nope")

	cfg := Load()
	if len(cfg.Rooms.Whitelist) != 1 || cfg.Rooms.Whitelist[0] != 11 {
		t.Fatalf("whitelist: %v", cfg.Rooms.Whitelist)
	}
	if cfg.Push.Types != nil {
		t.Fatalf("push types: %v", cfg.Push.Types)
	}
}
