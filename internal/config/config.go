// Package config assembles runtime settings for the hub. Defaults are
// overlaid by an optional YAML file, then by BARRAGE_* environment
// variables, so containers can tweak a single knob without a config file.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	WS        WSConfig        `yaml:"ws"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	Push      PushConfig      `yaml:"push"`
	Print     PrintConfig     `yaml:"print"`
	Gift      GiftConfig      `yaml:"gift"`
	Sink      SinkConfig      `yaml:"sink"`
	AutoReply AutoReplyConfig `yaml:"autoreply"`
}

type WSConfig struct {
	Addr         string `yaml:"addr"`
	RateRPS      int    `yaml:"rate_rps"`
	RateBurst    int    `yaml:"rate_burst"`
	LivenessSecs int    `yaml:"liveness_secs"`
}

type RoomsConfig struct {
	Whitelist []int64 `yaml:"whitelist"`
}

type PushConfig struct {
	Types []int `yaml:"types"`
}

type PrintConfig struct {
	Enabled bool  `yaml:"enabled"`
	Types   []int `yaml:"types"`
}

type GiftConfig struct {
	TTLSecs int `yaml:"ttl_secs"`
}

type SinkConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SQLitePath string `yaml:"sqlite_path"`
	BatchSize  int    `yaml:"batch_size"`
	FlushMaxMS int    `yaml:"flush_max_ms"`
}

type AutoReplyConfig struct {
	ConfigPath       string `yaml:"config_path"`
	EnableAIMatching bool   `yaml:"enable_ai_matching"`
	Watch            bool   `yaml:"watch"`
}

const (
	defaultAddr          = ":8888"
	defaultGiftTTLSecs   = 10
	defaultBatchSize     = 1
	defaultFlushMS       = 0
	defaultSQLitePath    = "barrages.db"
	defaultAutoReplyPath = "config/autoreply.json"
)

// Load builds the config: defaults, then the YAML file named by
// BARRAGE_CONFIG (if any), then environment variables on top.
func Load() Config {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("BARRAGE_CONFIG")); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(data, &cfg)
		}
	}

	applyEnv(&cfg)
	return cfg
}

func defaults() Config {
	return Config{
		WS:        WSConfig{Addr: defaultAddr},
		Print:     PrintConfig{Enabled: true},
		Gift:      GiftConfig{TTLSecs: defaultGiftTTLSecs},
		Sink:      SinkConfig{SQLitePath: defaultSQLitePath, BatchSize: defaultBatchSize, FlushMaxMS: defaultFlushMS},
		AutoReply: AutoReplyConfig{ConfigPath: defaultAutoReplyPath},
	}
}

func applyEnv(cfg *Config) {
	if addr := strings.TrimSpace(os.Getenv("BARRAGE_WS_ADDR")); addr != "" {
		cfg.WS.Addr = addr
	}
	cfg.WS.RateRPS = readInt("BARRAGE_WS_RATE_RPS", cfg.WS.RateRPS)
	cfg.WS.RateBurst = readInt("BARRAGE_WS_RATE_BURST", cfg.WS.RateBurst)
	cfg.WS.LivenessSecs = readInt("BARRAGE_WS_LIVENESS_SECS", cfg.WS.LivenessSecs)

	if raw, ok := os.LookupEnv("BARRAGE_ROOM_WHITELIST"); ok {
		cfg.Rooms.Whitelist = parseInt64List(raw)
	}
	if raw, ok := os.LookupEnv("BARRAGE_PUSH_TYPES"); ok {
		cfg.Push.Types = parseIntList(raw)
	}
	cfg.Print.Enabled = readBool("BARRAGE_PRINT_ENABLED", cfg.Print.Enabled)
	if raw, ok := os.LookupEnv("BARRAGE_PRINT_TYPES"); ok {
		cfg.Print.Types = parseIntList(raw)
	}

	cfg.Gift.TTLSecs = readInt("BARRAGE_GIFT_TTL_SECS", cfg.Gift.TTLSecs)

	cfg.Sink.Enabled = readBool("BARRAGE_SINK_ENABLED", cfg.Sink.Enabled)
	if path := strings.TrimSpace(os.Getenv("BARRAGE_SINK_SQLITE_PATH")); path != "" {
		cfg.Sink.SQLitePath = path
	}
	cfg.Sink.BatchSize = readInt("BARRAGE_SINK_BATCH_SIZE", cfg.Sink.BatchSize)
	cfg.Sink.FlushMaxMS = readInt("BARRAGE_SINK_FLUSH_MAX_MS", cfg.Sink.FlushMaxMS)

	if path := strings.TrimSpace(os.Getenv("BARRAGE_AUTOREPLY_CONFIG")); path != "" {
		cfg.AutoReply.ConfigPath = path
	}
	cfg.AutoReply.EnableAIMatching = readBool("BARRAGE_AUTOREPLY_AI", cfg.AutoReply.EnableAIMatching)
	cfg.AutoReply.Watch = readBool("BARRAGE_AUTOREPLY_WATCH", cfg.AutoReply.Watch)
}

func (c Config) GiftTTL() time.Duration {
	if c.Gift.TTLSecs <= 0 {
		return time.Duration(defaultGiftTTLSecs) * time.Second
	}
	return time.Duration(c.Gift.TTLSecs) * time.Second
}

func (c Config) LivenessInterval() time.Duration {
	if c.WS.LivenessSecs <= 0 {
		return 0
	}
	return time.Duration(c.WS.LivenessSecs) * time.Second
}

func (c Config) FlushInterval() time.Duration {
	if c.Sink.FlushMaxMS <= 0 {
		return 0
	}
	return time.Duration(c.Sink.FlushMaxMS) * time.Millisecond
}

func (c Config) Batch() int {
	if c.Sink.BatchSize <= 0 {
		return defaultBatchSize
	}
	return c.Sink.BatchSize
}

// SummaryJSON is the one-line startup log payload.
func (c Config) SummaryJSON() []byte {
	summary := struct {
		Config Config `json:"config_summary"`
	}{Config: c}
	data, _ := json.Marshal(summary)
	return data
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

func readBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n':
			return true
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseIntList(raw string) []int {
	parts := splitList(raw)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseInt64List(raw string) []int64 {
	parts := splitList(raw)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
