package autoreply

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// fileConfig is the on-disk shape. Field names are a compatibility
// contract with existing config files.
type fileConfig struct {
	Rules            map[string][]string `json:"Rules"`
	EnableAIMatching bool                `json:"EnableAIMatching"`
}

// load reads the config file. Absence is normal; corruption logs and keeps
// the safe defaults. Neither surfaces to the caller.
func (e *Engine) load() {
	data, err := os.ReadFile(e.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logLoadFailure(e.path, err)
		}
		return
	}

	var cfg fileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		logLoadFailure(e.path, err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = make(map[string][]string)
	e.order = nil
	for keyword, replies := range cfg.Rules {
		if keyword == "" {
			continue
		}
		e.order = append(e.order, keyword)
		e.rules[keyword] = dedupeReplies(replies)
	}
	sort.Strings(e.order)
	e.aiMatching = cfg.EnableAIMatching
}

// Reload re-reads the config file, replacing the in-memory table.
func (e *Engine) Reload() {
	e.load()
}

// Save writes the current table and flag. The config directory is created
// on first write. On failure the error is logged and returned; the on-disk
// state is left as it was.
func (e *Engine) Save() error {
	e.mu.Lock()
	cfg := fileConfig{
		Rules:            make(map[string][]string, len(e.rules)),
		EnableAIMatching: e.aiMatching,
	}
	for k, v := range e.rules {
		cfg.Rules[k] = append([]string(nil), v...)
	}
	e.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		slog.Error("autoreply: config encode failed", "err", err)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		slog.Error("autoreply: config dir create failed", "path", e.path, "err", err)
		return err
	}
	if err := os.WriteFile(e.path, data, 0o644); err != nil {
		slog.Error("autoreply: config write failed", "path", e.path, "err", err)
		return err
	}
	return nil
}

func dedupeReplies(replies []string) []string {
	seen := make(map[string]struct{}, len(replies))
	out := make([]string, 0, len(replies))
	for _, r := range replies {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
