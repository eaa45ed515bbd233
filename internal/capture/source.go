package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// Source is the boundary to the upstream capture component. The hub never
// parses raw protocol bytes itself; it consumes typed events from Events()
// and drives the proxy lifecycle through the remaining methods.
type Source interface {
	// Events delivers the raw event stream. The channel is closed when the
	// source stops.
	Events() <-chan Event
	// Start begins delivery. It returns once delivery is running; delivery
	// stops when ctx is cancelled or the underlying feed ends.
	Start(ctx context.Context) error
	// SetProxyEnabled toggles the capture component's system proxy.
	SetProxyEnabled(enabled bool) error
	// Close releases the source and closes the event channel.
	Close() error
}

// JSONSource reads newline-delimited JSON events from a reader, typically
// stdin fed by the external capture process. Lines that do not decode are
// logged and skipped.
type JSONSource struct {
	r      io.Reader
	events chan Event

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
}

func NewJSONSource(r io.Reader) *JSONSource {
	return &JSONSource{
		r:      r,
		events: make(chan Event, 256),
	}
}

func (s *JSONSource) Events() <-chan Event { return s.events }

func (s *JSONSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

func (s *JSONSource) run(ctx context.Context) {
	defer close(s.events)

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			slog.Warn("capture: skipping undecodable event", "err", err)
			continue
		}
		if ev.Kind == "" {
			slog.Warn("capture: skipping event without kind")
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("capture: event feed read failed", "err", err)
	}
}

// SetProxyEnabled is accepted but has no effect for a piped feed; the
// external capture process owns the proxy.
func (s *JSONSource) SetProxyEnabled(enabled bool) error {
	slog.Info("capture: proxy toggle ignored for piped feed", "enable", enabled)
	return nil
}

func (s *JSONSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	} else {
		close(s.events)
	}
	return nil
}

// ScriptSource is an in-memory Source used by tests and the feed simulator.
type ScriptSource struct {
	events chan Event

	mu           sync.Mutex
	closed       bool
	proxyEnabled bool
}

func NewScriptSource(buffer int) *ScriptSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &ScriptSource{events: make(chan Event, buffer)}
}

func (s *ScriptSource) Events() <-chan Event { return s.events }

func (s *ScriptSource) Start(context.Context) error { return nil }

// Emit queues one event; it reports false when the source is closed.
func (s *ScriptSource) Emit(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events <- ev
	return true
}

func (s *ScriptSource) SetProxyEnabled(enabled bool) error {
	s.mu.Lock()
	s.proxyEnabled = enabled
	s.mu.Unlock()
	return nil
}

func (s *ScriptSource) ProxyEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proxyEnabled
}

func (s *ScriptSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}
