// Package hub owns the WebSocket fan-out surface: the session registry,
// pack broadcast, client commands, liveness, and coordinated shutdown.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/you/barrage-hub/internal/core"
)

// Conn is the send side of one subscriber. The production implementation
// wraps a WebSocket; tests substitute fakes.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// CaptureControl is the slice of the capture source the hub drives in
// response to client commands and shutdown.
type CaptureControl interface {
	SetProxyEnabled(enabled bool) error
	Close() error
}

// Options configures the hub. A zero LivenessInterval disables the stale
// session sweep. An empty PushTypes slice broadcasts every type.
type Options struct {
	Addr             string
	PushTypes        []core.MsgType
	LivenessInterval time.Duration
	RateRPS          int
	RateBurst        int
}

type session struct {
	conn     Conn
	lastPing time.Time
}

// Hub fans packs out to connected subscribers and dispatches their
// commands. One session per client address; a reconnect from the same
// address replaces the old session.
type Hub struct {
	opts      Options
	capture   CaptureControl
	display   func(enabled bool)
	metrics   *Metrics
	limiter   *ipRateLimiter
	pushTypes map[core.MsgType]struct{}

	mu       sync.Mutex
	sessions map[string]*session

	tasksCtx  context.Context
	tasksStop context.CancelFunc
	tasks     sync.WaitGroup

	srvMu sync.Mutex
	srv   *http.Server

	now func() time.Time

	closeOnce sync.Once
	closedCh  chan struct{}
}

// New builds a hub. display receives DisplayConsole toggles; pass nil to
// ignore them. capture may be nil when there is nothing to drive.
func New(opts Options, capture CaptureControl, display func(bool)) *Hub {
	h := &Hub{
		opts:     opts,
		capture:  capture,
		display:  display,
		metrics:  newMetrics(),
		limiter:  newIPRateLimiter(opts.RateRPS, opts.RateBurst),
		sessions: make(map[string]*session),
		now:      time.Now,
		closedCh: make(chan struct{}),
	}
	if len(opts.PushTypes) > 0 {
		h.pushTypes = make(map[core.MsgType]struct{}, len(opts.PushTypes))
		for _, t := range opts.PushTypes {
			h.pushTypes[t] = struct{}{}
		}
	}
	h.tasksCtx, h.tasksStop = context.WithCancel(context.Background())
	if opts.LivenessInterval > 0 {
		h.RunTask(h.livenessLoop)
	}
	return h
}

// Metrics exposes the hub's collectors so the pipeline can record
// counters on the same registry.
func (h *Hub) Metrics() *Metrics { return h.metrics }

// Start binds the listen address and serves the WebSocket endpoint and
// /metrics until Shutdown. The bind error is returned synchronously;
// serve errors after that are logged.
func (h *Hub) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleWS)
	mux.Handle("/metrics", h.metrics.Handler())

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux}
	h.srvMu.Lock()
	h.srv = srv
	h.srvMu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("hub: serve", "err", err)
		}
	}()
	slog.Info("hub: listening", "addr", ln.Addr().String())
	return nil
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	ip := remoteIP(r)
	if !h.limiter.Allow(ip) {
		h.metrics.IncRateLimited()
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("hub: accept", "remote", r.RemoteAddr, "err", err)
		return
	}
	c.SetReadLimit(64 << 10)

	ws := &wsConn{c: c}
	h.OnConnect(r.RemoteAddr, ws)
	go h.readLoop(r.RemoteAddr, ws)
}

func (h *Hub) readLoop(addr string, ws *wsConn) {
	ctx := context.Background()
	for {
		_, data, err := ws.c.Read(ctx)
		if err != nil {
			h.OnClose(addr)
			return
		}
		if string(data) == "ping" {
			h.OnPing(addr)
			if err := ws.Send([]byte("pong")); err != nil {
				h.OnClose(addr)
				return
			}
			continue
		}
		h.OnCommand(data)
	}
}

// OnConnect registers a session for addr. An existing session for the
// same addr is closed and replaced, never duplicated.
func (h *Hub) OnConnect(addr string, conn Conn) {
	h.mu.Lock()
	old := h.sessions[addr]
	h.sessions[addr] = &session{conn: conn, lastPing: h.now()}
	n := len(h.sessions)
	h.mu.Unlock()

	if old != nil {
		_ = old.conn.Close()
	}
	h.metrics.SetSessions(n)
	slog.Info("hub: client connected", "remote", addr, "sessions", n)
}

// OnClose drops the session for addr, if still registered.
func (h *Hub) OnClose(addr string) {
	h.mu.Lock()
	s, ok := h.sessions[addr]
	if ok {
		delete(h.sessions, addr)
	}
	n := len(h.sessions)
	h.mu.Unlock()

	if !ok {
		return
	}
	_ = s.conn.Close()
	h.metrics.SetSessions(n)
	slog.Info("hub: client disconnected", "remote", addr, "sessions", n)
}

// OnPing refreshes the liveness stamp for addr.
func (h *Hub) OnPing(addr string) {
	h.mu.Lock()
	if s, ok := h.sessions[addr]; ok {
		s.lastPing = h.now()
	}
	h.mu.Unlock()
}

// command is the client command envelope.
type command struct {
	Cmd  string          `json:"Cmd"`
	Data json.RawMessage `json:"Data"`
}

// OnCommand dispatches one client command. Malformed payloads and unknown
// commands are ignored; a command from any client applies process-wide.
func (h *Hub) OnCommand(raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		slog.Debug("hub: bad command payload", "err", err)
		return
	}
	switch cmd.Cmd {
	case "Close":
		slog.Info("hub: close requested by client")
		go h.Shutdown()
	case "EnableProxy":
		var enabled bool
		if err := json.Unmarshal(cmd.Data, &enabled); err != nil {
			slog.Debug("hub: bad EnableProxy data", "err", err)
			return
		}
		if h.capture == nil {
			return
		}
		if err := h.capture.SetProxyEnabled(enabled); err != nil {
			slog.Error("hub: proxy toggle", "enabled", enabled, "err", err)
			return
		}
		slog.Info("hub: proxy toggled", "enabled", enabled)
	case "DisplayConsole":
		var enabled bool
		if err := json.Unmarshal(cmd.Data, &enabled); err != nil {
			slog.Debug("hub: bad DisplayConsole data", "err", err)
			return
		}
		if h.display != nil {
			h.display(enabled)
		}
	default:
		slog.Debug("hub: unknown command", "cmd", cmd.Cmd)
	}
}

// Broadcast sends the pack to every session. Types outside the push
// allow-list are dropped before encoding. A failed send removes only that
// session; the rest still receive the pack.
func (h *Hub) Broadcast(p core.Pack) {
	if h.pushTypes != nil {
		if _, ok := h.pushTypes[p.Type]; !ok {
			h.metrics.IncFilteredDrops()
			return
		}
	}

	data, err := json.Marshal(p)
	if err != nil {
		slog.Error("hub: pack encode", "type", p.Type, "err", err)
		return
	}
	h.metrics.IncBroadcasts()

	h.mu.Lock()
	targets := make(map[string]Conn, len(h.sessions))
	for addr, s := range h.sessions {
		targets[addr] = s.conn
	}
	h.mu.Unlock()

	var dead []string
	for addr, conn := range targets {
		if err := conn.Send(data); err != nil {
			h.metrics.IncSendFailures()
			slog.Warn("hub: send failed, dropping client", "remote", addr, "err", err)
			dead = append(dead, addr)
			continue
		}
		h.metrics.IncMessagesSent()
	}
	for _, addr := range dead {
		h.OnClose(addr)
	}
}

// SessionCount reports the number of registered sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// RunTask runs fn on the hub's task context. Shutdown cancels the context
// and waits for all tasks to return.
func (h *Hub) RunTask(fn func(ctx context.Context)) {
	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()
		fn(h.tasksCtx)
	}()
}

// livenessLoop evicts sessions that have not pinged within three
// intervals.
func (h *Hub) livenessLoop(ctx context.Context) {
	ticker := time.NewTicker(h.opts.LivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweepStale()
		}
	}
}

func (h *Hub) sweepStale() {
	cutoff := h.now().Add(-3 * h.opts.LivenessInterval)

	h.mu.Lock()
	var stale []string
	for addr, s := range h.sessions {
		if s.lastPing.Before(cutoff) {
			stale = append(stale, addr)
		}
	}
	h.mu.Unlock()

	for _, addr := range stale {
		slog.Info("hub: evicting stale client", "remote", addr)
		h.OnClose(addr)
	}
}

// Shutdown tears the hub down in order: sessions, background tasks, the
// HTTP listener, then the capture source. Safe to call more than once and
// from command dispatch.
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conns := make([]Conn, 0, len(h.sessions))
		for _, s := range h.sessions {
			conns = append(conns, s.conn)
		}
		h.sessions = make(map[string]*session)
		h.mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
		h.metrics.SetSessions(0)

		h.tasksStop()
		h.tasks.Wait()

		h.srvMu.Lock()
		srv := h.srv
		h.srvMu.Unlock()
		if srv != nil {
			_ = srv.Close()
		}

		if h.capture != nil {
			if err := h.capture.Close(); err != nil {
				slog.Error("hub: capture close", "err", err)
			}
		}

		close(h.closedCh)
		slog.Info("hub: shut down")
	})
}

// Closed is signalled once Shutdown has completed.
func (h *Hub) Closed() <-chan struct{} { return h.closedCh }

// wsConn adapts a WebSocket connection to Conn. Writes are serialized and
// bounded so one stuck client cannot wedge a broadcast.
type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) Send(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
