package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/you/barrage-hub/internal/autoreply"
	"github.com/you/barrage-hub/internal/capture"
	"github.com/you/barrage-hub/internal/config"
	"github.com/you/barrage-hub/internal/core"
	"github.com/you/barrage-hub/internal/giftdedup"
	"github.com/you/barrage-hub/internal/hub"
	"github.com/you/barrage-hub/internal/normalize"
	"github.com/you/barrage-hub/internal/rooms"
	"github.com/you/barrage-hub/internal/sink"
	"github.com/you/barrage-hub/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag  bool
		addr         string
		input        string
		roomList     string
		pushTypes    string
		giftTTLSecs  int
		sinkEnabled  bool
		sqlitePath   string
		replyConfig  string
		replyAI      bool
		replyWatch   bool
		rateRPS      int
		rateBurst    int
		livenessSecs int
		printConsole bool
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.StringVar(&addr, "addr", "", "WebSocket listen address (e.g., :8888)")
	flag.StringVar(&input, "input", "-", "Capture event stream path, or - for stdin")
	flag.StringVar(&roomList, "rooms", "", "Comma-separated room ID whitelist (empty allows all)")
	flag.StringVar(&pushTypes, "push-types", "", "Comma-separated message type numbers to push (empty pushes all)")
	flag.IntVar(&giftTTLSecs, "gift-ttl-secs", 0, "Combo gift dedup entry TTL in seconds")
	flag.BoolVar(&sinkEnabled, "sink", false, "Persist broadcast barrages to SQLite")
	flag.StringVar(&sqlitePath, "sqlite", "", "Path to SQLite database file")
	flag.StringVar(&replyConfig, "autoreply-config", "", "Path to the auto-reply rule file")
	flag.BoolVar(&replyAI, "autoreply-ai", false, "Enable fuzzy keyword matching")
	flag.BoolVar(&replyWatch, "autoreply-watch", false, "Reload the auto-reply rule file on change")
	flag.IntVar(&rateRPS, "rate-rps", 0, "Maximum connection attempts per second per client IP")
	flag.IntVar(&rateBurst, "rate-burst", 0, "Burst size for the connection rate limiter")
	flag.IntVar(&livenessSecs, "liveness-secs", 0, "Stale session sweep interval in seconds (0 disables)")
	flag.BoolVar(&printConsole, "print", true, "Print normalized barrages to the console")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"barragehub version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	cfg := config.Load()

	if overrides["addr"] {
		cfg.WS.Addr = strings.TrimSpace(addr)
	}
	if overrides["rooms"] {
		cfg.Rooms.Whitelist = parseInt64List(roomList)
	}
	if overrides["push-types"] {
		cfg.Push.Types = parseIntList(pushTypes)
	}
	if overrides["gift-ttl-secs"] {
		cfg.Gift.TTLSecs = giftTTLSecs
	}
	if overrides["sink"] {
		cfg.Sink.Enabled = sinkEnabled
	}
	if overrides["sqlite"] {
		cfg.Sink.SQLitePath = strings.TrimSpace(sqlitePath)
	}
	if overrides["autoreply-config"] {
		cfg.AutoReply.ConfigPath = strings.TrimSpace(replyConfig)
	}
	if overrides["autoreply-ai"] {
		cfg.AutoReply.EnableAIMatching = replyAI
	}
	if overrides["autoreply-watch"] {
		cfg.AutoReply.Watch = replyWatch
	}
	if overrides["rate-rps"] {
		cfg.WS.RateRPS = rateRPS
	}
	if overrides["rate-burst"] {
		cfg.WS.RateBurst = rateBurst
	}
	if overrides["liveness-secs"] {
		cfg.WS.LivenessSecs = livenessSecs
	}
	if overrides["print"] {
		cfg.Print.Enabled = printConsole
	}

	log.Printf("%s", cfg.SummaryJSON())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var in io.Reader = os.Stdin
	if input != "-" && input != "" {
		f, err := os.Open(input)
		if err != nil {
			log.Fatalf("barragehub: open input: %v", err)
		}
		defer f.Close()
		in = f
	}
	src := capture.NewJSONSource(in)

	roomCache := rooms.NewCache()
	gifts := giftdedup.New(cfg.GiftTTL())
	norm := normalize.New(roomCache, gifts, cfg.Rooms.Whitelist)

	engine := autoreply.New(cfg.AutoReply.ConfigPath)
	engine.SetAIMatching(cfg.AutoReply.EnableAIMatching)
	if cfg.AutoReply.Watch {
		if err := engine.Watch(ctx); err != nil {
			slog.Error("barragehub: autoreply watch", "err", err)
		}
	}

	var (
		writer   sink.Writer
		sinkDB   *sink.SQLiteSink
		buffered *sink.BufferedWriter
	)
	if cfg.Sink.Enabled {
		db, err := sink.OpenSQLite(cfg.Sink.SQLitePath)
		if err != nil {
			log.Fatalf("barragehub: open sqlite: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("barragehub: ping sqlite: %v", err)
		}
		sinkDB = db
		writer = db
		if cfg.Batch() > 1 || cfg.FlushInterval() > 0 {
			buffered = sink.NewBufferedWriter(db, sink.BufferedOptions{
				BatchSize:     cfg.Batch(),
				FlushInterval: cfg.FlushInterval(),
			})
			writer = buffered
		}
	}

	var printEnabled atomic.Bool
	printEnabled.Store(cfg.Print.Enabled)
	printTypes := make(map[core.MsgType]struct{}, len(cfg.Print.Types))
	for _, t := range cfg.Print.Types {
		printTypes[core.MsgType(t)] = struct{}{}
	}

	h := hub.New(hub.Options{
		Addr:             cfg.WS.Addr,
		PushTypes:        msgTypes(cfg.Push.Types),
		LivenessInterval: cfg.LivenessInterval(),
		RateRPS:          cfg.WS.RateRPS,
		RateBurst:        cfg.WS.RateBurst,
	}, src, func(enabled bool) {
		printEnabled.Store(enabled)
	})
	metrics := h.Metrics()
	h.RunTask(gifts.Run)

	if err := h.Start(); err != nil {
		log.Fatalf("barragehub: listen on %s: %v", cfg.WS.Addr, err)
	}
	if err := src.Start(ctx); err != nil {
		log.Fatalf("barragehub: start capture: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("barragehub: received %s, shutting down", sig)
		h.Shutdown()
	}()

	go func() {
		for ev := range src.Events() {
			metrics.IncEvents(string(ev.Kind))
			if ev.WebRoomID > 0 {
				roomCache.Put(ev.RoomID, rooms.RoomInfo{
					WebRoomID:     ev.WebRoomID,
					OwnerNickname: ev.Owner,
				})
			}

			res, ok := norm.Normalize(ev)
			if !ok {
				if ev.Kind == capture.KindGift {
					metrics.IncGiftRejects()
				}
				continue
			}

			if printEnabled.Load() && printAllowed(printTypes, res.Type) {
				log.Printf("[%s] %s", res.Type, res.Content)
			}

			h.Broadcast(res.Pack)

			if writer != nil {
				entry := sink.Entry{
					MsgID:       ev.MsgID,
					Ts:          time.Now(),
					Type:        res.Type,
					RoomID:      res.RoomID,
					WebRoomID:   res.WebRoomID,
					Content:     res.Content,
					PayloadJSON: string(res.Pack.Data),
				}
				if res.User != nil {
					entry.Username = res.User.Nickname
				}
				if err := writer.Write(entry); err != nil {
					log.Printf("barragehub: write barrage: %v", err)
				}
			}

			if res.Type == core.MsgTypeChat {
				if reply, matched := engine.Reply(res.Content); matched {
					if pack, ok := norm.ReplyPack(ev, reply); ok {
						metrics.IncAutoReplies()
						h.Broadcast(pack)
					}
				}
			}
		}
		log.Printf("barragehub: capture stream ended")
	}()

	select {
	case <-ctx.Done():
		h.Shutdown()
	case <-h.Closed():
	}
	<-h.Closed()

	if buffered != nil {
		if err := buffered.Close(); err != nil {
			log.Printf("barragehub: flush buffered sink: %v", err)
		}
	}
	if sinkDB != nil {
		if err := sinkDB.Close(); err != nil {
			log.Printf("barragehub: closing sink: %v", err)
		}
	}
	log.Printf("barragehub: shutdown complete")
}

func printAllowed(types map[core.MsgType]struct{}, t core.MsgType) bool {
	if len(types) == 0 {
		return true
	}
	_, ok := types[t]
	return ok
}

func msgTypes(nums []int) []core.MsgType {
	out := make([]core.MsgType, 0, len(nums))
	for _, n := range nums {
		out = append(out, core.MsgType(n))
	}
	return out
}

func parseIntList(raw string) []int {
	var out []int
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func parseInt64List(raw string) []int64 {
	var out []int64
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var n int64
		if _, err := fmt.Sscanf(p, "%d", &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
