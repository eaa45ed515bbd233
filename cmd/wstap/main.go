// wstap subscribes to a running barragehub, prints every pack it receives,
// and can issue hub commands. Useful for eyeballing a live stream and for
// poking at a deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"nhooyr.io/websocket"

	"github.com/you/barrage-hub/internal/core"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		url       string
		pingSecs  int
		closeHub  bool
		proxy     string
		display   string
		rawOutput bool
	)

	flag.StringVar(&url, "url", "ws://127.0.0.1:8888/", "Hub WebSocket URL")
	flag.IntVar(&pingSecs, "ping-secs", 10, "Liveness ping interval in seconds (0 disables)")
	flag.BoolVar(&closeHub, "close", false, "Ask the hub to shut down, then exit")
	flag.StringVar(&proxy, "proxy", "", "Toggle capture proxying: true or false")
	flag.StringVar(&display, "display", "", "Toggle hub console printing: true or false")
	flag.BoolVar(&rawOutput, "raw", false, "Print raw pack JSON instead of a summary line")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	dialCancel()
	if err != nil {
		log.Fatalf("wstap: dial %s: %v", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 20)
	log.Printf("wstap: connected to %s", url)

	if proxy != "" {
		sendCommand(ctx, conn, "EnableProxy", mustBool("proxy", proxy))
	}
	if display != "" {
		sendCommand(ctx, conn, "DisplayConsole", mustBool("display", display))
	}
	if closeHub {
		sendCommand(ctx, conn, "Close", nil)
		log.Printf("wstap: close requested")
		return
	}

	if pingSecs > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(pingSecs) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
					err := conn.Write(wctx, websocket.MessageText, []byte("ping"))
					wcancel()
					if err != nil {
						cancel()
						return
					}
				}
			}
		}()
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("wstap: read: %v", err)
			}
			return
		}
		if string(data) == "pong" {
			continue
		}
		printPack(data, rawOutput)
	}
}

func printPack(data []byte, raw bool) {
	if raw {
		fmt.Println(string(data))
		return
	}
	var p core.Pack
	if err := json.Unmarshal(data, &p); err != nil {
		fmt.Println(string(data))
		return
	}
	var msg core.Msg
	_ = json.Unmarshal(p.Data, &msg)
	who := ""
	if msg.User != nil {
		who = msg.User.Nickname + " "
	}
	fmt.Printf("[%s] 房间:%d %s%s\n", p.Type, msg.WebRoomID, who, msg.Content)
}

func sendCommand(ctx context.Context, conn *websocket.Conn, cmd string, data any) {
	payload, err := json.Marshal(struct {
		Cmd  string `json:"Cmd"`
		Data any    `json:"Data,omitempty"`
	}{Cmd: cmd, Data: data})
	if err != nil {
		log.Fatalf("wstap: encode %s: %v", cmd, err)
	}
	wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
	defer wcancel()
	if err := conn.Write(wctx, websocket.MessageText, payload); err != nil {
		log.Fatalf("wstap: send %s: %v", cmd, err)
	}
}

func mustBool(name, raw string) bool {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Fatalf("wstap: -%s wants true or false, got %q", name, raw)
	}
	return v
}
