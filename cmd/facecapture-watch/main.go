// facecapture-watch: follows a running face capture session from another terminal
//
// Prints every tracking state change from the dashboard websocket, then the
// session result once the session ends.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-facecapture/internal/httpc"
)

var (
	addr   = flag.String("addr", "localhost:8080", "Dashboard address")
	cancel = flag.Bool("cancel", false, "Cancel the running session and exit")
)

// finishedState is sent by the dashboard after the last tracking result
const finishedState = "finished"

// trackingMessage is the part of a tracking result this tool prints
type trackingMessage struct {
	State            string   `json:"state"`
	RequestedBearing string   `json:"requestedBearing"`
	SerialNumber     *uint64  `json:"serialNumber"`
	Time             *float64 `json:"time"`
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	base := "http://" + *addr
	if *cancel {
		var out map[string]any
		if _, err := httpc.DoJSON(ctx, http.MethodPost, base+"/api/cancel", &out); err != nil {
			fmt.Fprintf(os.Stderr, "❌ cancel: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("👋 Session %v: %v\n", out["id"], out["status"])
		return
	}

	if err := watch(ctx, url.URL{Scheme: "ws", Host: *addr, Path: "/ws/tracking"}); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
	}
	if err := printResult(ctx, base+"/api/result"); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// watch prints state changes until the server closes the stream
func watch(ctx context.Context, u url.URL) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u.String(), err)
	}
	defer conn.Close()
	fmt.Printf("🔌 Connected to %s\n", u.String())

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	var last string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		var msg trackingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.State == last {
			continue
		}
		if msg.State == finishedState {
			return nil
		}
		last = msg.State
		if msg.SerialNumber != nil && msg.Time != nil {
			fmt.Printf("%7.2fs  #%-5d %-15s bearing=%s\n", *msg.Time, *msg.SerialNumber, msg.State, msg.RequestedBearing)
		} else {
			fmt.Printf("         %-21s bearing=%s\n", msg.State, msg.RequestedBearing)
		}
	}
}

// printResult polls the result endpoint until the session has finished
func printResult(ctx context.Context, endpoint string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		var res json.RawMessage
		code, err := httpc.DoJSON(ctx, http.MethodGet, endpoint, &res)
		if err != nil {
			return err
		}
		if code != http.StatusAccepted {
			var pretty map[string]any
			if err := json.Unmarshal(res, &pretty); err != nil {
				return err
			}
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
