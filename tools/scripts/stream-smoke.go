// Package main provides a CI-friendly smoke test for the live session stream.
//
// It validates:
//   - handshake against the push channel of an existing session
//   - at least one well-formed session snapshot arrives within the timeout
//   - the snapshot's key matches the requested session
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type snapshot struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Lobby  []string
}

func main() {
	var (
		baseURL = flag.String("url", "ws://127.0.0.1:8081", "live service base URL (ws or http scheme)")
		liveKey = flag.String("live", "", "live session key to attach to")
		token   = flag.String("token", "", "bearer token")
		count   = flag.Int("n", 1, "snapshots to wait for")
		timeout = flag.Duration("timeout", 10*time.Second, "overall timeout")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	if *liveKey == "" {
		fatalf("-live is required")
	}
	if *token == "" {
		fatalf("-token is required")
	}
	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := strings.TrimRight(*baseURL, "/") +
		"/live/v1/get/live/stream/QUERY_GET_LIVE_STREAM/" + url.PathEscape(*liveKey)

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+*token)

	conn, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		fatalf("dial %s: %v", target, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	conn.SetReadLimit(maxReadBytes)

	for i := 0; i < *count; i++ {
		_, data, err := conn.Read(ctx)
		if err != nil {
			fatalf("read snapshot %d: %v", i+1, err)
		}

		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			fatalf("snapshot %d not JSON: %v", i+1, err)
		}
		if snap.Key != *liveKey {
			fatalf("snapshot %d key=%q want=%q", i+1, snap.Key, *liveKey)
		}

		if *verbose {
			fmt.Printf("snapshot %d: key=%s status=%s lobby=%d\n", i+1, snap.Key, snap.Status, len(snap.Lobby))
		}
	}

	fmt.Printf("stream smoke OK: %d snapshot(s) from %s\n", *count, *liveKey)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "stream-smoke: "+format+"\n", args...)
	os.Exit(1)
}
