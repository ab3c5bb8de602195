// camview-watch - follows a running camview over its websocket API
// Prints status changes and optionally stores the JPEG preview stream.
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-camview/internal/httpc"
)

// frameLayout names stored preview frames, matching the server's snapshot names.
const frameLayout = "2006-01-02-15:04:05"

// status is the subset of the server status this tool prints.
type status struct {
	Paused      bool   `json:"paused"`
	Source      string `json:"source"`
	Reads       uint64 `json:"reads"`
	FailedReads uint64 `json:"failed_reads"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Clients     int    `json:"clients"`
}

type pauseRequest struct {
	Paused *bool `json:"paused,omitempty"`
}

type snapshot struct {
	Output string `json:"output"`
	Edges  string `json:"edges"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func main() {
	addr := flag.String("addr", "localhost:8090", "camview server host:port")
	framesDir := flag.String("frames", "", "Directory to store preview frames (disabled when empty)")
	every := flag.Int("every", 10, "Store one preview frame out of every N")
	command := flag.String("cmd", "", "Send one command and exit: pause, resume, toggle, snapshot")
	flag.Parse()

	if *command != "" {
		if err := run(*addr, *command); err != nil {
			fmt.Printf("❌ %s: %v\n", *command, err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("👀 camview-watch")
	fmt.Println("================")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := dial(*addr, "/ws/status")
	if err != nil {
		fmt.Printf("❌ Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("✅ Connected to %s\n", *addr)

	if *framesDir != "" {
		frames, err := dial(*addr, "/ws/frames")
		if err != nil {
			fmt.Printf("❌ Failed to open frame stream: %v\n", err)
			os.Exit(1)
		}
		defer frames.Close()
		go saveFrames(frames, *framesDir, max(*every, 1))
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var last status
	for {
		var st status
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				fmt.Printf("❌ Connection lost: %v\n", err)
			}
			return
		}
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		if st.Paused != last.Paused || st.FailedReads != last.FailedReads || st.Clients != last.Clients {
			printStatus(st)
		}
		last = st
	}
}

// run sends a single REST command to the server.
func run(addr, command string) error {
	ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
	defer cancel()

	base := "http://" + addr + "/api"
	switch command {
	case "pause", "resume", "toggle":
		var req pauseRequest
		if command != "toggle" {
			paused := command == "pause"
			req.Paused = &paused
		}
		var st status
		if err := httpc.DoJSON(ctx, http.MethodPost, base+"/pause", req, &st); err != nil {
			return err
		}
		printStatus(st)
	case "snapshot":
		var snap snapshot
		if err := httpc.DoJSON(ctx, http.MethodPost, base+"/snapshot", nil, &snap); err != nil {
			return err
		}
		fmt.Printf("📸 %s, %s (%dx%d)\n", snap.Output, snap.Edges, snap.Width, snap.Height)
	default:
		return fmt.Errorf("unknown command")
	}
	return nil
}

func dial(addr, path string) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	return conn, err
}

func printStatus(st status) {
	state := "▶️  live"
	if st.Paused {
		state = "⏸️  paused"
	}
	fmt.Printf("%s  %s %dx%d  reads=%d failed=%d clients=%d\n",
		state, st.Source, st.Width, st.Height, st.Reads, st.FailedReads, st.Clients)
}

func saveFrames(conn *websocket.Conn, dir string, every int) {
	n := 0
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		n++
		if n%every != 0 {
			continue
		}
		name := fmt.Sprintf("preview-%s-%04d.jpg", time.Now().Format(frameLayout), n)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			fmt.Printf("⚠️  Failed to store frame: %v\n", err)
			continue
		}
		fmt.Printf("🖼️  %s (%d bytes)\n", name, len(data))
	}
}
