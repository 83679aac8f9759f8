package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/arktty/webtty/src/client"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/tty/ws", "webttyd WebSocket URL")
	statePath := flag.String("state", defaultStatePath(), "path used to persist the session id across reconnects")
	flag.Parse()

	renderer, err := newTermRenderer()
	if err != nil {
		log.Fatalf("webtty: failed to enter raw mode: %v", err)
	}
	defer renderer.Close()

	var store client.Store
	if *statePath != "" {
		store = client.NewFileStore(*statePath)
	} else {
		store = client.NewMemStore()
	}

	drv := &client.Driver{
		URL:      *addr,
		Renderer: renderer,
		Store:    store,
		OnState: func(state client.State, detail string) {
			log.Printf("webtty: %s (%s)", state, detail)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := drv.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "webtty: %v\n", err)
		os.Exit(1)
	}
}

func defaultStatePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "webtty", "session-id")
}
