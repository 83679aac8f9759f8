package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arktty/webtty/docs"
	"github.com/arktty/webtty/src/api"
)

// @title           webtty
// @version         0.1.0
// @description     Browser-accessible terminal sessions over WebSocket, with reconnect and scrollback replay.

// @host      localhost:8080
// @BasePath  /
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	authSecret := os.Getenv("WEBTTY_AUTH_SECRET")
	if authSecret == "" {
		log.Fatal("WEBTTY_AUTH_SECRET is not set; refusing to start without an authentication gate")
	}

	host := flag.String("host", "", "host/interface to listen on (default all interfaces)")
	port := flag.Int("port", 8080, "port to listen on")
	shortPort := flag.Int("p", 8080, "port to listen on (shorthand)")
	shell := flag.String("shell", "", "shell command to spawn for new sessions (defaults to $SHELL)")
	appTitle := flag.String("title", "webtty", "terminal application title reported via GET /config")
	hscroll := flag.Bool("hscroll", false, "report horizontal-scroll preference via GET /config")
	disableLogging := flag.Bool("disable-request-logging", false, "skip per-request logrus logging")
	flag.Parse()

	portValue := *port
	if *shortPort != 8080 {
		portValue = *shortPort
	}

	var shellCmd []string
	if *shell != "" {
		shellCmd = strings.Fields(*shell)
	}

	router, terminalHandler := api.SetupRouter(api.RouterConfig{
		AppTitle:     *appTitle,
		HScroll:      *hscroll,
		ShellCommand: shellCmd,
		AuthSecret:   authSecret,
	}, *disableLogging, true)

	addr := fmt.Sprintf("%s:%d", *host, portValue)
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", portValue)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("webttyd listening on %s", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}

	terminalHandler.Registry().Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
