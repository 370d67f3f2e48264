// Command webmux runs the serial multiplexer service: it opens every enabled
// serial connection from the configuration file and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"syscall"
	"time"

	"os/signal"

	"github.com/alexconrey/webmux/internal/api"
	"github.com/alexconrey/webmux/internal/config"
	"github.com/alexconrey/webmux/internal/serialmux"
)

const defaultConfigPath = "config.yaml"

func main() {
	flag.Parse()

	configPath := defaultConfigPath
	if flag.NArg() > 0 {
		configPath = flag.Arg(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	registry := serialmux.NewRegistry()

	// A connection that cannot be opened is logged and skipped; the
	// service still comes up with whatever devices are available.
	for _, conn := range cfg.SerialConnections {
		if err := registry.Add(conn); err != nil {
			log.Printf("failed to add connection %s: %v", conn.Name, err)
		}
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: api.NewServer(registry).Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("webmux listening on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop the serial sessions only after the HTTP surface is gone so no
	// request races a closing device.
	registry.Shutdown()
	log.Printf("Graceful shutdown complete")
}
