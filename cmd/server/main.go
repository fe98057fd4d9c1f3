// Package main starts the broadcast relay and handles termination.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/gorelay/internal/server"
	"github.com/Tyrowin/gorelay/internal/telemetry"
)

func main() {
	cfg, err := server.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}
	log.SetPrefix("[RELAY] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("relay: %v", err)
	}
}

func run(ctx context.Context, cfg *server.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, "gorelay", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	relay := server.New(cfg)

	ln, err := net.Listen("tcp", cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Port, err)
	}

	var wsLn net.Listener
	if cfg.WebSocketAddr != "" {
		wsLn, err = net.Listen("tcp", cfg.WebSocketAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on %s: %w", cfg.WebSocketAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return relay.Serve(gctx, ln)
	})

	if wsLn != nil {
		httpServer := server.CreateServer(cfg.WebSocketAddr, relay.SetupRoutes())

		g.Go(func() error {
			return server.StartServer(httpServer, wsLn)
		})
		g.Go(func() error {
			<-gctx.Done()
			return server.ShutdownServer(httpServer, cfg.ShutdownTimeout)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return relay.Shutdown(cfg.ShutdownTimeout)
	})

	return g.Wait()
}
