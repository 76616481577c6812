package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tailored-agentic-units/echodev/device"
	"github.com/tailored-agentic-units/echodev/observability"
	"github.com/tailored-agentic-units/echodev/transport"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		configFile  = flag.String("config", "", "Path to device config JSON file (optional)")
		listen      = flag.String("listen", "", "Listen address (overrides config)")
		capacity    = flag.Int64("capacity", 0, "Initial buffer capacity in bytes (overrides config)")
		maxCapacity = flag.Int64("max-capacity", 0, "Maximum buffer capacity in bytes (overrides config)")
		nonblocking = flag.Bool("nonblocking", false, "Open sessions in non-blocking mode by default")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := device.DefaultConfig()
	if *configFile != "" {
		loaded, err := device.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *listen != "" {
		cfg.Listen = *listen
	}
	if *capacity > 0 {
		cfg.Buffer.InitialCapacity = *capacity
	}
	if *maxCapacity > 0 {
		cfg.Buffer.MaxCapacity = *maxCapacity
	}
	if *nonblocking {
		cfg.Session.Nonblocking = true
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Device and transport events share the log sink plus any configured
	// observer other than slog itself.
	var extra observability.Observer
	if name := cfg.Observer; name != "" && name != "slog" {
		obs, err := observability.GetObserver(name)
		if err != nil {
			log.Fatalf("Failed to resolve observer: %v", err)
		}
		extra = obs
	}
	observer := observability.NewMultiObserver(observability.NewSlogObserver(logger), extra)

	dev, err := device.New(&cfg, device.WithObserver(observer))
	if err != nil {
		log.Fatalf("Failed to create device: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := transport.NewServer(cfg.Listen, dev, observer)

	errc := make(chan error, 1)
	go func() {
		logger.Info("device listening",
			"name", dev.Name(),
			"addr", cfg.Listen,
			"capacity", cfg.Buffer.InitialCapacity,
			"max_capacity", cfg.Buffer.MaxCapacity,
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	if err := dev.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Device shutdown failed: %v", err)
	}

	stats := dev.Stats()
	fmt.Fprintf(os.Stderr, "opens=%d reads=%d writes=%d bytes_read=%d bytes_written=%d truncations=%d errors=%d\n",
		stats.Opens, stats.Reads, stats.Writes, stats.BytesRead, stats.BytesWritten, stats.Truncations, stats.Errors)
}
