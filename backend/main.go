package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"udpfetch/backend/config"
	"udpfetch/backend/global"
	"udpfetch/backend/initialize"
	"udpfetch/backend/server"
)

func main() {
	var (
		cfgPath = flag.String("config", "config/backend.yaml", "Path to configuration file")
		port    = flag.Int("port", 0, "Control port to listen on (overrides config)")
		storage = flag.String("storage", "", "Storage directory or bucket URL (overrides config)")
		recent  = flag.Int("recent", 0, "Print the N most recent transfers and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Cannot load configuration:", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *storage != "" {
		cfg.StorageURL = *storage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := initialize.Build(ctx, cfg)
	if err != nil {
		global.Logger.Error().Err(err).Msg("backend initialization failed")
		os.Exit(1)
	}
	defer app.Close()

	if *recent > 0 {
		printRecent(app, *recent)
		return
	}

	global.Logger.Info().
		Str("storage", cfg.StorageURL).
		Int("ports_start", cfg.Ports.Start).
		Int("ports_end", cfg.Ports.End).
		Msg("backend starting")

	if err := server.StartControlServer(ctx, cfg.Host, cfg.Port, app.Control); err != nil {
		global.Logger.Error().Err(err).Msg("control listener failed")
		os.Exit(1)
	}

	global.Logger.Info().Int64("sessions", app.Control.Active()).Msg("Shutdown signal received, waiting for sessions...")
	app.Control.Wait()
}

func printRecent(app *initialize.App, n int) {
	records, err := app.Transfers.Recent(n)
	if err != nil {
		global.Logger.Error().Err(err).Msg("cannot list transfers")
		return
	}
	for _, r := range records {
		fmt.Printf("%s  %-10s %-24s %-21s port=%d bytes=%d/%d chunks=%d %s\n",
			r.StartedAt.Format(time.RFC3339), r.Status, r.FileName, r.ClientAddr,
			r.DataPort, r.BytesSent, r.FileSize, r.Chunks, r.Error)
	}
}
