package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"udpfetch/backend/app/db"
	"udpfetch/backend/app/events"
	"udpfetch/backend/app/models"
	"udpfetch/backend/app/repo"
	"udpfetch/backend/app/services"
	"udpfetch/backend/config"
	"udpfetch/cmd/monitor/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfgPath := flag.String("config", "config/backend.yaml", "Path to the backend configuration file")
	limit := flag.Int("limit", 20, "Number of transfers to show")
	refresh := flag.Duration("refresh", 2*time.Second, "Poll interval when no redis channel is configured")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Cannot load configuration:", err)
		os.Exit(1)
	}
	gdb, err := db.Connect(db.Config{
		Driver:   cfg.DB.Driver,
		Path:     cfg.DB.Path,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Pass,
		DBName:   cfg.DB.Name,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Cannot open ledger:", err)
		os.Exit(1)
	}
	if gdb == nil {
		fmt.Fprintln(os.Stderr, "The monitor needs a ledger; db.driver is none")
		os.Exit(2)
	}
	if err := gdb.AutoMigrate(&models.TransferRecord{}); err != nil {
		fmt.Fprintln(os.Stderr, "Cannot migrate ledger:", err)
		os.Exit(1)
	}
	transfers := services.NewTransferService(repo.NewTransferRepository(gdb), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var evs <-chan events.Event
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		evs, err = events.Subscribe(ctx, rdb, cfg.Redis.Channel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot subscribe to %s, polling instead: %v\n", cfg.Redis.Channel, err)
			evs = nil
		}
	}

	p := tea.NewProgram(ui.NewDashboardModel(transfers, evs, *limit, *refresh), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Alas, there's been an error: %v\n", err)
		os.Exit(1)
	}
}
