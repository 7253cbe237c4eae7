package initialize

import (
	"context"
	"fmt"

	"udpfetch/backend/app/controllers"
	"udpfetch/backend/app/db"
	"udpfetch/backend/app/events"
	"udpfetch/backend/app/models"
	"udpfetch/backend/app/repo"
	"udpfetch/backend/app/services"
	"udpfetch/backend/config"
	"udpfetch/backend/global"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	Cfg       *config.Config
	DB        *gorm.DB
	Storage   *services.StorageService
	Ports     *services.PortAllocator
	Transfers *services.TransferService
	Control   *controllers.ControlController
}

// Build wires the backend from cfg.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	global.Config = cfg
	SetLogLevel(cfg.LogLevel)

	// Storage
	bucket, err := services.OpenBucket(ctx, cfg.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	storage := services.NewStorageService(bucket)

	// Ledger
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
		_ = storage.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}
	var transfers *repo.TransferRepository
	if gdb != nil {
		if err := gdb.AutoMigrate(&models.TransferRecord{}); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		transfers = repo.NewTransferRepository(gdb)
	}
	global.Mdb = gdb

	// Events
	var pub events.Publisher = events.Nop{}
	if cfg.Redis.Addr != "" {
		global.Rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pub = events.NewRedisPublisher(global.Rdb, cfg.Redis.Channel)
		global.Logger.Info().Str("addr", cfg.Redis.Addr).Str("channel", cfg.Redis.Channel).Msg("publishing transfer events")
	}

	// Services
	ports, err := services.NewPortAllocator(cfg.Ports.Start, cfg.Ports.End)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	transferSvc := services.NewTransferService(transfers, pub)

	// Controllers
	ctrl := controllers.NewControlController(storage, ports, transferSvc, controllers.SessionOptions{
		Host:         cfg.Host,
		IdleTimeout:  cfg.IdleTimeout,
		BindAttempts: cfg.Ports.BindAttempts,
	})

	return &App{Cfg: cfg, DB: gdb, Storage: storage, Ports: ports, Transfers: transferSvc, Control: ctrl}, nil
}

// Close releases storage, database and redis handles.
func (a *App) Close() error {
	var firstErr error
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if global.Rdb != nil {
		if err := global.Rdb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		global.Rdb = nil
	}
	return firstErr
}
