package config

import (
	"strings"
	"time"

	"udpfetch/network"

	"github.com/spf13/viper"
)

type AppConfig struct {
	OutputDir    string
	ChunkSize    int64
	ChunkRetries int
	Retry        network.Backoff
	Progress     bool
	LogPath      string
	LogLevel     string
}

var cfg AppConfig

// Init loads path over the defaults. A missing or unreadable file leaves the defaults in place.
func Init(path string) AppConfig {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("udpfetch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults
	v.SetDefault("client.output_dir", ".")
	v.SetDefault("client.chunk_size", 1000)
	v.SetDefault("client.chunk_retries", 10)
	v.SetDefault("client.retry.initial", time.Second)
	v.SetDefault("client.retry.max", 32*time.Second)
	v.SetDefault("client.retry.attempts", 5)
	v.SetDefault("client.progress", true)
	v.SetDefault("client.log_path", "")
	v.SetDefault("client.log_level", "info")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	cfg = AppConfig{
		OutputDir:    v.GetString("client.output_dir"),
		ChunkSize:    v.GetInt64("client.chunk_size"),
		ChunkRetries: v.GetInt("client.chunk_retries"),
		Retry: network.Backoff{
			Initial: v.GetDuration("client.retry.initial"),
			Max:     v.GetDuration("client.retry.max"),
			Retries: v.GetInt("client.retry.attempts"),
		},
		Progress: v.GetBool("client.progress"),
		LogPath:  v.GetString("client.log_path"),
		LogLevel: v.GetString("client.log_level"),
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	cfg.ChunkSize = min(cfg.ChunkSize, network.MaxChunkPayload)
	if cfg.ChunkRetries <= 0 {
		cfg.ChunkRetries = 10
	}
	return cfg
}

func Get() AppConfig { return cfg }
