package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DB struct {
	Driver string // sqlite | mysql | none
	Path   string
	Host   string
	Port   int
	User   string
	Pass   string
	Name   string
}

type Redis struct {
	Addr    string
	Channel string
}

type Ports struct {
	Start        int
	End          int
	BindAttempts int
}

type Config struct {
	Host        string
	Port        int
	StorageURL  string
	IdleTimeout time.Duration
	LogLevel    string
	Ports       Ports
	DB          DB
	Redis       Redis
}

// Load reads path (yaml) on top of the defaults. An empty path or a missing
// file yields the defaults; UDPFETCH_* environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("udpfetch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("backend.host", "0.0.0.0")
	v.SetDefault("backend.port", 9000)
	v.SetDefault("backend.storage.url", "files")
	v.SetDefault("backend.ports.start", 50000)
	v.SetDefault("backend.ports.end", 51000)
	v.SetDefault("backend.ports.bind_attempts", 5)
	v.SetDefault("backend.session.idle_timeout", 2*time.Minute)
	v.SetDefault("backend.log_level", "info")
	v.SetDefault("backend.db.driver", "sqlite")
	v.SetDefault("backend.db.path", "udpfetch.db")
	v.SetDefault("backend.db.host", "127.0.0.1")
	v.SetDefault("backend.db.port", 3306)
	v.SetDefault("backend.db.user", "root")
	v.SetDefault("backend.db.pass", "")
	v.SetDefault("backend.db.name", "udpfetch")
	v.SetDefault("backend.redis.addr", "")
	v.SetDefault("backend.redis.channel", "udpfetch:transfers")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Host:        v.GetString("backend.host"),
		Port:        v.GetInt("backend.port"),
		StorageURL:  v.GetString("backend.storage.url"),
		IdleTimeout: v.GetDuration("backend.session.idle_timeout"),
		LogLevel:    v.GetString("backend.log_level"),
		Ports: Ports{
			Start:        v.GetInt("backend.ports.start"),
			End:          v.GetInt("backend.ports.end"),
			BindAttempts: v.GetInt("backend.ports.bind_attempts"),
		},
		DB: DB{
			Driver: strings.ToLower(v.GetString("backend.db.driver")),
			Path:   v.GetString("backend.db.path"),
			Host:   v.GetString("backend.db.host"),
			Port:   v.GetInt("backend.db.port"),
			User:   v.GetString("backend.db.user"),
			Pass:   v.GetString("backend.db.pass"),
			Name:   v.GetString("backend.db.name"),
		},
		Redis: Redis{
			Addr:    v.GetString("backend.redis.addr"),
			Channel: v.GetString("backend.redis.channel"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("config: backend.port out of range")
	}
	if c.Ports.Start <= 0 || c.Ports.End > 65536 || c.Ports.Start >= c.Ports.End {
		return errors.New("config: invalid backend.ports range")
	}
	if c.Port >= c.Ports.Start && c.Port < c.Ports.End {
		return errors.New("config: backend.port overlaps the data port range")
	}
	if c.Ports.BindAttempts <= 0 {
		return errors.New("config: backend.ports.bind_attempts must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("config: backend.session.idle_timeout must be positive")
	}
	switch c.DB.Driver {
	case "sqlite", "mysql", "none", "":
	default:
		return fmt.Errorf("config: unknown backend.db.driver %q", c.DB.Driver)
	}
	return nil
}
