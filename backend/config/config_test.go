package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.Ports.Start != 50000 || cfg.Ports.End != 51000 {
		t.Errorf("unexpected port range %d-%d", cfg.Ports.Start, cfg.Ports.End)
	}
	if cfg.Ports.BindAttempts != 5 {
		t.Errorf("expected 5 bind attempts, got %d", cfg.Ports.BindAttempts)
	}
	if cfg.IdleTimeout != 2*time.Minute {
		t.Errorf("expected 2m idle timeout, got %v", cfg.IdleTimeout)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %q", cfg.DB.Driver)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
backend:
  host: 127.0.0.1
  port: 7000
  storage:
    url: mem://
  ports:
    start: 40000
    end: 40100
  session:
    idle_timeout: 30s
  db:
    driver: MySQL
    name: transfers
  redis:
    addr: localhost:6379
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 7000 {
		t.Errorf("unexpected listen address %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.StorageURL != "mem://" {
		t.Errorf("unexpected storage url %q", cfg.StorageURL)
	}
	if cfg.Ports.Start != 40000 || cfg.Ports.End != 40100 {
		t.Errorf("unexpected port range %d-%d", cfg.Ports.Start, cfg.Ports.End)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("expected 30s idle timeout, got %v", cfg.IdleTimeout)
	}
	if cfg.DB.Driver != "mysql" || cfg.DB.Name != "transfers" {
		t.Errorf("unexpected db config %+v", cfg.DB)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Channel != "udpfetch:transfers" {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("UDPFETCH_BACKEND_PORT", "9100")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("expected env override 9100, got %d", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Port:        9000,
			IdleTimeout: time.Minute,
			Ports:       Ports{Start: 50000, End: 51000, BindAttempts: 5},
			DB:          DB{Driver: "sqlite"},
		}
	}
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"empty range", func(c *Config) { c.Ports.End = c.Ports.Start }},
		{"control port inside range", func(c *Config) { c.Port = 50500 }},
		{"no bind attempts", func(c *Config) { c.Ports.BindAttempts = 0 }},
		{"no idle timeout", func(c *Config) { c.IdleTimeout = 0 }},
		{"unknown driver", func(c *Config) { c.DB.Driver = "postgres" }},
	}

	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
	for _, tt := range tests {
		c := base()
		tt.modify(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
