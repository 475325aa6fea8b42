// Package config содержит логику чтения конфигурации движка лидов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress        = "localhost:8080"
	defaultAuthSecret        = "leadflow-secret"
	defaultCommissionPercent = 10
)

// Config содержит параметры конфигурации движка лидов.
type Config struct {
	RunAddress        string
	DatabaseURI       string
	RedisAddress      string
	NotifyWebhookURL  string
	AuthSecret        string
	CommissionPercent float64
}

// envConfig содержит значения из окружения. Пустое значение означает, что переменная не задана.
type envConfig struct {
	RunAddress        string   `env:"RUN_ADDRESS"`
	DatabaseURI       string   `env:"DATABASE_URI"`
	RedisAddress      string   `env:"REDIS_ADDRESS"`
	NotifyWebhookURL  string   `env:"NOTIFY_WEBHOOK_URL"`
	AuthSecret        string   `env:"AUTH_SECRET"`
	CommissionPercent *float64 `env:"COMMISSION_PERCENT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "c", "", "redis address for danger zone cache")
	flag.StringVar(&cfg.NotifyWebhookURL, "n", "", "notification webhook base URL")
	flag.StringVar(&cfg.AuthSecret, "s", defaultAuthSecret, "auth cookie signing secret")
	flag.Float64Var(&cfg.CommissionPercent, "p", defaultCommissionPercent, "commission percent credited on approved receipts")

	flag.Parse()

	if e.RunAddress != "" {
		cfg.RunAddress = e.RunAddress
	}
	if e.DatabaseURI != "" {
		cfg.DatabaseURI = e.DatabaseURI
	}
	if e.RedisAddress != "" {
		cfg.RedisAddress = e.RedisAddress
	}
	if e.NotifyWebhookURL != "" {
		cfg.NotifyWebhookURL = e.NotifyWebhookURL
	}
	if e.AuthSecret != "" {
		cfg.AuthSecret = e.AuthSecret
	}
	if e.CommissionPercent != nil {
		cfg.CommissionPercent = *e.CommissionPercent
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.CommissionPercent < 0 || cfg.CommissionPercent > 100 {
		return nil, fmt.Errorf("commission percent must be within [0, 100], got %v", cfg.CommissionPercent)
	}

	return cfg, nil
}
