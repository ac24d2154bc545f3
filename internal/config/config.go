// Package config loads service configuration through viper: an optional
// .env or config.env file, overridden by environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stockledger/internal/core/tx"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/notify"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config groups all service settings.
type Config struct {
	App    AppConfig
	HTTP   HTTPConfig
	Store  StoreConfig
	Tx     TxConfig
	Notify NotifyConfig
	Alerts AlertConfig
}

// AppConfig is general application metadata.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// IsDevelopment enables human-friendly logging.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// HTTPConfig is the listen address of the API server.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr returns host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver      string
	DatabaseURL string
	MaxConns    int32
	MinConns    int32
}

// Pool returns the postgres pool settings.
func (c StoreConfig) Pool() postgres.PoolConfig {
	cfg := postgres.DefaultPoolConfig(c.DatabaseURL)
	if c.MaxConns > 0 {
		cfg.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		cfg.MinConns = c.MinConns
	}
	return cfg
}

// TxConfig bounds retries of conflicting ledger transactions.
type TxConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration

	// Serializable runs postgres ledger transactions at SERIALIZABLE
	// instead of READ COMMITTED with row locks.
	Serializable bool
}

// Policy converts the settings into a tx.RetryPolicy.
func (c TxConfig) Policy() tx.RetryPolicy {
	return tx.RetryPolicy{MaxAttempts: c.MaxAttempts, Backoff: c.RetryBackoff}
}

// NotifyConfig configures alert dispatch.
type NotifyConfig struct {
	QueueSize    int
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration

	// WebhookURL enables webhook delivery when set.
	WebhookURL string
}

// Dispatcher converts the settings into notify.DispatcherConfig.
func (c NotifyConfig) Dispatcher() notify.DispatcherConfig {
	return notify.DispatcherConfig{
		QueueSize:   c.QueueSize,
		Workers:     c.Workers,
		MaxAttempts: c.MaxAttempts,
		Backoff:     c.RetryBackoff,
	}
}

// AlertConfig sets the expiry look-ahead windows.
type AlertConfig struct {
	ExpiryWindow time.Duration
	UrgentWindow time.Duration
}

// Policy converts the settings into inventory.AlertPolicy.
func (c AlertConfig) Policy() inventory.AlertPolicy {
	return inventory.AlertPolicy{ExpiryWindow: c.ExpiryWindow, UrgentWindow: c.UrgentWindow}
}

// Load reads configuration. Environment variables win over file values.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.MergeInConfig() // optional

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
			DatabaseURL: v.GetString("DATABASE_URL"),
			MaxConns:    v.GetInt32("DB_MAX_CONNS"),
			MinConns:    v.GetInt32("DB_MIN_CONNS"),
		},
		Tx: TxConfig{
			MaxAttempts:  v.GetInt("TX_MAX_ATTEMPTS"),
			RetryBackoff: v.GetDuration("TX_RETRY_BACKOFF"),
			Serializable: v.GetBool("TX_SERIALIZABLE"),
		},
		Notify: NotifyConfig{
			QueueSize:    v.GetInt("NOTIFY_QUEUE_SIZE"),
			Workers:      v.GetInt("NOTIFY_WORKERS"),
			MaxAttempts:  v.GetInt("NOTIFY_MAX_ATTEMPTS"),
			RetryBackoff: v.GetDuration("NOTIFY_RETRY_BACKOFF"),
			WebhookURL:   v.GetString("NOTIFY_WEBHOOK_URL"),
		},
		Alerts: AlertConfig{
			ExpiryWindow: v.GetDuration("ALERT_EXPIRY_WINDOW"),
			UrgentWindow: v.GetDuration("ALERT_EXPIRY_URGENT_WINDOW"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	retry := tx.DefaultRetryPolicy()
	dispatch := notify.DefaultDispatcherConfig()
	alerts := inventory.DefaultAlertPolicy()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "stockledger")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 0)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("TX_MAX_ATTEMPTS", retry.MaxAttempts)
	v.SetDefault("TX_RETRY_BACKOFF", retry.Backoff)
	v.SetDefault("TX_SERIALIZABLE", false)
	v.SetDefault("NOTIFY_QUEUE_SIZE", dispatch.QueueSize)
	v.SetDefault("NOTIFY_WORKERS", dispatch.Workers)
	v.SetDefault("NOTIFY_MAX_ATTEMPTS", dispatch.MaxAttempts)
	v.SetDefault("NOTIFY_RETRY_BACKOFF", dispatch.Backoff)
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("ALERT_EXPIRY_WINDOW", alerts.ExpiryWindow)
	v.SetDefault("ALERT_EXPIRY_URGENT_WINDOW", alerts.UrgentWindow)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTP.Port)
	}
	if c.Tx.MaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.Notify.Workers < 1 || c.Notify.QueueSize < 1 {
		return fmt.Errorf("NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be positive")
	}
	if c.Alerts.UrgentWindow > c.Alerts.ExpiryWindow {
		return fmt.Errorf("ALERT_EXPIRY_URGENT_WINDOW must not exceed ALERT_EXPIRY_WINDOW")
	}
	return nil
}
