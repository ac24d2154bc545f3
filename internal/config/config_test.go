package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, 3, cfg.Tx.MaxAttempts)
	assert.Equal(t, 7*24*time.Hour, cfg.Alerts.ExpiryWindow)
	assert.Equal(t, 3*24*time.Hour, cfg.Alerts.Policy().UrgentWindow)
	assert.Equal(t, 2, cfg.Notify.Dispatcher().Workers)
	assert.Empty(t, cfg.Notify.WebhookURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://ledger@localhost/ledger")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_MAX_CONNS", "40")
	t.Setenv("TX_MAX_ATTEMPTS", "5")
	t.Setenv("TX_RETRY_BACKOFF", "50ms")
	t.Setenv("NOTIFY_WEBHOOK_URL", "http://hooks.local/alerts")
	t.Setenv("ALERT_EXPIRY_WINDOW", "240h")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, int32(40), cfg.Store.Pool().MaxConns)
	assert.Equal(t, int32(2), cfg.Store.Pool().MinConns)
	assert.Equal(t, 5, cfg.Tx.Policy().MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Tx.Policy().Backoff)
	assert.Equal(t, "http://hooks.local/alerts", cfg.Notify.WebhookURL)
	assert.Equal(t, 240*time.Hour, cfg.Alerts.ExpiryWindow)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "sqlite"}, "STORE_DRIVER"},
		{"bad port", map[string]string{"STORE_DRIVER": "memory", "HTTP_PORT": "70000"}, "HTTP_PORT"},
		{"urgent beyond window", map[string]string{
			"STORE_DRIVER":               "memory",
			"ALERT_EXPIRY_WINDOW":        "24h",
			"ALERT_EXPIRY_URGENT_WINDOW": "48h",
		}, "URGENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
