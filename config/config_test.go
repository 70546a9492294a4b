package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "printer:\n  host: 192.168.1.50\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://192.168.1.50:80/websocket", cfg.Printer.URL())
	assert.Equal(t, 3*time.Second, cfg.Printer.StatusInterval)
	assert.Equal(t, 50*time.Second, cfg.Printer.KeepAlive)
	assert.Equal(t, 5*time.Second, cfg.Printer.ReconnectDelay)
	assert.Equal(t, 20*time.Millisecond, cfg.Printer.LoopInterval)
	assert.Equal(t, 100, cfg.Sensor.MotionCheckIntervalMs)
	assert.Equal(t, 500, cfg.Sensor.PositionCheckIntervalMs)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.NotEmpty(t, cfg.Database.DSN)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Push.Enabled())
	assert.False(t, cfg.Telegram.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PRINTER_HOST", "printer.lan")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")

	path := writeConfig(t, "printer:\n  host: ignored\n  port: 3030\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://printer.lan:3030/websocket", cfg.Printer.URL())
	assert.Equal(t, int64(-100200), cfg.Telegram.ChatID)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.True(t, cfg.Push.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing host", "server:\n  port: 9000\n"},
		{"keep-alive too long", "printer:\n  host: p\n  keep_alive_ms: 60000\n"},
		{"unknown driver", "printer:\n  host: p\ndatabase:\n  driver: oracle\n  dsn: x\n"},
		{"postgres without dsn", "printer:\n  host: p\ndatabase:\n  driver: postgres\n"},
		{"bad yaml", "printer: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_BadChatID(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "general")
	_, err := Load(writeConfig(t, "printer:\n  host: p\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
