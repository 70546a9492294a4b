package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// transportIdleTimeout is the printer's own websocket idle cutoff.
const transportIdleTimeout = 60 * time.Second

// Config represents the overall application configuration.
type Config struct {
	Printer    PrinterConfig    `yaml:"printer"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// PrinterConfig holds the printer connection settings. The *Ms fields are
// converted into the matching time.Duration fields by Load.
type PrinterConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Path             string `yaml:"path"`
	StatusIntervalMs int    `yaml:"status_interval_ms"`
	KeepAliveMs      int    `yaml:"keep_alive_ms"`
	ReconnectDelayMs int    `yaml:"reconnect_delay_ms"`
	DialTimeoutMs    int    `yaml:"dial_timeout_ms"`
	WriteTimeoutMs   int    `yaml:"write_timeout_ms"`
	LoopIntervalMs   int    `yaml:"loop_interval_ms"`

	StatusInterval time.Duration `yaml:"-"`
	KeepAlive      time.Duration `yaml:"-"`
	ReconnectDelay time.Duration `yaml:"-"`
	DialTimeout    time.Duration `yaml:"-"`
	WriteTimeout   time.Duration `yaml:"-"`
	LoopInterval   time.Duration `yaml:"-"`
}

// URL is the printer's websocket endpoint.
func (p PrinterConfig) URL() string {
	return "ws://" + net.JoinHostPort(p.Host, strconv.Itoa(p.Port)) + p.Path
}

// SensorConfig holds the filament sensor wiring. With GPIO disabled the
// presence input always reads present and no motion pulses arrive.
type SensorConfig struct {
	GPIOEnabled             bool   `yaml:"gpio_enabled"`
	Chip                    string `yaml:"chip"`
	PresenceLine            int    `yaml:"presence_line"`
	PresenceActiveLow       bool   `yaml:"presence_active_low"`
	MotionLine              int    `yaml:"motion_line"`
	MotionCheckIntervalMs   int    `yaml:"motion_check_interval_ms"`
	PositionCheckIntervalMs int    `yaml:"position_check_interval_ms"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool { return p.PublicKey != "" && p.PrivateKey != "" }

// TelegramConfig holds the bot used for chat alerts.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

func (t TelegramConfig) Enabled() bool { return t.BotToken != "" && t.ChatID != 0 }

// MQTTConfig holds the home-automation bridge settings. An empty broker
// disables the bridge.
type MQTTConfig struct {
	Broker            string `yaml:"broker"`
	ClientID          string `yaml:"client_id"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	TopicPrefix       string `yaml:"topic_prefix"`
	QoS               byte   `yaml:"qos"`
	PublishIntervalMs int    `yaml:"publish_interval_ms"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a .env file if present, then the YAML configuration at path,
// applies environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PRINTER_HOST"); v != "" {
		c.Printer.Host = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		c.Telegram.ChatID = id
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		c.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		c.Push.PrivateKey = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	p := &c.Printer
	if p.Port <= 0 {
		p.Port = 80
	}
	if p.Path == "" {
		p.Path = "/websocket"
	}
	p.StatusInterval = msOr(p.StatusIntervalMs, 3000)
	p.KeepAlive = msOr(p.KeepAliveMs, 50000)
	p.ReconnectDelay = msOr(p.ReconnectDelayMs, 5000)
	p.DialTimeout = msOr(p.DialTimeoutMs, 10000)
	p.WriteTimeout = msOr(p.WriteTimeoutMs, 5000)
	p.LoopInterval = msOr(p.LoopIntervalMs, 20)

	if c.Sensor.Chip == "" {
		c.Sensor.Chip = "gpiochip0"
	}
	if c.Sensor.MotionCheckIntervalMs <= 0 {
		c.Sensor.MotionCheckIntervalMs = 100
	}
	if c.Sensor.PositionCheckIntervalMs <= 0 {
		c.Sensor.PositionCheckIntervalMs = 500
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 5
	}
	if c.Server.CacheTTLSeconds <= 0 {
		c.Server.CacheTTLSeconds = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "filament-monitor.db"
	}

	if c.Push.TTL <= 0 {
		c.Push.TTL = 3600
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "filament-monitor"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "filament-monitor"
	}
	if c.MQTT.PublishIntervalMs <= 0 {
		c.MQTT.PublishIntervalMs = 5000
	}

	if c.WorkerPool.Size <= 0 {
		c.WorkerPool.Size = 1
	}
	if c.WorkerPool.QueueSize <= 0 {
		c.WorkerPool.QueueSize = 100
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	var errs []error
	if c.Printer.Host == "" {
		errs = append(errs, errors.New("printer.host is required"))
	}
	if c.Printer.KeepAlive >= transportIdleTimeout {
		errs = append(errs, fmt.Errorf("printer.keep_alive_ms must be below %d", transportIdleTimeout.Milliseconds()))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d is out of range", c.MQTT.QoS))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func msOr(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}
