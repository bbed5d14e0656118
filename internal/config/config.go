package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"hotelsync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Inventory  InventoryConfig  `yaml:"inventory"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path   string       `yaml:"path"`
	Backup BackupConfig `yaml:"backup"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

// RedisConfig is optional; an empty address keeps locks and the trigger queue in process.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ReconcileConfig struct {
	Interval          time.Duration   `yaml:"interval"`
	Tenants           []string        `yaml:"tenants"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	LockTTL           time.Duration   `yaml:"lock_ttl"`
	LockWait          time.Duration   `yaml:"lock_wait"`
	MaxRetries        int             `yaml:"max_retries"`
	InitialRetryDelay time.Duration   `yaml:"initial_retry_delay"`
	QueueSize         int             `yaml:"queue_size"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AlertsConfig struct {
	Telegram TelegramAlertConfig `yaml:"telegram"`
	MQTT     MQTTAlertConfig     `yaml:"mqtt"`
}

type TelegramAlertConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
}

func (c TelegramAlertConfig) Enabled() bool {
	return c.BotToken != "" && len(c.ChatIDs) > 0
}

type MQTTAlertConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

func (c MQTTAlertConfig) Enabled() bool {
	return c.Broker != ""
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	ReportSpreadSheetID   string `yaml:"report_spreadsheet_id"`
}

func (c GoogleConfig) Enabled() bool {
	return c.GoogleCredentialsFile != "" && c.ReportSpreadSheetID != ""
}

type InventoryConfig struct {
	Rooms []models.Room `yaml:"rooms"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен, переменные могут прийти из окружения
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Reconcile.Interval <= 0 {
		return errors.New("reconcile interval must be positive")
	}
	if c.Alerts.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.Alerts.MQTT.QoS)
	}

	return ValidateRooms(c.Inventory.Rooms)
}

// ValidateRooms rejects inventory entries without a tenant or number and
// duplicate numbers inside one tenant.
func ValidateRooms(rooms []models.Room) error {
	seen := make(map[string]bool)
	for _, room := range rooms {
		if room.TenantID == "" {
			return fmt.Errorf("room '%s' has no tenant_id", room.Number)
		}
		if room.Number == "" {
			return fmt.Errorf("tenant '%s' has a room without number", room.TenantID)
		}
		key := room.TenantID + "/" + room.Number
		if seen[key] {
			return fmt.Errorf("duplicate room number %s for tenant %s", room.Number, room.TenantID)
		}
		seen[key] = true
	}
	return nil
}

// Tenants lists the tenants the periodic pass covers: the configured list, or
// every tenant that owns inventory.
func (c *Config) Tenants() []string {
	if len(c.Reconcile.Tenants) > 0 {
		return c.Reconcile.Tenants
	}
	seen := make(map[string]bool)
	var out []string
	for _, room := range c.Inventory.Rooms {
		if !seen[room.TenantID] {
			seen[room.TenantID] = true
			out = append(out, room.TenantID)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "hotelsync"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}

	r := &c.Reconcile
	if r.Interval == 0 {
		r.Interval = models.DefaultReconcileInterval * time.Second
	}
	if r.LockTTL == 0 {
		r.LockTTL = models.DefaultLockTTL * time.Second
	}
	if r.LockWait == 0 {
		r.LockWait = models.DefaultLockWait * time.Second
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = models.DefaultMaxRetries
	}
	if r.InitialRetryDelay == 0 {
		r.InitialRetryDelay = time.Second
	}
	if r.QueueSize == 0 {
		r.QueueSize = models.WorkerQueueSize
	}
	if r.RateLimit.RPS == 0 {
		r.RateLimit.RPS = models.DefaultStoreRPS
	}
	if r.RateLimit.Burst == 0 {
		r.RateLimit.Burst = models.DefaultStoreBurst
	}

	if c.Alerts.MQTT.Broker != "" {
		if c.Alerts.MQTT.ClientID == "" {
			c.Alerts.MQTT.ClientID = c.App.Name
		}
		if c.Alerts.MQTT.Topic == "" {
			c.Alerts.MQTT.Topic = "hotelsync/alerts"
		}
	}
	if c.Database.Backup.Enabled {
		if c.Database.Backup.Interval == 0 {
			c.Database.Backup.Interval = 24 * time.Hour
		}
		if c.Database.Backup.StoragePath == "" {
			c.Database.Backup.StoragePath = "backups"
		}
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
