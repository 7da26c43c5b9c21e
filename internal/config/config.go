package config

import (
	"errors"
	"fmt"
	"os"

	"classbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig          `yaml:"app"`
	Server     ServerConfig       `yaml:"server"`
	Database   DatabaseConfig     `yaml:"database"`
	Storage    StorageConfig      `yaml:"storage"`
	Redis      RedisConfig        `yaml:"redis"`
	Monitoring MonitoringConfig   `yaml:"monitoring"`
	Logging    LoggingConfig      `yaml:"logging"`
	Admin      AdminConfig        `yaml:"admin"`
	Sessions   SessionConfig      `yaml:"sessions"`
	Scheduler  SchedulerConfig    `yaml:"scheduler"`
	Exports    ExportConfig       `yaml:"exports"`
	Backup     BackupConfig       `yaml:"backup"`
	Classrooms []models.Classroom `yaml:"classrooms"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port              int     `yaml:"port"`
	LoginRateLimit    int     `yaml:"login_rate_limit"`
	LoginRateWindow   int     `yaml:"login_rate_window"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	RequestBurst      int     `yaml:"request_burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig points at the directory holding the JSON snapshot files for
// reservations, the waitlist and notifications.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
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

type AdminConfig struct {
	ID       string `yaml:"id"`
	Password string `yaml:"password"`
}

type SessionConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

type SchedulerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

func Load(configPath string) (*Config, error) {
	// .env переопределяет переменные окружения; его отсутствие не ошибка.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
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
	if c.Storage.DataDir == "" {
		return errors.New("storage data_dir is required")
	}
	if c.Admin.ID != "" && c.Admin.Password == "" {
		return errors.New("admin password is required when admin id is set")
	}
	return ValidateClassrooms(c.Classrooms)
}

// ValidateClassrooms rejects duplicate names and non-positive capacities in
// the seeded catalog.
func ValidateClassrooms(rooms []models.Classroom) error {
	names := make(map[string]bool)
	for _, room := range rooms {
		if room.Name == "" {
			return errors.New("classroom with empty name")
		}
		if names[room.Name] {
			return fmt.Errorf("duplicate classroom name: %s", room.Name)
		}
		names[room.Name] = true
		if room.Capacity < 0 {
			return fmt.Errorf("classroom '%s' has negative capacity", room.Name)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LoginRateLimit == 0 {
		c.Server.LoginRateLimit = models.LoginRateLimitAttempts
	}
	if c.Server.LoginRateWindow == 0 {
		c.Server.LoginRateWindow = models.LoginRateLimitWindow
	}
	if c.Server.RequestsPerSecond == 0 {
		c.Server.RequestsPerSecond = 20
	}
	if c.Server.RequestBurst == 0 {
		c.Server.RequestBurst = 40
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Sessions.TTLSeconds == 0 {
		c.Sessions.TTLSeconds = models.DefaultSessionTTL
	}
	if c.Scheduler.IntervalSeconds == 0 {
		c.Scheduler.IntervalSeconds = models.DefaultSchedulerInterval
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}
