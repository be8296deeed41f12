package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Lifecycle LifecycleConfig `yaml:"lifecycle" json:"lifecycle"`
	Console   ConsoleConfig   `yaml:"console" json:"console"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path           string `yaml:"path" json:"path"`
	MaxConnections int    `yaml:"max_connections" json:"max_connections"`
}

// StorageConfig contains storage paths
type StorageConfig struct {
	DataDir   string `yaml:"data_dir" json:"data_dir"`
	BackupDir string `yaml:"backup_dir" json:"backup_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// LifecycleConfig contains process supervision tunables
type LifecycleConfig struct {
	GracefulTimeout time.Duration `yaml:"graceful_timeout" json:"graceful_timeout"`
	StopPollEvery   time.Duration `yaml:"stop_poll_every" json:"stop_poll_every"`
	MonitorInterval time.Duration `yaml:"monitor_interval" json:"monitor_interval"`
	AutoAcceptEULA  bool          `yaml:"auto_accept_eula" json:"auto_accept_eula"`
	StopCommand     string        `yaml:"stop_command" json:"stop_command"`
}

// ConsoleConfig contains console buffer and live delivery settings
type ConsoleConfig struct {
	HistoryLines      int           `yaml:"history_lines" json:"history_lines"`
	ReplayLines       int           `yaml:"replay_lines" json:"replay_lines"`
	QueueSize         int           `yaml:"queue_size" json:"queue_size"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
}

// SchedulerConfig contains schedule dispatch settings
type SchedulerConfig struct {
	CheckInterval time.Duration `yaml:"check_interval" json:"check_interval"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := Default()

	configPath := os.Getenv("MSM_CONFIG_PATH")
	if configPath == "" {
		configPath = resolveConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	if dbPath := os.Getenv("MSM_DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if dataDir := os.Getenv("MSM_DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}

	if backupDir := os.Getenv("MSM_BACKUP_DIR"); backupDir != "" {
		cfg.Storage.BackupDir = backupDir
	}

	if logLevel := os.Getenv("MSM_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	cfg.normalizeStoragePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path:           "./data/msm.db",
			MaxConnections: 25,
		},
		Storage: StorageConfig{
			DataDir:   "./data",
			BackupDir: "./data/backups",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			File:       "",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Lifecycle: LifecycleConfig{
			GracefulTimeout: 30 * time.Second,
			StopPollEvery:   500 * time.Millisecond,
			MonitorInterval: 500 * time.Millisecond,
			AutoAcceptEULA:  true,
			StopCommand:     "stop",
		},
		Console: ConsoleConfig{
			HistoryLines:      1000,
			ReplayLines:       100,
			QueueSize:         256,
			HeartbeatInterval: 5 * time.Second,
		},
		Scheduler: SchedulerConfig{
			CheckInterval: 60 * time.Second,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database path must be set")
	}

	if c.Lifecycle.GracefulTimeout <= 0 {
		return fmt.Errorf("lifecycle graceful_timeout must be positive")
	}

	if c.Lifecycle.MonitorInterval <= 0 {
		return fmt.Errorf("lifecycle monitor_interval must be positive")
	}

	if c.Console.HistoryLines <= 0 {
		return fmt.Errorf("console history_lines must be positive")
	}

	if c.Console.QueueSize <= 0 {
		return fmt.Errorf("console queue_size must be positive")
	}

	if c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("scheduler check_interval must be positive")
	}

	return nil
}

func resolveConfigPath() string {
	candidates := []string{"./msm.yaml", "./configs/msm.yaml"}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "./msm.yaml"
}

// Save writes the configuration back to disk
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) normalizeStoragePaths() {
	resolvePath := func(value string) string {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return ""
		}
		if abs, err := filepath.Abs(trimmed); err == nil {
			return filepath.Clean(abs)
		}
		return filepath.Clean(trimmed)
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		c.Storage.DataDir = "./data"
	}
	c.Storage.DataDir = resolvePath(c.Storage.DataDir)

	if strings.TrimSpace(c.Storage.BackupDir) == "" {
		c.Storage.BackupDir = filepath.Join(c.Storage.DataDir, "backups")
	}
	c.Storage.BackupDir = resolvePath(c.Storage.BackupDir)
}
