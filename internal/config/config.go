package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Email    EmailConfig    `mapstructure:"email"`
	Export   ExportConfig   `mapstructure:"export"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // memory or sqlite
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
}

// WorkflowConfig holds the approval routing settings
type WorkflowConfig struct {
	CEOThreshold    string `mapstructure:"ceo_threshold"`
	DefaultCurrency string `mapstructure:"default_currency"`
	IDPrefix        string `mapstructure:"id_prefix"`
}

// Threshold parses CEOThreshold; call after Validate
func (w WorkflowConfig) Threshold() decimal.Decimal {
	return decimal.RequireFromString(w.CEOThreshold)
}

// EmailConfig holds notification sender settings
type EmailConfig struct {
	From string `mapstructure:"from"`
}

// ExportConfig holds ledger export settings
type ExportConfig struct {
	// ArchiveDir keeps a copy of every export; empty disables archiving
	ArchiveDir string `mapstructure:"archive_dir"`
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	ReminderInterval  time.Duration `mapstructure:"reminder_interval"` // 0 disables liquidation reminders
	ReminderBatchSize int           `mapstructure:"reminder_batch_size"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	OutputPath     string `mapstructure:"output_path"`
}

// Load loads configuration from an optional YAML file, a .env file and environment variables.
// A missing configPath is not an error; defaults and the environment still apply.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path into the process environment without
// overriding ones that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/disbursement.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.run_migrations", true)

	v.SetDefault("workflow.ceo_threshold", "20000")
	v.SetDefault("workflow.default_currency", "PHP")
	v.SetDefault("workflow.id_prefix", "REQ")

	v.SetDefault("email.from", "disbursements@localhost")

	v.SetDefault("export.archive_dir", "exports")

	v.SetDefault("worker.reminder_interval", time.Hour)
	v.SetDefault("worker.reminder_batch_size", 50)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "disbursement")
	v.SetDefault("tracing.service_version", "1.0.0")
	v.SetDefault("tracing.output_path", "stdout")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("DISBURSEMENT")
	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.driver", "DB_DRIVER")
	_ = v.BindEnv("database.path", "DB_PATH")
	_ = v.BindEnv("workflow.ceo_threshold", "CEO_THRESHOLD")
	_ = v.BindEnv("email.from", "EMAIL_FROM")
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, c.Database.Driver)
	}

	threshold, err := decimal.NewFromString(c.Workflow.CEOThreshold)
	if err != nil {
		return fmt.Errorf("workflow.ceo_threshold is not a decimal: %w", err)
	}
	if !threshold.IsPositive() {
		return fmt.Errorf("workflow.ceo_threshold must be positive, got %s", threshold)
	}
	if len(c.Workflow.DefaultCurrency) != 3 {
		return fmt.Errorf("workflow.default_currency must be a three-letter code, got %q", c.Workflow.DefaultCurrency)
	}
	if c.Workflow.IDPrefix == "" {
		return fmt.Errorf("workflow.id_prefix is required")
	}

	if c.Email.From == "" {
		return fmt.Errorf("email.from is required")
	}

	if c.Worker.ReminderInterval < 0 {
		return fmt.Errorf("worker.reminder_interval must not be negative, got %s", c.Worker.ReminderInterval)
	}

	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		return fmt.Errorf("tracing.service_name is required when tracing is enabled")
	}

	return nil
}
