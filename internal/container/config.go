// Package container provides dependency injection and lifecycle management
// for the disbursement service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/garyjia/disbursement/internal/tracing"
)

// Storage drivers
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Workflow WorkflowConfig
	Email    EmailConfig
	Storage  StorageConfig
	Server   ServerConfig
	Worker   WorkerConfig
	Tracing  tracing.Config
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the request store: memory or sqlite
	Driver string

	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// RunMigrations applies the embedded schema on start
	RunMigrations bool
}

// WorkflowConfig holds the routing policy settings.
type WorkflowConfig struct {
	CEOThreshold    decimal.Decimal
	DefaultCurrency string
	IDPrefix        string
}

// EmailConfig holds notification sender settings.
type EmailConfig struct {
	From string
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ArchiveDir receives a copy of every ledger export; empty disables archiving
	ArchiveDir string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// ReminderInterval is how often overdue advances are scanned; zero disables the reminder
	ReminderInterval  time.Duration
	ReminderBatchSize int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "data/disbursement.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			RunMigrations:   true,
		},
		Workflow: WorkflowConfig{
			CEOThreshold:    domainwf.DefaultCEOThreshold,
			DefaultCurrency: "PHP",
			IDPrefix:        "REQ",
		},
		Email: EmailConfig{
			From: "disbursements@localhost",
		},
		Storage: StorageConfig{
			ArchiveDir: "exports",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			ReminderInterval:  time.Hour,
			ReminderBatchSize: 50,
		},
		Tracing: tracing.Config{
			ServiceName:    "disbursement",
			ServiceVersion: "1.0.0",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if !c.Workflow.CEOThreshold.IsPositive() {
		return fmt.Errorf("workflow.ceo_threshold must be positive")
	}
	if c.Workflow.IDPrefix == "" {
		return fmt.Errorf("workflow.id_prefix is required")
	}

	if c.Email.From == "" {
		return fmt.Errorf("email.from is required")
	}

	if c.Worker.ReminderInterval < 0 {
		return fmt.Errorf("worker.reminder_interval must not be negative")
	}

	return nil
}
