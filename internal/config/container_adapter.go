package config

import (
	"github.com/garyjia/disbursement/internal/container"
	"github.com/garyjia/disbursement/internal/tracing"
)

// ToContainerConfig converts the application Config to a container.Config.
// Call it on a validated Config; the threshold is parsed here.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			RunMigrations:   c.Database.RunMigrations,
		},
		Workflow: container.WorkflowConfig{
			CEOThreshold:    c.Workflow.Threshold(),
			DefaultCurrency: c.Workflow.DefaultCurrency,
			IDPrefix:        c.Workflow.IDPrefix,
		},
		Email: container.EmailConfig{
			From: c.Email.From,
		},
		Storage: container.StorageConfig{
			ArchiveDir: c.Export.ArchiveDir,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
		Worker: container.WorkerConfig{
			ReminderInterval:  c.Worker.ReminderInterval,
			ReminderBatchSize: c.Worker.ReminderBatchSize,
		},
		Tracing: tracing.Config{
			Enabled:        c.Tracing.Enabled,
			ServiceName:    c.Tracing.ServiceName,
			ServiceVersion: c.Tracing.ServiceVersion,
			OutputPath:     c.Tracing.OutputPath,
		},
	}
}
