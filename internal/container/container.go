package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/disbursement/internal/application/dispatcher"
	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/application/workflow"
	"github.com/garyjia/disbursement/internal/infrastructure/worker"
	httpserver "github.com/garyjia/disbursement/internal/interfaces/http"
	"github.com/garyjia/disbursement/internal/tracing"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	shutdownTracing tracing.ShutdownFunc
	repositories    *RepositoryBundle
	fileStorage     port.FileStorage
	dispatcher      dispatcher.Dispatcher
	engine          workflow.Engine
	services        *ServiceBundle
	server          *httpserver.Server
	workers         *worker.Manager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Tracing
// 2. Repositories
// 3. Storage
// 4. Dispatcher and workflow engine
// 5. Application services
// 6. HTTP server (constructed, not listening)
// 7. Background workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization", zap.String("driver", c.config.Database.Driver))

	shutdown, err := tracing.Init(c.config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	c.shutdownTracing = shutdown

	repos, err := ProvideRepositories(&c.config.Database, c.config.Workflow.IDPrefix, c.logger)
	if err != nil {
		c.teardown(ctx)
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	c.repositories = repos
	c.logger.Info("Repositories initialized")

	c.fileStorage = ProvideStorage(&c.config.Storage, c.logger)

	c.dispatcher = ProvideDispatcher(c.logger)
	engine, err := ProvideWorkflowEngine(&c.config.Workflow, c.repositories, c.dispatcher, c.logger)
	if err != nil {
		c.teardown(ctx)
		return fmt.Errorf("failed to initialize workflow engine: %w", err)
	}
	c.engine = engine
	c.logger.Info("Dispatcher and workflow engine initialized",
		zap.String("ceo_threshold", c.config.Workflow.CEOThreshold.String()))

	services, err := ProvideServices(&ServiceDeps{
		Engine:     c.engine,
		Repos:      c.repositories,
		Dispatcher: c.dispatcher,
		Storage:    c.fileStorage,
		EmailFrom:  c.config.Email.From,
		Logger:     c.logger,
	})
	if err != nil {
		c.teardown(ctx)
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	c.server = ProvideHTTPServer(&c.config.Server, c.engine, c.services, c.logger)

	c.workers = ProvideWorkers(&c.config.Worker, c.repositories, c.services, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		c.teardown(ctx)
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Background workers started", zap.Int("count", c.workers.Count()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errs := c.teardown(ctx)

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far
func (c *Container) teardown(ctx context.Context) []error {
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// Async notification handlers finish before the store goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.repositories != nil && c.repositories.db != nil {
		if err := c.repositories.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	c.repositories = nil

	if c.shutdownTracing != nil {
		if err := c.shutdownTracing(ctx); err != nil {
			c.logger.Error("Failed to shut down tracing", zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
		c.shutdownTracing = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.repositories == nil:
		set("database", false, "not initialized")
	case c.repositories.db == nil:
		set("database", true, "in-memory store")
	default:
		if err := c.repositories.db.Ping(); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.dispatcher != nil {
		set("dispatcher", true, "")
	} else {
		set("dispatcher", false, "not initialized")
	}

	if c.engine != nil {
		set("workflow", true, "")
	} else {
		set("workflow", false, "not initialized")
	}

	if c.workers != nil {
		set("workers", true, fmt.Sprintf("%d registered", c.workers.Count()))
	}

	return status
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// FileStorage returns the export archive, nil when archiving is disabled.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.engine
}

// Workers returns the background worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// HTTPServer returns the HTTP adapter.
func (c *Container) HTTPServer() *httpserver.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
