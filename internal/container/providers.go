package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/disbursement/internal/application/dispatcher"
	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/application/service"
	"github.com/garyjia/disbursement/internal/application/workflow"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/garyjia/disbursement/internal/email"
	"github.com/garyjia/disbursement/internal/export"
	"github.com/garyjia/disbursement/internal/infrastructure/persistence/memory"
	"github.com/garyjia/disbursement/internal/infrastructure/persistence/repository"
	"github.com/garyjia/disbursement/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/disbursement/internal/infrastructure/storage"
	"github.com/garyjia/disbursement/internal/infrastructure/worker"
	httpserver "github.com/garyjia/disbursement/internal/interfaces/http"
	"github.com/garyjia/disbursement/pkg/database"
	"github.com/garyjia/disbursement/pkg/utils"
)

// RepositoryBundle groups the persistence ports and the transaction manager behind them.
type RepositoryBundle struct {
	Requests      port.RequestRepository
	Timeline      port.TimelineRepository
	Users         port.UserRepository
	Notifications port.NotificationRepository
	TxManager     port.TransactionManager

	// db is nil for the memory driver
	db *database.DB
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Queries       service.QueryService
	Users         service.UserService
	Exports       service.ExportService
	Notifications service.NotificationService

	// Sender delivers and records outbound messages
	Sender port.MessageSender
}

// ProvideRepositories opens the store selected by cfg.Driver.
func ProvideRepositories(cfg *DatabaseConfig, idPrefix string, logger *zap.Logger) (*RepositoryBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case DriverMemory:
		return provideMemory(idPrefix), nil
	case DriverSQLite:
		return provideSQLite(cfg, idPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func provideMemory(idPrefix string) *RepositoryBundle {
	store := memory.NewStore(idPrefix, memory.SeedUsers()...)
	return &RepositoryBundle{
		Requests:      store,
		Timeline:      store.Timeline(),
		Users:         store.Users(),
		Notifications: store.Outbox(),
		TxManager:     store,
	}
}

func provideSQLite(cfg *DatabaseConfig, idPrefix string, logger *zap.Logger) (*RepositoryBundle, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		applied, err := database.NewMigrator(db, logger).Run(sqlite.Migrations, sqlite.MigrationsDir)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Migrations applied", zap.Int("count", applied))
	}

	return &RepositoryBundle{
		Requests:      repository.NewRequestRepository(db.DB, idPrefix, logger),
		Timeline:      repository.NewTimelineRepository(db.DB, logger),
		Users:         repository.NewUserRepository(db.DB, logger),
		Notifications: repository.NewNotificationRepository(db.DB, logger),
		TxManager:     sqlite.NewDB(db.DB, logger),
		db:            db,
	}, nil
}

// ProvideStorage creates the export archive, or nil when archiving is disabled.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) port.FileStorage {
	if cfg == nil || cfg.ArchiveDir == "" {
		return nil
	}
	return storage.NewLocalFileStorage(cfg.ArchiveDir, logger)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))))
}

// ProvideWorkflowEngine creates the engine over repos.
func ProvideWorkflowEngine(cfg *WorkflowConfig, repos *RepositoryBundle, disp dispatcher.Dispatcher, logger *zap.Logger) (workflow.Engine, error) {
	if cfg == nil || repos == nil {
		return nil, fmt.Errorf("workflow config and repositories are required")
	}

	opts := []workflow.EngineOption{
		workflow.WithDispatcher(disp),
		workflow.WithLogger(utils.NewKVLogger(logger.Named("workflow"))),
	}
	if cfg.DefaultCurrency != "" {
		opts = append(opts, workflow.WithDefaultCurrency(cfg.DefaultCurrency))
	}

	return workflow.NewEngine(
		repos.Requests,
		repos.Timeline,
		repos.Users,
		repos.TxManager,
		domainwf.NewPolicy(cfg.CEOThreshold),
		opts...,
	), nil
}

// ServiceDeps holds dependencies for creating application services.
type ServiceDeps struct {
	Engine     workflow.Engine
	Repos      *RepositoryBundle
	Dispatcher dispatcher.Dispatcher
	Storage    port.FileStorage
	EmailFrom  string
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the notifier.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Engine == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	repos := deps.Repos
	logger := utils.NewKVLogger(deps.Logger.Named("service"))

	sender := email.NewSender(repos.Notifications, deps.EmailFrom, deps.Logger.Named("email"))
	notifications := service.NewNotificationService(repos.Requests, repos.Users, repos.Notifications, sender, logger)
	if deps.Dispatcher != nil {
		notifications.Register(deps.Dispatcher)
	}

	return &ServiceBundle{
		Queries: service.NewQueryService(deps.Engine, repos.Requests, repos.Timeline, repos.Users,
			repos.TxManager, deps.Dispatcher, logger),
		Users: service.NewUserService(repos.Users),
		Exports: service.NewExportService(repos.Requests, repos.Users,
			export.NewLedgerWriter(deps.Logger.Named("export")), deps.Storage, logger),
		Notifications: notifications,
		Sender:        sender,
	}, nil
}

// ProvideWorkers registers the background workers enabled by cfg.
func ProvideWorkers(cfg *WorkerConfig, repos *RepositoryBundle, services *ServiceBundle, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger.Named("worker"))
	if cfg == nil || cfg.ReminderInterval <= 0 {
		logger.Info("Liquidation reminders disabled")
		return manager
	}

	manager.Register(worker.NewLiquidationReminder(
		repos.Requests,
		repos.Users,
		services.Sender,
		logger.Named("reminder"),
		worker.WithInterval(cfg.ReminderInterval),
		worker.WithBatchSize(cfg.ReminderBatchSize),
	))
	return manager
}

// ProvideHTTPServer creates the HTTP adapter over the services.
func ProvideHTTPServer(cfg *ServerConfig, engine workflow.Engine, services *ServiceBundle, logger *zap.Logger) *httpserver.Server {
	return httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, httpserver.Services{
		Engine:        engine,
		Queries:       services.Queries,
		Users:         services.Users,
		Exports:       services.Exports,
		Notifications: services.Notifications,
	}, utils.NewKVLogger(logger.Named("http")))
}
