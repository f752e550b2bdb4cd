package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/application/access"
	"github.com/garyjia/site-qms/internal/application/dispatcher"
	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/application/service"
	"github.com/garyjia/site-qms/internal/application/workflow"
	infraLark "github.com/garyjia/site-qms/internal/infrastructure/external/lark"
	"github.com/garyjia/site-qms/internal/infrastructure/persistence/repository"
	"github.com/garyjia/site-qms/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/site-qms/internal/infrastructure/storage"
	httpserver "github.com/garyjia/site-qms/internal/interfaces/http"
	"github.com/garyjia/site-qms/migrations"
	"github.com/garyjia/site-qms/pkg/database"
	"github.com/garyjia/site-qms/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// LarkBundle holds all Lark-related components.
type LarkBundle struct {
	Client    *infraLark.SDKClient
	Messenger port.MessageSender
}

// StorageBundle holds the upload service and, for the local driver, the
// directory it serves from.
type StorageBundle struct {
	Uploads     port.UploadService
	Attachments service.AttachmentService
	LocalDir    string
}

// WorkflowDeps holds the dependencies of the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Uploads    port.UploadService
	Resolver   workflow.RoleResolver
	Config     *Config
	Logger     *zap.Logger
}

// ProvideDatabase opens the database, runs pending migrations and wraps it
// in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrationsFS(migrations.FS, ".")
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Record:    repository.NewRecordRepository(db.DB, logger),
		History:   repository.NewHistoryRepository(db.DB, logger),
		Counter:   repository.NewCounterRepository(db.DB, logger),
		Personnel:  repository.NewPersonnelRepository(db.DB, logger),
		Attachment: repository.NewAttachmentRepository(db.DB, logger),
	}, nil
}

// ProvideLarkClients creates the Lark client and messenger.
// It returns nil without error when no app is configured.
func ProvideLarkClients(cfg *LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.AppID == "" {
		logger.Warn("Lark app not configured, notifications disabled")
		return nil, nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		Domain:    cfg.Domain,
	}, logger)

	return &LarkBundle{
		Client:    client,
		Messenger: infraLark.NewMessenger(client, logger),
	}, nil
}

// ProvideStorage creates the upload service for the configured driver.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case StorageDriverS3:
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			PublicBaseURL:   cfg.PublicBaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 uploader: %w", err)
		}
		return &StorageBundle{Uploads: uploader}, nil

	case StorageDriverLocal, "":
		uploader := storage.NewLocalUploader(cfg.LocalDir, cfg.BaseURL, logger)
		return &StorageBundle{Uploads: uploader, LocalDir: uploader.Dir()}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ProvideAttachmentService creates the service that stores uploads and
// records who uploaded them.
func ProvideAttachmentService(
	uploads port.UploadService,
	attachments port.AttachmentRepository,
	logger *zap.Logger,
) (service.AttachmentService, error) {
	if uploads == nil {
		return nil, fmt.Errorf("upload service is required")
	}
	if attachments == nil {
		return nil, fmt.Errorf("attachment repository is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return service.NewAttachmentService(uploads, attachments, utils.NewKVLogger(logger)), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *WorkflowConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(utils.NewKVLogger(logger))}
	if cfg != nil && cfg.NotificationTimeout > 0 {
		opts = append(opts, dispatcher.WithHandlerTimeout(cfg.NotificationTimeout))
	}

	return dispatcher.NewDispatcher(opts...), nil
}

// ProvideNotificationService creates the notification service and subscribes
// it to the dispatcher. It returns nil when Lark is not configured.
func ProvideNotificationService(
	personnel port.PersonnelRepository,
	larkBundle *LarkBundle,
	disp dispatcher.Dispatcher,
	logger *zap.Logger,
) (service.NotificationService, error) {
	if personnel == nil {
		return nil, fmt.Errorf("personnel repository is required")
	}
	if disp == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if larkBundle == nil {
		return nil, nil
	}

	notifications := service.NewNotificationService(personnel, larkBundle.Messenger, utils.NewKVLogger(logger))
	notifications.Register(disp)

	return notifications, nil
}

// ProvideResolver creates the role resolver.
func ProvideResolver(personnel port.PersonnelRepository, cfg *WorkflowConfig) (*access.Resolver, error) {
	if personnel == nil {
		return nil, fmt.Errorf("personnel repository is required")
	}

	var opts []access.Option
	if cfg != nil && cfg.RoleCacheTTL > 0 {
		opts = append(opts, access.WithCacheTTL(cfg.RoleCacheTTL))
	}

	return access.NewResolver(personnel, opts...), nil
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("role resolver is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(utils.NewKVLogger(deps.Logger)),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}
	if deps.Uploads != nil {
		opts = append(opts, workflow.WithUploads(deps.Uploads))
	}
	if deps.Repos.Attachment != nil {
		opts = append(opts, workflow.WithAttachments(deps.Repos.Attachment))
	}
	if deps.Config != nil && len(deps.Config.Numbering) > 0 {
		opts = append(opts, workflow.WithSchemes(deps.Config.Numbering))
	}

	return workflow.NewEngine(
		deps.Repos.Record,
		deps.Repos.History,
		deps.Repos.Counter,
		deps.TxManager,
		deps.Resolver,
		opts...,
	), nil
}

// ProvideHTTPServer creates the HTTP server around the engine.
func ProvideHTTPServer(
	cfg *Config,
	engine workflow.Engine,
	storageBundle *StorageBundle,
	health httpserver.HealthChecker,
	logger *zap.Logger,
) (*httpserver.Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}
	if storageBundle == nil || storageBundle.Attachments == nil {
		return nil, fmt.Errorf("storage is required")
	}

	serverCfg := httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Mode:           cfg.Server.Mode,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}
	if storageBundle.LocalDir != "" {
		serverCfg.StaticPath = staticPath(cfg.Storage.BaseURL)
		serverCfg.StaticDir = storageBundle.LocalDir
	}

	auth := httpserver.NewAuthenticator(httpserver.AuthConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
	})

	return httpserver.NewServer(serverCfg, engine, storageBundle.Attachments, health, auth, utils.NewKVLogger(logger)), nil
}
