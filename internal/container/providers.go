package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/application/service"
	"github.com/garyjia/autoclaim/internal/infrastructure/document"
	"github.com/garyjia/autoclaim/internal/infrastructure/export"
	infraLark "github.com/garyjia/autoclaim/internal/infrastructure/external/lark"
	"github.com/garyjia/autoclaim/internal/infrastructure/external/openai"
	"github.com/garyjia/autoclaim/internal/infrastructure/persistence/repository"
	"github.com/garyjia/autoclaim/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/autoclaim/internal/infrastructure/worker"
	"github.com/garyjia/autoclaim/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite file and applies pending migrations.
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

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideStateStore creates the typed state store over the kv_entries table.
func ProvideStateStore(db *sqlite.DB, logger *zap.Logger) (*service.StateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	kv := repository.NewKeyValueRepository(db, logger)
	return service.NewStateStore(kv, &zapLoggerAdapter{logger: logger}), nil
}

// ProvideEvaluator creates the claim evaluation client.
func ProvideEvaluator(cfg *OpenAIConfig, logger *zap.Logger) (port.ClaimEvaluator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("openai config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var prompts *openai.PromptConfig
	if cfg.PromptsPath != "" {
		loaded, err := openai.LoadPrompts(cfg.PromptsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
		prompts = loaded
	}

	rasterizer := document.NewRasterizer(cfg.MaxPdfPages, logger)

	evaluator, err := openai.NewEvaluator(openai.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}, prompts, rasterizer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}
	return evaluator, nil
}

// ProvideReviewNotifier creates the Lark review alert worker.
// Returns nil when Lark alerts are disabled.
func ProvideReviewNotifier(cfg *LarkConfig, queueCfg *NotifierConfig, logger *zap.Logger) (*worker.ReviewNotifier, error) {
	if cfg == nil || queueCfg == nil {
		return nil, fmt.Errorf("lark and notifier config are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if !cfg.Enabled {
		logger.Info("Lark review alerts disabled")
		return nil, nil
	}

	sdkClient := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)
	messenger := infraLark.NewMessenger(sdkClient, cfg.ReceiveIDType, cfg.ReceiveID, cfg.ConsoleURL, logger)

	notifierCfg := worker.DefaultReviewNotifierConfig()
	if queueCfg.QueueSize > 0 {
		notifierCfg.QueueSize = queueCfg.QueueSize
	}
	if queueCfg.SendTimeout > 0 {
		notifierCfg.SendTimeout = queueCfg.SendTimeout
	}

	return worker.NewReviewNotifier(notifierCfg, messenger, logger), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Store      *service.StateStore
	Evaluator  port.ClaimEvaluator
	Notifier   port.ReviewNotifier // may be nil
	AdminToken string
	Logger     *zap.Logger
}

// ProvideServices creates all application services and loads persisted claims.
func ProvideServices(ctx context.Context, deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	claims, err := service.NewClaimService(ctx, deps.Store, deps.Evaluator, deps.Notifier, serviceLogger)
	if err != nil {
		return nil, err
	}

	encoder := document.NewEncoder(document.DefaultMaxFileSize, deps.Logger)
	drafts := service.NewDraftService(encoder, claims, serviceLogger)

	return &ServiceBundle{
		Claims:   claims,
		Drafts:   drafts,
		Sessions: service.NewSessionService(deps.Store, claims, drafts, deps.AdminToken, serviceLogger),
		Exporter: export.NewLedgerExporter(deps.Logger),
	}, nil
}

// ProvideWorkers registers the background workers without starting them.
// notifier may be nil.
func ProvideWorkers(notifier *worker.ReviewNotifier, logger *zap.Logger) (*worker.WorkerManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(logger)
	if notifier != nil {
		manager.Register(notifier)
	}
	return manager, nil
}
