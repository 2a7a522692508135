// Package bootstrap provides dependency initialization for the AdForge API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/adforge/adforge-api/internal/config"
	"github.com/adforge/adforge-api/internal/gateway"
	"github.com/adforge/adforge-api/internal/openai"
	"github.com/adforge/adforge-api/internal/pipeline"
	"github.com/adforge/adforge-api/internal/prompt"
	"github.com/adforge/adforge-api/internal/record"
	"github.com/adforge/adforge-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Pipeline *pipeline.Service
	Repo     record.Repository
	Store    storage.Storage
	// Local is set when artifacts are stored on local disk and should be
	// served by the HTTP layer.
	Local *storage.LocalStorage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, local, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	repo, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	var clientOpts []openai.ClientOption
	clientOpts = append(clientOpts, openai.WithAPIKey(cfg.OpenAIAPIKey))
	if cfg.OpenAIBaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	client, err := openai.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}

	gw := gateway.NewOpenAIGateway(client, gateway.Config{
		TextModel:     cfg.TextModel,
		VideoModel:    cfg.VideoModel,
		VideoSeconds:  cfg.VideoSeconds,
		VideoSize:     cfg.VideoSize,
		MaxImageBytes: cfg.MaxUploadMB << 20,
	})

	templates, err := prompt.Load(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}

	svc := pipeline.NewService(repo, gw, store, templates, logger)

	return &Dependencies{
		Pipeline: svc,
		Repo:     repo,
		Store:    store,
		Local:    local,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, *storage.LocalStorage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.DataDir, cfg.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("data_dir", cfg.DataDir),
	)
	return localStore, localStore, nil
}

// initRepository opens the database and migrates the record schema.
func initRepository(cfg *config.Config, logger *slog.Logger) (*record.GormRepository, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DBDSN)
	default:
		dialector = sqlite.Open(cfg.DBDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := record.NewGormRepository(db)
	if err := repo.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info("database configured",
		slog.String("driver", cfg.DBDriver),
	)
	return repo, nil
}
