package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/devkekops/weekender/internal/app/config"
	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/handlers"
	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/metrics"
	"github.com/devkekops/weekender/internal/app/settlement"
	"github.com/devkekops/weekender/internal/app/storage"
)

// openRepo picks Postgres when a database URI is configured and the
// in-memory store otherwise.
func openRepo(ctx context.Context, databaseURI string, settings entity.Settings) (storage.Repository, error) {
	if databaseURI == "" {
		logger.Logger.Warn().Msg("no database configured, records are kept in memory")
		return storage.NewRepoMemory(settings), nil
	}
	repo, err := storage.NewRepoDB(databaseURI)
	if err != nil {
		return nil, err
	}
	err = repo.InTx(ctx, func(q storage.Querier) error {
		return q.PutSettings(ctx, settings)
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	return repo, nil
}

func NewHandler(ctx context.Context, cfg *config.Config) (http.Handler, func() error, error) {
	settings, catalogue, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, nil, err
	}

	repo, err := openRepo(ctx, cfg.DatabaseURI, settings)
	if err != nil {
		return nil, nil, err
	}

	engine := settlement.NewEngine(repo,
		settlement.WithRetry(cfg.MaxTxAttempts, cfg.RetryBaseDelay),
		settlement.WithMetrics(metrics.Default()),
	)
	return handlers.NewBaseHandler(engine, catalogue, cfg.SecretKey, cfg.OperatorKey), repo.Close, nil
}

func Serve(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	handler, closeRepo, err := NewHandler(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer closeRepo()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Logger.Info().Str("address", cfg.RunAddress).Msg("serving")
	return server.ListenAndServe()
}
