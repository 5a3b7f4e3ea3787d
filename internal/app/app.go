// Package app initializes and runs the content analysis service.
// It configures logging, storage, authentication, analysis and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/contentapi/internal/analysis"
	"github.com/patric-chuzhbe/contentapi/internal/auth"
	"github.com/patric-chuzhbe/contentapi/internal/backfill"
	"github.com/patric-chuzhbe/contentapi/internal/config"
	"github.com/patric-chuzhbe/contentapi/internal/credentials"
	"github.com/patric-chuzhbe/contentapi/internal/db/jsondb"
	"github.com/patric-chuzhbe/contentapi/internal/db/memorystorage"
	"github.com/patric-chuzhbe/contentapi/internal/db/postgresdb"
	"github.com/patric-chuzhbe/contentapi/internal/db/storage"
	"github.com/patric-chuzhbe/contentapi/internal/ipchecker"
	"github.com/patric-chuzhbe/contentapi/internal/logger"
	"github.com/patric-chuzhbe/contentapi/internal/models"
	"github.com/patric-chuzhbe/contentapi/internal/router"
	"github.com/patric-chuzhbe/contentapi/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App encapsulates the configuration, HTTP handler, storage backend and
// the backfill worker needed to run the service.
type App struct {
	cfg          *config.Config
	db           storage.Storage
	backfill     *backfill.Backfill
	stopBackfill context.CancelFunc
	sweepDone    chan struct{}
	httpHandler  http.Handler
}

// New loads the configuration and initializes the logger, then builds
// the App from them.
func New() (*App, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	return newWithConfig(cfg)
}

func newWithConfig(cfg *config.Config) (*App, error) {
	var err error
	app := &App{cfg: cfg}

	if cfg.JWTSecretKey == config.DefaultJWTSecretKey {
		logger.Log.Warnln("JWT_SECRET_KEY is not set, the development default is used to sign tokens")
	}

	app.db, err = getStorageByType(cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecretKey), cfg.JWTAlgorithm)
	if err != nil {
		return nil, errors.Join(err, app.db.Close())
	}

	checker, err := ipchecker.New(cfg.TrustedSubnet)
	if err != nil {
		return nil, errors.Join(err, app.db.Close())
	}

	engine := newEngine(cfg)

	app.backfill = backfill.New(
		app.db,
		engine,
		cfg.BackfillQueueCapacity,
		cfg.BackfillInterval,
		backfill.WithMaxAttempts(cfg.BackfillMaxAttempts),
	)
	backfillRunCtx, stopBackfill := context.WithCancel(context.Background())
	app.stopBackfill = stopBackfill

	app.backfill.Run(backfillRunCtx)
	app.backfill.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `app.backfill.ListenErrors()`:", zap.Error(err))
	})

	sweepStartedAt := time.Now().UTC()
	app.sweepDone = make(chan struct{})
	go func() {
		defer close(app.sweepDone)
		enqueued, err := app.backfill.EnqueueUnanalyzed(backfillRunCtx, sweepStartedAt)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Errorln("Error calling the `app.backfill.EnqueueUnanalyzed()`: ", err)
		}
		if enqueued > 0 {
			logger.Log.Infow("queued unanalysed records for backfill", "count", enqueued)
		}
	}()

	svc := service.New(
		app.db,
		credentials.New(credentials.DefaultRounds),
		tokens,
		engine,
		cfg.AccessTokenTTL(),
		service.WithBackfill(app.backfill),
	)

	app.httpHandler = router.New(
		svc,
		auth.New(tokens, app.db),
		checker,
	)

	return app, nil
}

func newEngine(cfg *config.Config) *analysis.Engine {
	opts := []analysis.Option{analysis.WithTimeout(cfg.AnalysisTimeout)}

	if cfg.IsAnalysisProviderConfigured() {
		providerOpts := []analysis.OpenAIOption{analysis.WithModel(cfg.OpenAIModel)}
		if cfg.OpenAIBaseURL != "" {
			providerOpts = append(providerOpts, analysis.WithBaseURL(cfg.OpenAIBaseURL))
		}
		opts = append(opts, analysis.WithProvider(analysis.NewOpenAIProvider(cfg.OpenAIAPIKey, providerOpts...)))
		logger.Log.Infow("analysis provider configured", "model", cfg.OpenAIModel)
	} else {
		logger.Log.Infoln("OPENAI_API_KEY is not set, content is analysed by the keyword heuristic")
	}

	return analysis.NewEngine(opts...)
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Stopping the backfill worker and closing the storage...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.shutdown(shutdownCtx)

	case err := <-serverErrCh:
		return errors.Join(fmt.Errorf("server error: %w", err), a.shutdown(context.Background()))
	}
}

// shutdown stops the backfill worker and the startup sweep, waits for them
// up to ctx's deadline and closes the storage.
func (a *App) shutdown(ctx context.Context) error {
	a.stopBackfill()

	for _, done := range []<-chan struct{}{a.backfill.Done(), a.sweepDone} {
		select {
		case <-done:
		case <-ctx.Done():
			logger.Log.Warnln("backfill worker did not stop in time")
		}
	}

	return a.db.Close()
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New(), nil
}
