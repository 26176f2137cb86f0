package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"bedbug-detector/internal/config"
	"bedbug-detector/internal/logger"
	"bedbug-detector/internal/repository/sqlite"
	"bedbug-detector/internal/route"
	"bedbug-detector/internal/service"
	"bedbug-detector/internal/service/ai"
	"bedbug-detector/internal/service/ai/backend"
	"bedbug-detector/internal/service/websocket"
	"bedbug-detector/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	classifier *ai.Classifier
	hubService *websocket.HubService
	manager    *service.Manager
}

// NewApp builds the server: store, model, live feed and manager.
func NewApp(cfg *config.Config) (*App, error) {
	return build(cfg, true)
}

// NewOffline builds everything except the live feed, for one-shot CLI commands.
func NewOffline(cfg *config.Config) (*App, error) {
	return build(cfg, false)
}

func build(cfg *config.Config, live bool) (_ *App, err error) {
	var log *logger.Logger
	if live {
		log, err = logger.NewLogger(cfg)
	} else {
		log, err = logger.NewQuiet(cfg.LogDirectory)
	}
	if err != nil {
		return nil, err
	}
	a := &App{config: cfg, logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = sqlite.Open(cfg.DatabaseDriver, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a.classifier, err = backend.LoadClassifier(cfg, log)
	if err != nil {
		return nil, err
	}

	predictor, err := ai.NewPredictor(a.classifier,
		ai.WithThresholds(ai.Thresholds{
			Threshold:     cfg.Threshold,
			UncertainLow:  cfg.UncertainLow,
			UncertainHigh: cfg.UncertainHigh,
		}),
		ai.WithParallelEscalation(cfg.ParallelEscalation),
	)
	if err != nil {
		return nil, err
	}

	if live {
		a.hubService = websocket.NewHubService(log)
	}

	a.manager = service.NewManager(predictor, sqlite.NewPredictionRepository(a.db), a.hubService, cfg, log)
	return a, nil
}

func (a *App) Manager() *service.Manager {
	return a.manager
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

// Run serves HTTP, the live feed and, when a token is configured, the
// Telegram bot until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           route.SetupRoutes(a.manager, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.hubService != nil {
		g.Go(func() error {
			a.hubService.Run(gctx)
			return nil
		})
	}

	if a.config.TelegramToken != "" {
		bot, err := telegram.NewBot(a.config.TelegramToken, a.manager, a.logger)
		if err != nil {
			a.logger.Error("Telegram bot disabled: %v", err)
		} else {
			g.Go(func() error { return bot.Run(gctx) })
		}
	}

	g.Go(func() error {
		a.logger.Info("🚀 Bedbug Detector API on http://localhost:%d", a.config.Port)
		a.logger.Info("🤖 Model: %s (loaded: %t)", a.config.ModelPath, a.manager.ModelLoaded())
		a.logger.Info("🗄️  Database: %s (%s)", a.config.DatabasePath, a.config.DatabaseDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("🛑 Shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the model, the database and the log files.
func (a *App) Close() error {
	var errs []error
	if a.classifier != nil {
		errs = append(errs, a.classifier.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}
