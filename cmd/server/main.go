// Package main is the entry point of the application
package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tecu23/chess-clock/internal/auth"
	"github.com/tecu23/chess-clock/pkg/clock"
	"github.com/tecu23/chess-clock/pkg/config"
	"github.com/tecu23/chess-clock/pkg/events"
	"github.com/tecu23/chess-clock/pkg/manager"
	"github.com/tecu23/chess-clock/pkg/repository"
	"github.com/tecu23/chess-clock/pkg/server"
)

// App encapsulates global dependencies
type application struct {
	Auth       *auth.APIKeyAuth
	Logger     *zap.Logger
	Config     *config.Config
	Publisher  *events.Publisher
	Manager    *manager.Manager
	Repository repository.GameRepository
	Hub        *server.Hub
	Server     *http.Server
	Upgrader   websocket.Upgrader

	StartTime time.Time
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.String("port", "", "server port, overrides PORT")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if *debug {
		cfg.Debug = true
	}
	if *port != "" {
		cfg.Port = *port
	}

	// Initialize logger
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Fatal("startup error", zap.Error(err))
	}

	go app.Hub.Run()

	if err := app.serve(); err != nil {
		logger.Fatal("error serving", zap.Error(err))
	}
}

func newApplication(cfg *config.Config, logger *zap.Logger) (*application, error) {
	presets, err := clock.LoadPresets(cfg.PresetsFile)
	if err != nil {
		return nil, err
	}

	defaultPreset, ok := clock.FindPreset(presets, cfg.DefaultPreset)
	if !ok {
		defaultPreset = presets[0]
		logger.Warn("default preset not found, using first preset",
			zap.String("configured", cfg.DefaultPreset),
			zap.Stringer("preset", defaultPreset),
		)
	}

	repo, err := openRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize event publisher
	publisher := events.NewPublisher()

	// Initialize game manager
	gm := manager.NewManager(repo, manager.Options{
		TickSource:    clock.SystemTicks{},
		TickPeriod:    cfg.TickPeriod,
		PauseFeedback: clock.Player(cfg.PauseFeedback),
		Sound:         cfg.Sound,
	}, logger, publisher)

	hub := server.NewHub(gm, presets, defaultPreset, publisher, logger)

	app := &application{
		Auth:       auth.NewAPIKeyAuth(cfg.APIKeys),
		Logger:     logger,
		Config:     cfg,
		Publisher:  publisher,
		Manager:    gm,
		Repository: repo,
		Hub:        hub,
		StartTime:  time.Now(),
	}
	app.Upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     app.checkOrigin,
	}

	if !app.Auth.Enabled() {
		logger.Warn("no API keys configured, websocket endpoint is open")
	}

	logger.Info("clock server configured",
		zap.Int("presets", len(presets)),
		zap.Stringer("default_preset", defaultPreset),
		zap.Duration("tick_period", cfg.TickPeriod),
		zap.Bool("sound", cfg.Sound),
	)

	return app, nil
}

func openRepository(cfg *config.Config, logger *zap.Logger) (repository.GameRepository, error) {
	if cfg.DatabasePath == "" {
		logger.Info("archiving finished games in memory")
		return repository.NewInMemoryRepository(logger), nil
	}

	repo, err := repository.OpenSQLite(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open game archive: %w", err)
	}
	logger.Info("archiving finished games in sqlite", zap.String("path", cfg.DatabasePath))

	return repo, nil
}

func initLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}

// Shutdown cleans up resources
func (app *application) Shutdown() {
	// Shut down hub
	if app.Hub != nil {
		app.Hub.Shutdown()
	}

	// Stop every clock before closing the archive
	if app.Manager != nil {
		app.Manager.Shutdown()
	}

	if app.Repository != nil {
		if err := app.Repository.Close(); err != nil {
			app.Logger.Error("failed to close game archive", zap.Error(err))
		}
	}

	app.Logger.Info("All components shut down successfully")
}
