package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/app"
	"collegestar/notes-portal/notes-portal-backend/internal/config"
	"collegestar/notes-portal/notes-portal-backend/internal/maintenance"
)

// sweepRunner performs one orphan sweep.
type sweepRunner interface {
	SweepOnce(ctx context.Context) (maintenance.SweepResult, error)
}

// SweepWorker removes orphaned uploads outside the API process
type SweepWorker struct {
	sweeper sweepRunner
	logger  *zap.Logger
	config  SweepWorkerConfig
	done    chan struct{}
}

// SweepWorkerConfig configuration for the sweep worker
type SweepWorkerConfig struct {
	Interval     time.Duration
	SweepTimeout time.Duration
}

// DefaultSweepWorkerConfig returns default configuration
func DefaultSweepWorkerConfig() SweepWorkerConfig {
	return SweepWorkerConfig{
		Interval:     time.Hour,
		SweepTimeout: 10 * time.Minute,
	}
}

func NewSweepWorker(sweeper sweepRunner, logger *zap.Logger, config SweepWorkerConfig) *SweepWorker {
	return &SweepWorker{
		sweeper: sweeper,
		logger:  logger,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start sweeps immediately and then every Interval until ctx ends or Stop is
// called.
func (w *SweepWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sweep worker", zap.Duration("interval", w.config.Interval))

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Sweep worker shutting down")
			return nil
		case <-w.done:
			w.logger.Info("Sweep worker stopped")
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SweepWorker) Stop() {
	close(w.done)
}

func (w *SweepWorker) runOnce(ctx context.Context) (maintenance.SweepResult, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, w.config.SweepTimeout)
	defer cancel()

	result, err := w.sweeper.SweepOnce(sweepCtx)
	if err != nil {
		w.logger.Error("Sweep failed", zap.Error(err))
	}
	return result, err
}

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	interval := flag.Duration("interval", DefaultSweepWorkerConfig().Interval, "time between sweeps")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to load AWS config", zap.Error(err))
	}
	repos, err := app.OpenRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer repos.Close()

	store, err := app.OpenStorage(cfg, awsCfg)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}

	workerConfig := DefaultSweepWorkerConfig()
	workerConfig.Interval = *interval
	worker := NewSweepWorker(
		maintenance.NewSweeper(store, repos.Notes, cfg.Maintenance.OrphanGrace, logger),
		logger,
		workerConfig,
	)

	if *once {
		if _, err := worker.runOnce(ctx); err != nil {
			os.Exit(1)
		}
		return
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := worker.Start(ctx); err != nil {
		logger.Error("Worker error", zap.Error(err))
	}
	logger.Info("Sweep worker exited")
}
