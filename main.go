package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"carregistry/config"
	"carregistry/db"
	chttp "carregistry/http"
	"carregistry/logging"
	"carregistry/ml"
	"carregistry/monitoring"
	"carregistry/pipeline"
	"carregistry/registry"
	"carregistry/scheduler"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		zap.NewExample().Fatal("failed to create logger", zap.Error(err))
	}
	defer logger.Sync()

	// 2. Initialize database
	database, err := db.Open(db.Config{Path: cfg.Database.Path, EnableWAL: cfg.Database.EnableWAL}, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	cars, err := db.NewCarRepository(database, cfg.Cache.CarCacheSize)
	if err != nil {
		logger.Fatal("failed to create car repository", zap.Error(err))
	}
	observations := db.NewObservationRepository(database)
	trainingLog := db.NewTrainingLogRepository(database)

	// 3. Import seed observations
	ingester := pipeline.NewIngester(pipeline.NewDataCleaner(cfg.Observations.MaxMileage, logger), observations, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Observations.SeedFile != "" {
		if _, err := ingester.ImportFile(ctx, cfg.Observations.SeedFile); err != nil {
			logger.Fatal("failed to import seed observations", zap.String("path", cfg.Observations.SeedFile), zap.Error(err))
		}
	}

	// 4. Train the initial model
	hub := monitoring.NewHub(cfg.HTTP.AllowedOrigins, logger)
	go hub.Run()
	defer hub.Stop()

	metrics := monitoring.NewMetricsCollector()
	predictor := ml.NewPredictionService()
	trainPipeline := ml.NewTrainingPipeline(ml.TrainOptions{
		LearningRate: cfg.ML.LearningRate,
		MaxEpochs:    cfg.ML.MaxEpochs,
		Tolerance:    cfg.ML.Tolerance,
		L2:           cfg.ML.L2,
	})
	retrainer := scheduler.NewRetrainer(observations, trainPipeline, predictor,
		scheduler.WithRecorder(trainingLog),
		scheduler.WithNotifier(hub),
		scheduler.WithMetrics(metrics),
		scheduler.WithLogger(logger))

	if _, err := retrainer.Retrain(ctx); err != nil {
		if errors.Is(err, ml.ErrNoTrainingData) {
			logger.Fatal("no observations available, load a seed file before starting", zap.Error(err))
		}
		logger.Fatal("initial training failed", zap.Error(err))
	}

	if err := retrainer.Start(cfg.ML.RetrainInterval); err != nil {
		logger.Fatal("failed to start retrainer", zap.Error(err))
	}
	defer retrainer.Stop()

	if cfg.Observations.Watch {
		watcher := pipeline.NewSeedWatcher(cfg.Observations.SeedFile, cfg.Observations.Debounce, func(ctx context.Context) error {
			if _, err := ingester.ImportFile(ctx, cfg.Observations.SeedFile); err != nil {
				return err
			}
			_, err := retrainer.Retrain(ctx)
			return err
		}, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("seed watcher stopped", zap.Error(err))
			}
		}()
	}

	// 5. Start HTTP server
	server := chttp.NewServer(chttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.Timeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		RateLimitRPS:   cfg.HTTP.RateLimit.RPS,
		RateLimitBurst: cfg.HTTP.RateLimit.Burst,
	}, &chttp.Handlers{
		Cars:         registry.NewService(cars, logger),
		Predictor:    predictor,
		Trainer:      retrainer,
		Observations: observations,
		TrainingLog:  trainingLog,
		Retrainer:    retrainer,
		Ingestion:    ingester,
		WebSocket:    hub.HandleWebSocket,
		Metrics:      metrics,
	}, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// 6. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}
