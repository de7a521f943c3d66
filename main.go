// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"service-marketplace/cmd"
	"service-marketplace/internal/adaptor"
	"service-marketplace/internal/data/repository"
	"service-marketplace/internal/usecase"
	"service-marketplace/internal/wire"
	"service-marketplace/pkg/database"
	"service-marketplace/pkg/lock"
	"service-marketplace/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("storage", config.App.StorageDriver),
		zap.String("lock", config.Lock.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]adaptor.Pinger{}

	// Initialize all repositories
	var repos *repository.Repository
	switch config.App.StorageDriver {
	case utils.StorageDriverMemory:
		repos, _ = repository.NewMemoryRepository()
		logger.Warn("Using in-memory storage, data is lost on restart")
	default:
		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := repository.InitSchema(ctx, db); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}

		logger.Info("Database connected successfully")
		repos = repository.NewRepository(db, logger)
		checks["postgres"] = db
	}

	var locker lock.Locker = lock.NewLocal()
	if config.Lock.Driver == utils.LockDriverRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		locker = lock.NewRedis(client, config.Lock.TTL, logger)
		checks["redis"] = adaptor.PingerFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	notifier := usecase.NewAsyncNotifier(usecase.NewInboxDispatcher(repos.Notification), config.Notify.Timeout, logger)

	// Wire all dependencies
	app := wire.Wiring(wire.Dependencies{
		Repo:     repos,
		Locker:   locker,
		Notifier: notifier,
		Checks:   checks,
	}, config, logger)

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	if err := cmd.APIServer(ctx, app.Router, config.App.Port, config.App.ShutdownTimeout, logger, notifier.Wait); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}
	logger.Info("Server stopped")
}
