// internal/wire/wire.go
package wire

import (
	"service-marketplace/internal/adaptor"
	"service-marketplace/internal/data/repository"
	"service-marketplace/internal/usecase"
	"service-marketplace/pkg/lock"
	"service-marketplace/pkg/middleware"
	"service-marketplace/pkg/ratelimit"
	"service-marketplace/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Dependencies are the infrastructure pieces built by main.
type Dependencies struct {
	Repo     *repository.Repository
	Locker   lock.Locker
	Notifier usecase.Notifier
	Checks   map[string]adaptor.Pinger
}

// App menyimpan semua dependencies
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring menginisialisasi semua dependencies
func Wiring(deps Dependencies, config *utils.Config, logger *zap.Logger) *App {
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewLocal()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = usecase.NewAsyncNotifier(usecase.NewInboxDispatcher(deps.Repo.Notification), config.Notify.Timeout, logger)
	}

	service := usecase.NewService(deps.Repo, locker, notifier, config, logger)
	handler := adaptor.NewHandler(service, adaptor.NewHealthHandler(deps.Checks, logger), logger)

	limiter := ratelimit.NewKeyedLimiter(
		config.RateLimit.RequestsPerSecond,
		config.RateLimit.Burst,
		config.RateLimit.IdleTTL,
	)

	router := setupRouter(handler, deps.Repo, limiter, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

// setupRouter konfigurasi Chi router
func setupRouter(
	handler *adaptor.Handler,
	repo *repository.Repository,
	limiter ratelimit.Limiter,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	// Apply routes
	wireBooking(r, handler.Booking, repo, limiter, logger)

	// Health check endpoint
	r.Get("/health", handler.Health.Health)

	return r
}
