package wire

import (
	"service-marketplace/internal/adaptor"
	"service-marketplace/internal/data/repository"
	"service-marketplace/pkg/middleware"
	"service-marketplace/pkg/ratelimit"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	repo *repository.Repository,
	limiter ratelimit.Limiter,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))
		r.Use(middleware.RateLimit(limiter, log))

		// POST /api/bookings - Create booking (customer)
		r.Post("/", bookingHandler.CreateBooking)

		// GET /api/bookings - List bookings visible to the caller
		r.Get("/", bookingHandler.ListBookings)

		// GET /api/bookings/{id} - Booking detail (participants and admin)
		r.Get("/{id}", bookingHandler.GetBooking)

		// GET /api/bookings/{id}/timeline - Status history
		r.Get("/{id}/timeline", bookingHandler.GetTimeline)

		// PUT /api/bookings/{id} - Edit notes (each side its own fields)
		r.Put("/{id}", bookingHandler.UpdateBooking)

		// PUT /api/bookings/{id}/status - Move booking through its lifecycle
		r.Put("/{id}/status", bookingHandler.UpdateStatus)

		// DELETE /api/bookings/{id} - Cancel booking
		r.Delete("/{id}", bookingHandler.CancelBooking)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/bookings", func(r chi.Router) {
		// Require both authentication AND admin role
		r.Use(middleware.AuthSession(repo.Session, log))
		r.Use(middleware.Admin(log))
		r.Use(middleware.RateLimit(limiter, log))

		// PUT /api/admin/bookings/{id}/dispute - Resolve a disputed booking
		r.Put("/{id}/dispute", bookingHandler.ResolveDispute)
	})
}
