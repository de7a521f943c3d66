package repository

import (
	"service-marketplace/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Booking      BookingRepository
	Service      ServiceOfferingRepository
	Notification NotificationRepository
	Rating       RatingRepository
	Session      SessionRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Booking:      NewBookingRepository(db, log),
		Service:      NewServiceOfferingRepository(db, log),
		Notification: NewNotificationRepository(db, log),
		Rating:       NewRatingRepository(db, log),
		Session:      NewSessionRepository(db, log),
	}
}

// Memory is the in-process store used by STORAGE_DRIVER=memory and by tests.
type Memory struct {
	Services      *MemoryServiceOfferingRepository
	Notifications *MemoryNotificationRepository
	Ratings       *MemoryRatingRepository
	Sessions      *MemorySessionRepository
}

func NewMemoryRepository() (*Repository, *Memory) {
	mem := &Memory{
		Services:      NewMemoryServiceOfferingRepository(),
		Notifications: NewMemoryNotificationRepository(),
		Ratings:       NewMemoryRatingRepository(),
		Sessions:      NewMemorySessionRepository(),
	}
	return &Repository{
		Booking:      NewMemoryBookingRepository(),
		Service:      mem.Services,
		Notification: mem.Notifications,
		Rating:       mem.Ratings,
		Session:      mem.Sessions,
	}, mem
}
