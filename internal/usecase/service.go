package usecase

import (
	"service-marketplace/internal/data/repository"
	"service-marketplace/pkg/lock"
	"service-marketplace/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Booking BookingService
	Status  BookingStatusMachine
	Pricing PricingCalculator
}

func NewService(repo *repository.Repository, locker lock.Locker, notifier Notifier, config *utils.Config, log *zap.Logger) *Service {
	status := NewBookingStatusMachine(repo.Booking, repo.Rating, log)
	pricing := NewPricingCalculator(config.Pricing)

	return &Service{
		Booking: NewBookingService(repo, status, pricing, locker, notifier, log),
		Status:  status,
		Pricing: pricing,
	}
}
