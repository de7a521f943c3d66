package usecase

import (
	"context"
	"fmt"
	"time"

	"service-marketplace/internal/data/entity"
	"service-marketplace/internal/data/repository"

	"github.com/google/uuid"
)

// ConflictChecker must be called inside BookingRepository.WithinSchedule for the same
// provider and date, otherwise the answer can be stale by the time it is acted on.
type ConflictChecker interface {
	HasConflict(ctx context.Context, providerID uuid.UUID, date time.Time, startMinute, durationMinutes int, excludeID *uuid.UUID) (bool, error)
	// FindConflict returns the first active booking overlapping the window, or nil.
	FindConflict(ctx context.Context, providerID uuid.UUID, date time.Time, startMinute, durationMinutes int, excludeID *uuid.UUID) (*entity.Booking, error)
}

type conflictChecker struct {
	bookings repository.BookingRepository
}

func NewConflictChecker(bookings repository.BookingRepository) ConflictChecker {
	return &conflictChecker{bookings: bookings}
}

func (c *conflictChecker) HasConflict(ctx context.Context, providerID uuid.UUID, date time.Time, startMinute, durationMinutes int, excludeID *uuid.UUID) (bool, error) {
	existing, err := c.FindConflict(ctx, providerID, date, startMinute, durationMinutes, excludeID)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

func (c *conflictChecker) FindConflict(ctx context.Context, providerID uuid.UUID, date time.Time, startMinute, durationMinutes int, excludeID *uuid.UUID) (*entity.Booking, error) {
	active, err := c.bookings.FindActiveByProviderAndDate(ctx, providerID, entity.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("load provider schedule: %w", err)
	}

	end := startMinute + durationMinutes
	for _, b := range active {
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if entity.Overlaps(startMinute, end, b.StartMinute, b.EndMinute()) {
			return b, nil
		}
	}
	return nil, nil
}
