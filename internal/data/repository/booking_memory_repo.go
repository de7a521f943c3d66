package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"service-marketplace/internal/data/entity"
	"service-marketplace/pkg/lock"

	"github.com/google/uuid"
)

// memoryBookingRepository keeps bookings in process. Schedule units are serialized by a
// keyed mutex on providerId:date.
type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*entity.Booking
	history  map[uuid.UUID][]*entity.StatusChange
	schedule *lock.Local
}

func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{
		bookings: make(map[uuid.UUID]*entity.Booking),
		history:  make(map[uuid.UUID][]*entity.StatusChange),
		schedule: lock.NewLocal(),
	}
}

func (r *memoryBookingRepository) WithinSchedule(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	return r.schedule.WithLock(ctx, entity.ScheduleKey(providerID, date), fn)
}

func (r *memoryBookingRepository) Create(_ context.Context, booking *entity.Booking, change *entity.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bookings[booking.ID] = booking.Clone()
	r.appendChange(change)
	return nil
}

func (r *memoryBookingRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	return b.Clone(), nil
}

func (r *memoryBookingRepository) FindActiveByProviderAndDate(_ context.Context, providerID uuid.UUID, date time.Time) ([]*entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	day := entity.DateOnly(date)
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.ProviderID == providerID && b.ScheduledDate.Equal(day) && b.Status.IsActive() {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out, nil
}

func (r *memoryBookingRepository) List(_ context.Context, filter BookingFilter) ([]*entity.Booking, error) {
	r.mu.RLock()
	matched := r.match(filter)
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.After(b.ScheduledDate)
		}
		if a.StartMinute != b.StartMinute {
			return a.StartMinute > b.StartMinute
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	end := len(matched)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], nil
}

func (r *memoryBookingRepository) Count(_ context.Context, filter BookingFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.match(filter))), nil
}

func (r *memoryBookingRepository) UpdateStatus(_ context.Context, booking *entity.Booking, from entity.BookingStatus, change *entity.StatusChange) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[booking.ID]
	if !ok || stored.Status != from {
		return false, nil
	}

	updated := stored.Clone()
	updated.Status = booking.Status
	updated.UpdatedAt = booking.UpdatedAt
	updated.CompletedAt = booking.CompletedAt
	updated.CancelledAt = booking.CancelledAt
	updated.CancellationReason = booking.CancellationReason
	updated.DisputedAt = booking.DisputedAt
	updated.DisputeReason = booking.DisputeReason
	r.bookings[booking.ID] = updated

	r.appendChange(change)
	return true, nil
}

func (r *memoryBookingRepository) UpdateNotes(_ context.Context, booking *entity.Booking) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[booking.ID]
	if !ok || stored.Status.IsTerminal() {
		return false, nil
	}

	updated := stored.Clone()
	updated.CustomerNotes = booking.CustomerNotes
	updated.ProviderNotes = booking.ProviderNotes
	updated.CancellationReason = booking.CancellationReason
	updated.UpdatedAt = booking.UpdatedAt
	r.bookings[booking.ID] = updated
	return true, nil
}

func (r *memoryBookingRepository) ResolveDispute(_ context.Context, id uuid.UUID, resolution string, resolvedBy uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[id]
	if !ok || stored.Status != entity.BookingStatusDisputed || stored.DisputeResolution != nil {
		return false, nil
	}

	updated := stored.Clone()
	updated.DisputeResolution = &resolution
	updated.DisputeResolvedBy = &resolvedBy
	updated.DisputeResolvedAt = &at
	updated.UpdatedAt = at
	r.bookings[id] = updated
	return true, nil
}

func (r *memoryBookingRepository) FindHistory(_ context.Context, bookingID uuid.UUID) ([]*entity.StatusChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.history[bookingID]
	out := make([]*entity.StatusChange, len(src))
	for i, c := range src {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

// caller holds r.mu
func (r *memoryBookingRepository) appendChange(change *entity.StatusChange) {
	if change == nil {
		return
	}
	cp := *change
	r.history[change.BookingID] = append(r.history[change.BookingID], &cp)
}

// caller holds r.mu
func (r *memoryBookingRepository) match(filter BookingFilter) []*entity.Booking {
	var out []*entity.Booking
	for _, b := range r.bookings {
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.CustomerID != nil && b.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.ProviderID != nil && b.ProviderID != *filter.ProviderID {
			continue
		}
		if filter.From != nil && b.ScheduledDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && b.ScheduledDate.After(*filter.To) {
			continue
		}
		out = append(out, b.Clone())
	}
	return out
}
