package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"service-marketplace/internal/data/entity"
	"service-marketplace/internal/data/repository"
	"service-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type party uint8

const (
	partyCustomer party = 1 << iota
	partyProvider
	partyAdmin
)

type edge struct {
	from entity.BookingStatus
	to   entity.BookingStatus
}

// capabilities is the whole lifecycle: an edge missing here is illegal for everyone.
var capabilities = map[edge]party{
	{entity.BookingStatusPending, entity.BookingStatusConfirmed}:    partyCustomer,
	{entity.BookingStatusPending, entity.BookingStatusCancelled}:    partyCustomer | partyProvider | partyAdmin,
	{entity.BookingStatusConfirmed, entity.BookingStatusInProgress}: partyProvider,
	{entity.BookingStatusConfirmed, entity.BookingStatusCancelled}:  partyCustomer | partyProvider | partyAdmin,
	{entity.BookingStatusInProgress, entity.BookingStatusCompleted}: partyProvider,
	{entity.BookingStatusCompleted, entity.BookingStatusDisputed}:   partyCustomer | partyProvider,
}

// StatusChanged is emitted after a transition has been persisted.
type StatusChanged struct {
	BookingID  uuid.UUID
	CustomerID uuid.UUID
	ProviderID uuid.UUID
	OldStatus  entity.BookingStatus
	NewStatus  entity.BookingStatus
	ActorID    uuid.UUID
	ActorRole  entity.UserRole
	Reason     *string
	OccurredAt time.Time
}

type StatusChangedHandler func(ctx context.Context, event StatusChanged)

type BookingStatusMachine interface {
	Transition(ctx context.Context, bookingID uuid.UUID, target entity.BookingStatus, actor entity.Actor, reason *string) (*entity.Booking, error)
	// Check validates the edge and the actor without touching storage.
	Check(booking *entity.Booking, target entity.BookingStatus, actor entity.Actor) error
	OnStatusChanged(handler StatusChangedHandler)
}

type bookingStatusMachine struct {
	bookings repository.BookingRepository
	ratings  repository.RatingRepository
	log      *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	handlers []StatusChangedHandler
}

func NewBookingStatusMachine(bookings repository.BookingRepository, ratings repository.RatingRepository, log *zap.Logger) BookingStatusMachine {
	return &bookingStatusMachine{
		bookings: bookings,
		ratings:  ratings,
		log:      log.With(zap.String("service", "status_machine")),
		now:      time.Now,
	}
}

func (m *bookingStatusMachine) OnStatusChanged(handler StatusChangedHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

func (m *bookingStatusMachine) Check(booking *entity.Booking, target entity.BookingStatus, actor entity.Actor) error {
	if !target.IsValid() {
		return apperror.Validation(map[string]string{"status": "Unknown booking status"}, "invalid booking status %q", target)
	}

	allowed, ok := capabilities[edge{booking.Status, target}]
	if !ok {
		return apperror.IllegalTransition(string(booking.Status), string(target))
	}

	if allowed&actorParty(booking, actor) == 0 {
		return apperror.Forbidden("%s %s may not move booking from %s to %s",
			actor.Role, actor.ID, booking.Status, target)
	}
	return nil
}

// actorParty requires both the matching participant id and the matching role.
func actorParty(booking *entity.Booking, actor entity.Actor) party {
	switch actor.Role {
	case entity.RoleCustomer:
		if actor.ID == booking.CustomerID {
			return partyCustomer
		}
	case entity.RoleProvider:
		if actor.ID == booking.ProviderID {
			return partyProvider
		}
	case entity.RoleAdmin:
		return partyAdmin
	}
	return 0
}

func (m *bookingStatusMachine) Transition(ctx context.Context, bookingID uuid.UUID, target entity.BookingStatus, actor entity.Actor, reason *string) (*entity.Booking, error) {
	booking, err := m.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, apperror.NotFound("booking")
	}

	if err := m.Check(booking, target, actor); err != nil {
		m.log.Warn("Transition rejected",
			zap.String("booking_id", bookingID.String()),
			zap.String("from", string(booking.Status)),
			zap.String("to", string(target)),
			zap.String("actor_id", actor.ID.String()),
			zap.String("actor_role", string(actor.Role)),
			zap.Error(err),
		)
		return nil, err
	}

	from := booking.Status
	now := m.now().UTC()
	apply(booking, target, reason, now)

	change := &entity.StatusChange{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		BookingID:  booking.ID,
		FromStatus: from,
		ToStatus:   target,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Reason:     reason,
	}

	applied, err := m.bookings.UpdateStatus(ctx, booking, from, change)
	if err != nil {
		return nil, fmt.Errorf("persist transition for booking %s: %w", bookingID, err)
	}
	if !applied {
		return nil, m.lostUpdate(ctx, bookingID, target)
	}

	m.log.Info("Booking status changed",
		zap.String("booking_id", bookingID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor_role", string(actor.Role)),
	)

	m.emit(ctx, StatusChanged{
		BookingID:  booking.ID,
		CustomerID: booking.CustomerID,
		ProviderID: booking.ProviderID,
		OldStatus:  from,
		NewStatus:  target,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Reason:     reason,
		OccurredAt: now,
	})
	m.afterTransition(ctx, booking)

	return booking, nil
}

func apply(booking *entity.Booking, target entity.BookingStatus, reason *string, now time.Time) {
	booking.Status = target
	booking.UpdatedAt = now

	switch target {
	case entity.BookingStatusCompleted:
		booking.CompletedAt = &now
	case entity.BookingStatusCancelled:
		booking.CancelledAt = &now
		if reason != nil {
			booking.CancellationReason = reason
		}
	case entity.BookingStatusDisputed:
		booking.DisputedAt = &now
		if reason != nil {
			booking.DisputeReason = reason
		}
	}
}

// lostUpdate reports a concurrent writer against the status it left behind.
func (m *bookingStatusMachine) lostUpdate(ctx context.Context, bookingID uuid.UUID, target entity.BookingStatus) error {
	fresh, err := m.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("reload booking %s: %w", bookingID, err)
	}
	if fresh == nil {
		return apperror.NotFound("booking")
	}

	m.log.Warn("Transition lost to concurrent update",
		zap.String("booking_id", bookingID.String()),
		zap.String("current", string(fresh.Status)),
		zap.String("to", string(target)),
	)
	return apperror.IllegalTransition(string(fresh.Status), string(target))
}

func (m *bookingStatusMachine) emit(ctx context.Context, event StatusChanged) {
	m.mu.RLock()
	handlers := append([]StatusChangedHandler(nil), m.handlers...)
	m.mu.RUnlock()

	for _, h := range handlers {
		m.safeHandle(ctx, h, event)
	}
}

func (m *bookingStatusMachine) safeHandle(ctx context.Context, h StatusChangedHandler, event StatusChanged) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Status change handler panicked",
				zap.Any("panic", r),
				zap.String("booking_id", event.BookingID.String()),
			)
		}
	}()
	h(ctx, event)
}

func (m *bookingStatusMachine) afterTransition(ctx context.Context, booking *entity.Booking) {
	switch booking.Status {
	case entity.BookingStatusCompleted:
		if _, err := m.ratings.Recompute(ctx, booking.ProviderID); err != nil {
			m.log.Warn("Rating recompute failed",
				zap.String("provider_id", booking.ProviderID.String()),
				zap.Error(err),
			)
		}
		if booking.PaymentStatus == entity.PaymentStatusPaid {
			m.log.Info("Provider payout pending",
				zap.String("booking_id", booking.ID.String()),
				zap.String("amount", booking.Price.Total.StringFixed(2)),
				zap.String("currency", booking.Price.Currency),
			)
		}
	case entity.BookingStatusCancelled:
		if booking.PaymentStatus == entity.PaymentStatusPaid {
			m.log.Info("Customer refund pending",
				zap.String("booking_id", booking.ID.String()),
				zap.String("amount", booking.Price.Total.StringFixed(2)),
				zap.String("currency", booking.Price.Currency),
			)
		}
	}
}
