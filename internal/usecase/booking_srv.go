package usecase

import (
	"context"
	"fmt"
	"time"

	"service-marketplace/internal/data/entity"
	"service-marketplace/internal/data/repository"
	"service-marketplace/internal/dto/request"
	"service-marketplace/internal/dto/response"
	"service-marketplace/pkg/apperror"
	"service-marketplace/pkg/lock"
	"service-marketplace/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	CreateBooking(ctx context.Context, actor entity.Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) (*response.BookingResponse, error)
	ListBookings(ctx context.Context, actor entity.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	UpdateStatus(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.UpdateStatusRequest) (*response.BookingResponse, error)
	UpdateNotes(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.UpdateNotesRequest) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.CancelBookingRequest) (*response.BookingResponse, error)
	GetTimeline(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) ([]response.TimelineEntryResponse, error)

	// Admin
	ResolveDispute(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.ResolveDisputeRequest) (*response.BookingResponse, error)
}

// Notifier queues a notification without waiting for delivery.
type Notifier interface {
	Notify(userID uuid.UUID, kind entity.NotificationType, payload map[string]any)
}

type bookingService struct {
	repo     *repository.Repository
	machine  BookingStatusMachine
	checker  ConflictChecker
	pricing  PricingCalculator
	locker   lock.Locker
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewBookingService(
	repo *repository.Repository,
	machine BookingStatusMachine,
	pricing PricingCalculator,
	locker lock.Locker,
	notifier Notifier,
	log *zap.Logger,
) BookingService {
	s := &bookingService{
		repo:     repo,
		machine:  machine,
		checker:  NewConflictChecker(repo.Booking),
		pricing:  pricing,
		locker:   locker,
		notifier: notifier,
		log:      log.With(zap.String("service", "booking")),
		now:      time.Now,
	}
	machine.OnStatusChanged(s.notifyStatusChanged)
	return s
}

func (s *bookingService) CreateBooking(ctx context.Context, actor entity.Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation(errs, "validation failed: %s", utils.FormatValidationErrors(errs))
	}

	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		return nil, apperror.Validation(map[string]string{"serviceId": "Must be a valid UUID"}, "invalid service ID %s", req.ServiceID)
	}
	date, err := entity.ParseDate(req.ScheduledDate)
	if err != nil {
		return nil, apperror.Validation(map[string]string{"scheduledDate": "Must be a date in YYYY-MM-DD format"}, "%v", err)
	}
	start, err := entity.ParseClock(req.ScheduledTime)
	if err != nil {
		return nil, apperror.Validation(map[string]string{"scheduledTime": "Must be a time in HH:MM format"}, "%v", err)
	}

	service, err := s.repo.Service.FindByID(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load service %s: %w", serviceID, err)
	}
	if service == nil || !service.IsActive {
		return nil, apperror.NotFound("service")
	}

	if actor.Role != entity.RoleCustomer {
		return nil, apperror.Forbidden("only customers can create bookings")
	}

	duration := service.DurationMinutes
	if req.DurationMinutes != nil {
		duration = *req.DurationMinutes
	}
	if duration <= 0 {
		return nil, apperror.Validation(map[string]string{"durationMinutes": "Must be greater than 0"}, "invalid duration %d", duration)
	}
	if start+duration > entity.MinutesPerDay {
		return nil, apperror.Validation(map[string]string{"durationMinutes": "Booking must end by midnight"},
			"booking from %s for %d minutes runs past midnight", req.ScheduledTime, duration)
	}

	var created *entity.Booking
	err = s.locker.WithLock(ctx, entity.ScheduleKey(service.ProviderID, date), func(ctx context.Context) error {
		return s.repo.Booking.WithinSchedule(ctx, service.ProviderID, date, func(ctx context.Context) error {
			existing, err := s.checker.FindConflict(ctx, service.ProviderID, date, start, duration, nil)
			if err != nil {
				return err
			}
			if existing != nil {
				return apperror.Conflict(
					"provider already has a %s booking from %s to %s on %s; this time slot is taken and retrying will not succeed",
					existing.Status, entity.FormatClock(existing.StartMinute), entity.FormatClock(existing.EndMinute()), req.ScheduledDate)
			}

			price, err := s.pricing.Compute(service, duration)
			if err != nil {
				return err
			}

			now := s.now().UTC()
			booking := &entity.Booking{
				Base:            entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
				CustomerID:      actor.ID,
				ProviderID:      service.ProviderID,
				ServiceID:       service.ID,
				ScheduledDate:   date,
				StartMinute:     start,
				DurationMinutes: duration,
				Status:          entity.BookingStatusPending,
				Price:           price,
				PaymentStatus:   entity.PaymentStatusPending,
				Address:         addressFromRequest(req.Address),
				Notes:           req.Notes,
				CustomerNotes:   req.CustomerNotes,
			}
			change := &entity.StatusChange{
				BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
				BookingID:  booking.ID,
				ToStatus:   entity.BookingStatusPending,
				ActorID:    actor.ID,
				ActorRole:  actor.Role,
			}

			if err := s.repo.Booking.Create(ctx, booking, change); err != nil {
				return err
			}
			created = booking
			return nil
		})
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindConflict {
			s.log.Info("Booking slot taken",
				zap.String("provider_id", service.ProviderID.String()),
				zap.String("date", req.ScheduledDate),
				zap.String("time", req.ScheduledTime),
			)
		}
		return nil, err
	}

	s.log.Info("Booking created",
		zap.String("booking_id", created.ID.String()),
		zap.String("customer_id", created.CustomerID.String()),
		zap.String("provider_id", created.ProviderID.String()),
		zap.String("total", created.Price.Total.StringFixed(2)),
	)

	s.notifier.Notify(created.ProviderID, entity.NotificationBookingRequest, map[string]any{
		"bookingId":  created.ID.String(),
		"serviceId":  service.ID.String(),
		"customerId": created.CustomerID.String(),
		"message":    fmt.Sprintf("You have a new booking request for %s", service.Title),
	})

	resp := response.BookingToResponse(created)
	return &resp, nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, err := s.loadVisible(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) ListBookings(ctx context.Context, actor entity.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation(errs, "validation failed: %s", utils.FormatValidationErrors(errs))
	}

	filter, err := s.listFilter(actor, req)
	if err != nil {
		return nil, err
	}

	bookings, err := s.repo.Booking.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	total, err := s.repo.Booking.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	return response.NewPaginatedResponse(response.BookingsToResponse(bookings), req.CurrentPage(), req.Limit(), total), nil
}

// listFilter pins customers and providers to their own bookings.
func (s *bookingService) listFilter(actor entity.Actor, req *request.ListBookingsRequest) (repository.BookingFilter, error) {
	filter := repository.BookingFilter{Limit: req.Limit(), Offset: req.Offset()}

	if req.Status != "" {
		status := entity.BookingStatus(req.Status)
		filter.Status = &status
	}
	if req.CustomerID != "" {
		id := uuid.MustParse(req.CustomerID)
		filter.CustomerID = &id
	}
	if req.ProviderID != "" {
		id := uuid.MustParse(req.ProviderID)
		filter.ProviderID = &id
	}
	if req.From != "" {
		from, err := entity.ParseDate(req.From)
		if err != nil {
			return filter, apperror.Validation(map[string]string{"from": "Must be a date in YYYY-MM-DD format"}, "%v", err)
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := entity.ParseDate(req.To)
		if err != nil {
			return filter, apperror.Validation(map[string]string{"to": "Must be a date in YYYY-MM-DD format"}, "%v", err)
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, apperror.Validation(map[string]string{"to": "Must not be before from"}, "invalid date range")
	}

	switch actor.Role {
	case entity.RoleCustomer:
		id := actor.ID
		filter.CustomerID = &id
	case entity.RoleProvider:
		id := actor.ID
		filter.ProviderID = &id
	case entity.RoleAdmin:
	default:
		return filter, apperror.Forbidden("unknown role %q", actor.Role)
	}

	return filter, nil
}

func (s *bookingService) UpdateStatus(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.UpdateStatusRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation(errs, "validation failed: %s", utils.FormatValidationErrors(errs))
	}

	// a blank reason is recorded as none
	reason := utils.OptionalString(utils.StringValue(req.Reason))

	booking, err := s.machine.Transition(ctx, bookingID, entity.BookingStatus(req.Status), actor, reason)
	if err != nil {
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// UpdateNotes lets the provider edit providerNotes and the customer edit customerNotes
// and cancellationReason. Admins may edit all three.
func (s *bookingService) UpdateNotes(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.UpdateNotesRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation(errs, "validation failed: %s", utils.FormatValidationErrors(errs))
	}
	if req.CustomerNotes == nil && req.ProviderNotes == nil && req.CancellationReason == nil {
		return nil, apperror.Validation(map[string]string{"body": "At least one field is required"}, "no fields to update")
	}

	booking, err := s.loadVisible(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.Role == entity.RoleAdmin:
	case actor.ID == booking.ProviderID:
		if req.CustomerNotes != nil || req.CancellationReason != nil {
			return nil, apperror.Forbidden("providers can only update providerNotes")
		}
	case actor.ID == booking.CustomerID:
		if req.ProviderNotes != nil {
			return nil, apperror.Forbidden("customers can only update customerNotes and cancellationReason")
		}
	}

	if booking.Status.IsTerminal() {
		return nil, apperror.Conflict("booking %s is %s and can no longer be edited", bookingID, booking.Status)
	}

	next := booking.Clone()
	if req.CustomerNotes != nil {
		next.CustomerNotes = utils.OptionalString(*req.CustomerNotes)
	}
	if req.ProviderNotes != nil {
		next.ProviderNotes = utils.OptionalString(*req.ProviderNotes)
	}
	if req.CancellationReason != nil {
		next.CancellationReason = utils.OptionalString(*req.CancellationReason)
	}
	next.UpdatedAt = s.now().UTC()

	ok, err := s.repo.Booking.UpdateNotes(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("update notes for booking %s: %w", bookingID, err)
	}
	if !ok {
		return nil, apperror.Conflict("booking %s changed state and can no longer be edited", bookingID)
	}

	s.log.Info("Booking notes updated", zap.String("booking_id", bookingID.String()), zap.String("actor_id", actor.ID.String()))

	resp := response.BookingToResponse(next)
	return &resp, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
	if req == nil {
		req = &request.CancelBookingRequest{}
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation(errs, "validation failed: %s", utils.FormatValidationErrors(errs))
	}

	booking, err := s.loadVisible(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	// the booking decides which side the caller cancels as
	canceller := entity.Actor{ID: actor.ID, Role: actor.Role}
	switch {
	case actor.ID == booking.CustomerID:
		canceller.Role = entity.RoleCustomer
	case actor.ID == booking.ProviderID:
		canceller.Role = entity.RoleProvider
	}

	return s.UpdateStatus(ctx, canceller, bookingID, &request.UpdateStatusRequest{
		Status: string(entity.BookingStatusCancelled),
		Reason: req.Reason,
	})
}

func (s *bookingService) GetTimeline(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) ([]response.TimelineEntryResponse, error) {
	if _, err := s.loadVisible(ctx, actor, bookingID); err != nil {
		return nil, err
	}

	history, err := s.repo.Booking.FindHistory(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}

	timeline := make([]response.TimelineEntryResponse, len(history))
	for i, c := range history {
		timeline[i] = response.StatusChangeToTimeline(c)
	}
	return timeline, nil
}

func (s *bookingService) ResolveDispute(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.ResolveDisputeRequest) (*response.BookingResponse, error) {
	if actor.Role != entity.RoleAdmin {
		return nil, apperror.Forbidden("only admins can resolve disputes")
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation(errs, "validation failed: %s", utils.FormatValidationErrors(errs))
	}

	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, apperror.NotFound("booking")
	}
	if booking.Status != entity.BookingStatusDisputed {
		return nil, apperror.IllegalTransition(string(booking.Status), "resolved")
	}

	ok, err := s.repo.Booking.ResolveDispute(ctx, bookingID, req.Resolution, actor.ID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dispute %s: %w", bookingID, err)
	}
	if !ok {
		return nil, apperror.Conflict("dispute on booking %s is already resolved", bookingID)
	}

	resolved, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("reload booking %s: %w", bookingID, err)
	}

	s.log.Info("Dispute resolved", zap.String("booking_id", bookingID.String()), zap.String("admin_id", actor.ID.String()))

	payload := map[string]any{
		"bookingId":  bookingID.String(),
		"resolution": req.Resolution,
	}
	s.notifier.Notify(resolved.CustomerID, entity.NotificationDisputeResolved, payload)
	s.notifier.Notify(resolved.ProviderID, entity.NotificationDisputeResolved, payload)

	resp := response.BookingToResponse(resolved)
	return &resp, nil
}

// loadVisible returns the booking when the actor is a participant or an admin.
func (s *bookingService) loadVisible(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, apperror.NotFound("booking")
	}
	if actor.Role != entity.RoleAdmin && !booking.IsParticipant(actor.ID) {
		return nil, apperror.Forbidden("access denied")
	}
	return booking, nil
}

// notifyStatusChanged tells the other side; an admin action is reported to both.
func (s *bookingService) notifyStatusChanged(_ context.Context, e StatusChanged) {
	payload := map[string]any{
		"bookingId": e.BookingID.String(),
		"oldStatus": string(e.OldStatus),
		"newStatus": string(e.NewStatus),
		"message":   fmt.Sprintf("Your booking has been %s", e.NewStatus),
	}
	if e.Reason != nil {
		payload["reason"] = *e.Reason
	}
	kind := entity.BookingNotificationType(e.NewStatus)

	switch e.ActorID {
	case e.CustomerID:
		s.notifier.Notify(e.ProviderID, kind, payload)
	case e.ProviderID:
		s.notifier.Notify(e.CustomerID, kind, payload)
	default:
		s.notifier.Notify(e.CustomerID, kind, payload)
		s.notifier.Notify(e.ProviderID, kind, payload)
	}
}

func addressFromRequest(a request.AddressRequest) entity.Address {
	return entity.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
	}
}
