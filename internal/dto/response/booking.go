package response

import (
	"time"

	"service-marketplace/internal/data/entity"
)

type PriceResponse struct {
	ServicePrice  float64 `json:"servicePrice"`
	MaterialsCost float64 `json:"materialsCost"`
	Taxes         float64 `json:"taxes"`
	Fees          float64 `json:"fees"`
	Total         float64 `json:"total"`
	Currency      string  `json:"currency"`
}

type DisputeResponse struct {
	Reason     *string    `json:"reason,omitempty"`
	OpenedAt   *time.Time `json:"openedAt,omitempty"`
	Resolution *string    `json:"resolution,omitempty"`
	ResolvedBy *string    `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

type BookingResponse struct {
	ID                 string               `json:"id"`
	CustomerID         string               `json:"customerId"`
	ProviderID         string               `json:"providerId"`
	ServiceID          string               `json:"serviceId"`
	ScheduledDate      string               `json:"scheduledDate"`
	ScheduledTime      string               `json:"scheduledTime"`
	EndTime            string               `json:"endTime"`
	DurationMinutes    int                  `json:"durationMinutes"`
	Status             entity.BookingStatus `json:"status"`
	Price              PriceResponse        `json:"price"`
	PaymentStatus      entity.PaymentStatus `json:"paymentStatus"`
	Address            entity.Address       `json:"address"`
	Notes              *string              `json:"notes,omitempty"`
	CustomerNotes      *string              `json:"customerNotes,omitempty"`
	ProviderNotes      *string              `json:"providerNotes,omitempty"`
	CompletedAt        *time.Time           `json:"completedAt,omitempty"`
	CancelledAt        *time.Time           `json:"cancelledAt,omitempty"`
	CancellationReason *string              `json:"cancellationReason,omitempty"`
	Dispute            *DisputeResponse     `json:"dispute,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

type TimelineEntryResponse struct {
	Event       string               `json:"event"`
	Status      entity.BookingStatus `json:"status"`
	ActorID     string               `json:"actorId"`
	ActorRole   entity.UserRole      `json:"actorRole"`
	Reason      *string              `json:"reason,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
	Description string               `json:"description"`
}

// Helper converters
func BookingToResponse(b *entity.Booking) BookingResponse {
	resp := BookingResponse{
		ID:              b.ID.String(),
		CustomerID:      b.CustomerID.String(),
		ProviderID:      b.ProviderID.String(),
		ServiceID:       b.ServiceID.String(),
		ScheduledDate:   b.ScheduledDate.Format(entity.DateLayout),
		ScheduledTime:   entity.FormatClock(b.StartMinute),
		EndTime:         entity.FormatClock(b.EndMinute()),
		DurationMinutes: b.DurationMinutes,
		Status:          b.Status,
		Price: PriceResponse{
			ServicePrice:  b.Price.ServicePrice.InexactFloat64(),
			MaterialsCost: b.Price.MaterialsCost.InexactFloat64(),
			Taxes:         b.Price.Taxes.InexactFloat64(),
			Fees:          b.Price.Fees.InexactFloat64(),
			Total:         b.Price.Total.InexactFloat64(),
			Currency:      b.Price.Currency,
		},
		PaymentStatus:      b.PaymentStatus,
		Address:            b.Address,
		Notes:              b.Notes,
		CustomerNotes:      b.CustomerNotes,
		ProviderNotes:      b.ProviderNotes,
		CompletedAt:        b.CompletedAt,
		CancelledAt:        b.CancelledAt,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}

	if b.DisputedAt != nil || b.DisputeResolution != nil {
		d := &DisputeResponse{
			Reason:     b.DisputeReason,
			OpenedAt:   b.DisputedAt,
			Resolution: b.DisputeResolution,
			ResolvedAt: b.DisputeResolvedAt,
		}
		if b.DisputeResolvedBy != nil {
			by := b.DisputeResolvedBy.String()
			d.ResolvedBy = &by
		}
		resp.Dispute = d
	}

	return resp
}

func BookingsToResponse(bookings []*entity.Booking) []BookingResponse {
	out := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		out[i] = BookingToResponse(b)
	}
	return out
}

var timelineDescriptions = map[entity.BookingStatus]string{
	entity.BookingStatusPending:    "Booking request created",
	entity.BookingStatusConfirmed:  "Booking confirmed by customer",
	entity.BookingStatusInProgress: "Service started",
	entity.BookingStatusCompleted:  "Service completed",
	entity.BookingStatusCancelled:  "Booking cancelled",
	entity.BookingStatusDisputed:   "Dispute opened",
}

func StatusChangeToTimeline(c *entity.StatusChange) TimelineEntryResponse {
	event := "booking_" + string(c.ToStatus)
	if c.FromStatus == "" {
		event = "booking_created"
	}

	description := timelineDescriptions[c.ToStatus]
	if c.Reason != nil && *c.Reason != "" {
		description += ": " + *c.Reason
	}

	return TimelineEntryResponse{
		Event:       event,
		Status:      c.ToStatus,
		ActorID:     c.ActorID.String(),
		ActorRole:   c.ActorRole,
		Reason:      c.Reason,
		Timestamp:   c.CreatedAt,
		Description: description,
	}
}
