package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusDisputed   BookingStatus = "disputed"
)

// AllBookingStatuses lists every status in lifecycle order.
var AllBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusInProgress,
	BookingStatusCompleted,
	BookingStatusCancelled,
	BookingStatusDisputed,
}

// ActiveBookingStatuses occupy a provider's schedule.
var ActiveBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusInProgress,
}

func (s BookingStatus) IsValid() bool {
	for _, status := range AllBookingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsActive reports whether a booking in this status blocks the provider's time window.
func (s BookingStatus) IsActive() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusInProgress:
		return true
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %q", s)
	}
	return status, nil
}

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postalCode"`
}

// PriceBreakdown is computed once at creation and never recomputed.
type PriceBreakdown struct {
	ServicePrice  decimal.Decimal `db:"service_price"`
	MaterialsCost decimal.Decimal `db:"materials_cost"`
	Taxes         decimal.Decimal `db:"taxes"`
	Fees          decimal.Decimal `db:"fees"`
	Total         decimal.Decimal `db:"total"`
	Currency      string          `db:"currency"`
}

type Booking struct {
	Base
	CustomerID         uuid.UUID      `db:"customer_id"`
	ProviderID         uuid.UUID      `db:"provider_id"`
	ServiceID          uuid.UUID      `db:"service_id"`
	ScheduledDate      time.Time      `db:"scheduled_date"`
	StartMinute        int            `db:"start_minute"`
	DurationMinutes    int            `db:"duration_minutes"`
	Status             BookingStatus  `db:"status"`
	Price              PriceBreakdown
	PaymentStatus      PaymentStatus  `db:"payment_status"`
	Address            Address        `db:"address"`
	Notes              *string        `db:"notes"`
	CustomerNotes      *string        `db:"customer_notes"`
	ProviderNotes      *string        `db:"provider_notes"`
	CompletedAt        *time.Time     `db:"completed_at"`
	CancelledAt        *time.Time     `db:"cancelled_at"`
	CancellationReason *string        `db:"cancellation_reason"`

	// Dispute annotations stay writable after the booking is terminal.
	DisputeReason     *string    `db:"dispute_reason"`
	DisputedAt        *time.Time `db:"disputed_at"`
	DisputeResolution *string    `db:"dispute_resolution"`
	DisputeResolvedBy *uuid.UUID `db:"dispute_resolved_by"`
	DisputeResolvedAt *time.Time `db:"dispute_resolved_at"`
}

func (b *Booking) EndMinute() int {
	return b.StartMinute + b.DurationMinutes
}

func (b *Booking) IsParticipant(userID uuid.UUID) bool {
	return b.CustomerID == userID || b.ProviderID == userID
}

// ScheduleKey identifies the provider/date partition the booking occupies.
func (b *Booking) ScheduleKey() string {
	return ScheduleKey(b.ProviderID, b.ScheduledDate)
}

func ScheduleKey(providerID uuid.UUID, date time.Time) string {
	return providerID.String() + ":" + date.Format(DateLayout)
}

// Clone returns a shallow copy. Pointer fields are replaced, never written through.
func (b *Booking) Clone() *Booking {
	c := *b
	return &c
}

// StatusChange is one entry of a booking's history.
type StatusChange struct {
	BaseSimple
	BookingID  uuid.UUID     `db:"booking_id"`
	FromStatus BookingStatus `db:"from_status"`
	ToStatus   BookingStatus `db:"to_status"`
	ActorID    uuid.UUID     `db:"actor_id"`
	ActorRole  UserRole      `db:"actor_role"`
	Reason     *string       `db:"reason"`
}
