package entity

import (
	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationBookingRequest  NotificationType = "booking_request"
	NotificationDisputeResolved NotificationType = "dispute_resolved"
)

// BookingNotificationType returns booking_<status>.
func BookingNotificationType(status BookingStatus) NotificationType {
	return NotificationType("booking_" + string(status))
}

type Notification struct {
	BaseSimple
	UserID  uuid.UUID        `db:"user_id"`
	Type    NotificationType `db:"type"`
	Payload map[string]any   `db:"payload"`
	Read    bool             `db:"read"`
}
