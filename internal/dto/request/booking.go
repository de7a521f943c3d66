package request

type AddressRequest struct {
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state" validate:"required,max=100"`
	PostalCode string  `json:"postalCode" validate:"required,max=20"`
}

type CreateBookingRequest struct {
	ServiceID       string         `json:"serviceId" validate:"required,uuid"`
	ScheduledDate   string         `json:"scheduledDate" validate:"required,date"`
	ScheduledTime   string         `json:"scheduledTime" validate:"required,hhmm"`
	DurationMinutes *int           `json:"durationMinutes,omitempty" validate:"omitempty,min=1,max=1440"`
	Address         AddressRequest `json:"address"`
	Notes           *string        `json:"notes,omitempty" validate:"omitempty,max=1000"`
	CustomerNotes   *string        `json:"customerNotes,omitempty" validate:"omitempty,max=1000"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=pending confirmed in_progress completed cancelled disputed"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// UpdateNotesRequest edits free-text fields; which ones a caller may set depends on role.
type UpdateNotesRequest struct {
	CustomerNotes      *string `json:"customerNotes,omitempty" validate:"omitempty,max=1000"`
	ProviderNotes      *string `json:"providerNotes,omitempty" validate:"omitempty,max=1000"`
	CancellationReason *string `json:"cancellationReason,omitempty" validate:"omitempty,max=500"`
}

type CancelBookingRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" validate:"required,min=3,max=2000"`
}

// ListBookingsRequest is populated from query parameters.
type ListBookingsRequest struct {
	PaginatedRequest
	Status     string `json:"status" validate:"omitempty,oneof=pending confirmed in_progress completed cancelled disputed"`
	CustomerID string `json:"customerId" validate:"omitempty,uuid"`
	ProviderID string `json:"providerId" validate:"omitempty,uuid"`
	From       string `json:"from" validate:"omitempty,date"`
	To         string `json:"to" validate:"omitempty,date"`
}
