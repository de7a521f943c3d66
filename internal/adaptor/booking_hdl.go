package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"service-marketplace/internal/data/entity"
	"service-marketplace/internal/dto/request"
	"service-marketplace/internal/usecase"
	"service-marketplace/pkg/apperror"
	"service-marketplace/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(w, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Booking created successfully", booking)
}

// ListBookings handles GET /api/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := &request.ListBookingsRequest{
		PaginatedRequest: request.PaginatedRequest{
			Page:     utils.ParseInt(query.Get("page"), 1),
			PageSize: utils.ParseInt(query.Get("pageSize"), request.DefaultPageSize),
		},
		Status:     query.Get("status"),
		CustomerID: query.Get("customerId"),
		ProviderID: query.Get("providerId"),
		From:       query.Get("from"),
		To:         query.Get("to"),
	}

	bookings, err := h.service.ListBookings(r.Context(), actor, req)
	if err != nil {
		h.handleServiceError(w, err, "list bookings")
		return
	}

	utils.ResponseSuccess(w, "Bookings retrieved successfully", bookings)
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), actor, bookingID)
	if err != nil {
		h.handleServiceError(w, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "Booking retrieved successfully", booking)
}

// GetTimeline handles GET /api/bookings/{id}/timeline
func (h *BookingHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}

	timeline, err := h.service.GetTimeline(r.Context(), actor, bookingID)
	if err != nil {
		h.handleServiceError(w, err, "get booking timeline")
		return
	}

	utils.ResponseSuccess(w, "Booking timeline retrieved successfully", timeline)
}

// UpdateBooking handles PUT /api/bookings/{id}, editing notes only
func (h *BookingHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}

	var req request.UpdateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.UpdateNotes(r.Context(), actor, bookingID, &req)
	if err != nil {
		h.handleServiceError(w, err, "update booking")
		return
	}

	utils.ResponseSuccess(w, "Booking updated successfully", booking)
}

// UpdateStatus handles PUT /api/bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}

	var req request.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), actor, bookingID, &req)
	if err != nil {
		h.handleServiceError(w, err, "update booking status")
		return
	}

	utils.ResponseSuccess(w, "Booking status updated successfully", booking)
}

// CancelBooking handles DELETE /api/bookings/{id}, the body is optional
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}

	var req request.CancelBookingRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.ResponseBadRequest(w, "Invalid request body", nil)
			return
		}
	}

	booking, err := h.service.CancelBooking(r.Context(), actor, bookingID, &req)
	if err != nil {
		h.handleServiceError(w, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled successfully", booking)
}

// ResolveDispute handles PUT /api/admin/bookings/{id}/dispute (admin)
func (h *BookingHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}

	var req request.ResolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.ResolveDispute(r.Context(), actor, bookingID, &req)
	if err != nil {
		h.handleServiceError(w, err, "resolve dispute")
		return
	}

	utils.ResponseSuccess(w, "Dispute resolved successfully", booking)
}

func actorFromRequest(w http.ResponseWriter, r *http.Request) (entity.Actor, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return entity.Actor{}, false
	}

	roleStr, _ := utils.GetRoleFromContext(r.Context())
	role, err := entity.ParseUserRole(roleStr)
	if err != nil {
		utils.ResponseUnauthorized(w, "Unknown user role")
		return entity.Actor{}, false
	}

	return entity.Actor{ID: userID, Role: role}, true
}

func bookingIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid booking ID", map[string]string{"id": "Must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// handleServiceError maps error kinds to HTTP responses
func (h *BookingHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	appErr, ok := apperror.As(err)
	if !ok {
		h.log.Error(operation+" failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
		return
	}

	h.log.Warn(operation+" rejected",
		zap.Error(err),
		zap.String("operation", operation),
		zap.String("kind", string(appErr.Kind)))

	switch appErr.Kind {
	case apperror.KindValidation, apperror.KindIllegalTransition:
		var fields any
		if len(appErr.Fields) > 0 {
			fields = appErr.Fields
		}
		utils.ResponseBadRequest(w, appErr.Message, fields)
	case apperror.KindNotFound:
		utils.ResponseNotFound(w, appErr.Message)
	case apperror.KindForbidden:
		utils.ResponseForbidden(w, appErr.Message)
	case apperror.KindConflict:
		utils.ResponseConflict(w, appErr.Message)
	case apperror.KindUnauthorized:
		utils.ResponseUnauthorized(w, appErr.Message)
	case apperror.KindRateLimited:
		utils.ResponseTooManyRequests(w, appErr.Message)
	default:
		utils.ResponseInternalError(w, "Internal server error")
	}
}
