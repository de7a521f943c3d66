package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"service-marketplace/internal/data/entity"
	"service-marketplace/internal/data/repository"
	"service-marketplace/internal/dto/response"
	"service-marketplace/internal/usecase"
	"service-marketplace/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	customerToken = "customer-token"
	otherToken    = "other-token"
	providerToken = "provider-token"
	adminToken    = "admin-token"
)

type envelope struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type apiFixture struct {
	router   *chi.Mux
	mem      *repository.Memory
	notifier *usecase.AsyncNotifier
	offering entity.ServiceOffering
	provider entity.Actor
	customer entity.Actor
}

func testConfig() *utils.Config {
	return &utils.Config{
		Pricing:   utils.PricingConfig{TaxRate: 0.08, PlatformFeeRate: 0.03},
		RateLimit: utils.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, IdleTTL: time.Minute},
		Notify:    utils.NotifyConfig{Timeout: time.Second},
	}
}

func newAPIFixture(t *testing.T, config *utils.Config) *apiFixture {
	t.Helper()

	log := zap.NewNop()
	repo, mem := repository.NewMemoryRepository()

	provider := entity.Actor{ID: uuid.New(), Role: entity.RoleProvider}
	customer := entity.Actor{ID: uuid.New(), Role: entity.RoleCustomer}
	mem.Sessions.Put(providerToken, provider)
	mem.Sessions.Put(customerToken, customer)
	mem.Sessions.Put(otherToken, entity.Actor{ID: uuid.New(), Role: entity.RoleCustomer})
	mem.Sessions.Put(adminToken, entity.Actor{ID: uuid.New(), Role: entity.RoleAdmin})

	offering := entity.ServiceOffering{
		Base:            entity.Base{ID: uuid.New()},
		ProviderID:      provider.ID,
		Title:           "Lawn mowing",
		DurationMinutes: 60,
		IsActive:        true,
		Price: entity.ServicePrice{
			Type:     entity.PriceTypeHourly,
			Amount:   decimal.NewFromInt(100),
			Currency: "USD",
		},
	}
	mem.Services.Put(offering)

	notifier := usecase.NewAsyncNotifier(usecase.NewInboxDispatcher(repo.Notification), config.Notify.Timeout, log)
	app := Wiring(Dependencies{Repo: repo, Notifier: notifier}, config, log)

	return &apiFixture{
		router:   app.Router,
		mem:      mem,
		notifier: notifier,
		offering: offering,
		provider: provider,
		customer: customer,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (f *apiFixture) createBody(clock string) map[string]any {
	return map[string]any{
		"serviceId":     f.offering.ID.String(),
		"scheduledDate": "2026-05-02",
		"scheduledTime": clock,
		"address": map[string]any{
			"line1":      "4 Oak Lane",
			"city":       "Portland",
			"state":      "OR",
			"postalCode": "97201",
		},
	}
}

func (f *apiFixture) create(t *testing.T, clock string) response.BookingResponse {
	t.Helper()
	rec, env := f.do(t, http.MethodPost, "/api/bookings", customerToken, f.createBody(clock))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var booking response.BookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	return booking
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	rec, env := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Status)
}

func TestBookingRoutes_RequireAuth(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	rec, _ := f.do(t, http.MethodGet, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/bookings", "nope", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateBooking_HTTP(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	booking := f.create(t, "10:00")
	assert.Equal(t, entity.BookingStatusPending, booking.Status)
	assert.Equal(t, "11:00", booking.EndTime)
	assert.InDelta(t, 111.0, booking.Price.Total, 0.001)
	assert.Equal(t, f.customer.ID.String(), booking.CustomerID)

	rec, env := f.do(t, http.MethodPost, "/api/bookings", customerToken, f.createBody("10:30"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Status)

	rec, _ = f.do(t, http.MethodPost, "/api/bookings", providerToken, f.createBody("14:00"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	bad := f.createBody("25:00")
	rec, env = f.do(t, http.MethodPost, "/api/bookings", customerToken, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Errors, "scheduledTime")

	unknown := f.createBody("15:00")
	unknown["serviceId"] = uuid.NewString()
	rec, _ = f.do(t, http.MethodPost, "/api/bookings", customerToken, unknown)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/bookings", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+customerToken)
	raw := httptest.NewRecorder()
	f.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestCreateBooking_NotifiesProvider(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	f.create(t, "09:00")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.notifier.Wait(ctx))

	inbox, err := f.mem.Notifications.FindByUserID(context.Background(), f.provider.ID, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, entity.NotificationBookingRequest, inbox[0].Type)
}

func TestGetBooking_HTTP(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	booking := f.create(t, "10:00")
	path := "/api/bookings/" + booking.ID

	tests := []struct {
		name  string
		path  string
		token string
		code  int
	}{
		{"customer", path, customerToken, http.StatusOK},
		{"provider", path, providerToken, http.StatusOK},
		{"admin", path, adminToken, http.StatusOK},
		{"stranger", path, otherToken, http.StatusForbidden},
		{"bad id", "/api/bookings/not-a-uuid", customerToken, http.StatusBadRequest},
		{"unknown", "/api/bookings/" + uuid.NewString(), customerToken, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := f.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestLifecycle_HTTP(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	booking := f.create(t, "10:00")
	statusPath := "/api/bookings/" + booking.ID + "/status"

	rec, _ := f.do(t, http.MethodPut, statusPath, providerToken, map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPut, statusPath, providerToken, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPut, statusPath, providerToken, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := f.do(t, http.MethodPut, statusPath, customerToken, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated response.BookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, entity.BookingStatusConfirmed, updated.Status)

	rec, _ = f.do(t, http.MethodPut, statusPath, customerToken, map[string]any{"status": "in_progress"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// cancel without a body
	req := httptest.NewRequest(http.MethodDelete, "/api/bookings/"+booking.ID, nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	cancelRec := httptest.NewRecorder()
	f.router.ServeHTTP(cancelRec, req)
	require.Equal(t, http.StatusOK, cancelRec.Code, cancelRec.Body.String())

	rec, _ = f.do(t, http.MethodDelete, "/api/bookings/"+booking.ID, customerToken, map[string]any{"reason": "again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = f.do(t, http.MethodGet, "/api/bookings/"+booking.ID+"/timeline", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var timeline []response.TimelineEntryResponse
	require.NoError(t, json.Unmarshal(env.Data, &timeline))
	require.Len(t, timeline, 3)
	assert.Equal(t, "booking_created", timeline[0].Event)
	assert.Equal(t, entity.BookingStatusConfirmed, timeline[1].Status)
	assert.Equal(t, entity.BookingStatusCancelled, timeline[2].Status)

	// the slot is free again
	f.create(t, "10:00")
}

func TestUpdateBookingNotes_HTTP(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	booking := f.create(t, "10:00")
	path := "/api/bookings/" + booking.ID

	rec, env := f.do(t, http.MethodPut, path, providerToken, map[string]any{"providerNotes": "parking at rear"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated response.BookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.NotNil(t, updated.ProviderNotes)
	assert.Equal(t, "parking at rear", *updated.ProviderNotes)

	rec, _ = f.do(t, http.MethodPut, path, providerToken, map[string]any{"customerNotes": "not mine"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodPut, path, customerToken, map[string]any{"providerNotes": "not mine"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodPut, path, otherToken, map[string]any{"customerNotes": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodPut, path, customerToken, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPut, path, customerToken, map[string]any{"customerNotes": "dog in yard"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = f.do(t, http.MethodDelete, path, customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = f.do(t, http.MethodPut, path, customerToken, map[string]any{"customerNotes": "after cancel"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = f.do(t, http.MethodGet, path, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got response.BookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.NotNil(t, got.CustomerNotes)
	assert.Equal(t, "dog in yard", *got.CustomerNotes)
}

func TestCreateBooking_UnknownServiceBeforeRole_HTTP(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	unknown := f.createBody("15:00")
	unknown["serviceId"] = uuid.NewString()
	rec, _ := f.do(t, http.MethodPost, "/api/bookings", providerToken, unknown)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveDispute_HTTP(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	booking := f.create(t, "10:00")
	path := "/api/admin/bookings/" + booking.ID + "/dispute"
	body := map[string]any{"resolution": "Partial refund agreed"}

	rec, _ := f.do(t, http.MethodPut, path, customerToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodPut, path, adminToken, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	statusPath := "/api/bookings/" + booking.ID + "/status"
	for _, step := range []struct {
		token  string
		status string
	}{
		{customerToken, "confirmed"},
		{providerToken, "in_progress"},
		{providerToken, "completed"},
		{customerToken, "disputed"},
	} {
		rec, _ := f.do(t, http.MethodPut, statusPath, step.token, map[string]any{"status": step.status, "reason": "step"})
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", step.status, rec.Body.String())
	}

	rec, env := f.do(t, http.MethodPut, path, adminToken, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resolved response.BookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	require.NotNil(t, resolved.Dispute)
	require.NotNil(t, resolved.Dispute.Resolution)
	assert.Equal(t, "Partial refund agreed", *resolved.Dispute.Resolution)

	rec, _ = f.do(t, http.MethodPut, path, adminToken, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListBookings_HTTP(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	f.create(t, "08:00")
	f.create(t, "10:00")
	f.create(t, "12:00")

	rec, env := f.do(t, http.MethodGet, "/api/bookings?page=2&pageSize=2", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page response.PaginatedResponse[response.BookingResponse]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Data, 1)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	rec, env = f.do(t, http.MethodGet, "/api/bookings", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Data)

	rec, _ = f.do(t, http.MethodGet, "/api/bookings?status=unknown", customerToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit_HTTP(t *testing.T) {
	config := testConfig()
	config.RateLimit = utils.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2, IdleTTL: time.Minute}
	f := newAPIFixture(t, config)

	for i := 0; i < 2; i++ {
		rec, _ := f.do(t, http.MethodGet, "/api/bookings", customerToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, _ := f.do(t, http.MethodGet, "/api/bookings", customerToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec, _ = f.do(t, http.MethodGet, "/api/bookings", providerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
