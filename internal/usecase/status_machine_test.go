package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"service-marketplace/internal/data/entity"
	"service-marketplace/internal/data/repository"
	"service-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type machineFixture struct {
	repo    repository.BookingRepository
	ratings *repository.MemoryRatingRepository
	machine BookingStatusMachine
}

func newMachineFixture() *machineFixture {
	repo := repository.NewMemoryBookingRepository()
	ratings := repository.NewMemoryRatingRepository()
	return &machineFixture{
		repo:    repo,
		ratings: ratings,
		machine: NewBookingStatusMachine(repo, ratings, zap.NewNop()),
	}
}

func (f *machineFixture) seed(t *testing.T, status entity.BookingStatus) *entity.Booking {
	return seedBooking(t, f.repo, uuid.New(), 600, 60, status)
}

func customerOf(b *entity.Booking) entity.Actor {
	return entity.Actor{ID: b.CustomerID, Role: entity.RoleCustomer}
}

func providerOf(b *entity.Booking) entity.Actor {
	return entity.Actor{ID: b.ProviderID, Role: entity.RoleProvider}
}

func anAdmin() entity.Actor {
	return entity.Actor{ID: uuid.New(), Role: entity.RoleAdmin}
}

func TestStatusMachine_AllPairs(t *testing.T) {
	for _, from := range entity.AllBookingStatuses {
		for _, to := range entity.AllBookingStatuses {
			from, to := from, to
			_, legal := capabilities[edge{from, to}]

			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newMachineFixture()
				b := f.seed(t, from)

				var lastErr error
				for _, actor := range []entity.Actor{customerOf(b), providerOf(b), anAdmin()} {
					got, err := f.machine.Transition(context.Background(), b.ID, to, actor, nil)
					if err == nil {
						assert.True(t, legal, "illegal edge accepted")
						assert.Equal(t, to, got.Status)
						return
					}
					lastErr = err
				}

				assert.False(t, legal, "legal edge rejected for every actor")
				assert.ErrorIs(t, lastErr, apperror.ErrIllegalTransition)
				assert.Contains(t, lastErr.Error(), string(from))
				assert.Contains(t, lastErr.Error(), string(to))

				stored, err := f.repo.FindByID(context.Background(), b.ID)
				require.NoError(t, err)
				assert.Equal(t, from, stored.Status)
			})
		}
	}
}

func TestStatusMachine_OnlyDesignatedActors(t *testing.T) {
	stranger := entity.Actor{ID: uuid.New(), Role: entity.RoleCustomer}

	tests := []struct {
		name    string
		from    entity.BookingStatus
		to      entity.BookingStatus
		allowed []string
	}{
		{name: "confirm", from: entity.BookingStatusPending, to: entity.BookingStatusConfirmed, allowed: []string{"customer"}},
		{name: "cancel pending", from: entity.BookingStatusPending, to: entity.BookingStatusCancelled, allowed: []string{"customer", "provider", "admin"}},
		{name: "start", from: entity.BookingStatusConfirmed, to: entity.BookingStatusInProgress, allowed: []string{"provider"}},
		{name: "cancel confirmed", from: entity.BookingStatusConfirmed, to: entity.BookingStatusCancelled, allowed: []string{"customer", "provider", "admin"}},
		{name: "complete", from: entity.BookingStatusInProgress, to: entity.BookingStatusCompleted, allowed: []string{"provider"}},
		{name: "dispute", from: entity.BookingStatusCompleted, to: entity.BookingStatusDisputed, allowed: []string{"customer", "provider"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, who := range []string{"customer", "provider", "admin", "stranger", "customer-id-provider-role"} {
				f := newMachineFixture()
				b := f.seed(t, tt.from)

				var actor entity.Actor
				switch who {
				case "customer":
					actor = customerOf(b)
				case "provider":
					actor = providerOf(b)
				case "admin":
					actor = anAdmin()
				case "stranger":
					actor = stranger
				case "customer-id-provider-role":
					actor = entity.Actor{ID: b.CustomerID, Role: entity.RoleProvider}
				}

				_, err := f.machine.Transition(context.Background(), b.ID, tt.to, actor, nil)
				if contains(tt.allowed, who) {
					assert.NoError(t, err, who)
				} else {
					assert.ErrorIs(t, err, apperror.ErrForbidden, who)
				}
			}
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestStatusMachine_TerminalStatesImmutable(t *testing.T) {
	f := newMachineFixture()
	ctx := context.Background()

	cancelled := f.seed(t, entity.BookingStatusCancelled)
	for _, to := range entity.AllBookingStatuses {
		_, err := f.machine.Transition(ctx, cancelled.ID, to, anAdmin(), nil)
		assert.ErrorIs(t, err, apperror.ErrIllegalTransition, to)
	}

	completed := f.seed(t, entity.BookingStatusCompleted)
	for _, to := range entity.AllBookingStatuses {
		if to == entity.BookingStatusDisputed {
			continue
		}
		_, err := f.machine.Transition(ctx, completed.ID, to, providerOf(completed), nil)
		assert.ErrorIs(t, err, apperror.ErrIllegalTransition, to)
	}

	reason := "work left unfinished"
	got, err := f.machine.Transition(ctx, completed.ID, entity.BookingStatusDisputed, customerOf(completed), &reason)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusDisputed, got.Status)
	require.NotNil(t, got.DisputedAt)
	assert.Equal(t, reason, *got.DisputeReason)
}

func TestStatusMachine_AppliesTimestampsAndHistory(t *testing.T) {
	f := newMachineFixture()
	ctx := context.Background()
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f.machine.(*bookingStatusMachine).now = func() time.Time { return fixed }

	b := f.seed(t, entity.BookingStatusConfirmed)
	reason := "customer moved"

	got, err := f.machine.Transition(ctx, b.ID, entity.BookingStatusCancelled, providerOf(b), &reason)
	require.NoError(t, err)
	require.NotNil(t, got.CancelledAt)
	assert.True(t, fixed.Equal(*got.CancelledAt))
	assert.Equal(t, reason, *got.CancellationReason)
	assert.True(t, fixed.Equal(got.UpdatedAt))

	history, err := f.repo.FindHistory(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.BookingStatusConfirmed, history[0].FromStatus)
	assert.Equal(t, entity.BookingStatusCancelled, history[0].ToStatus)
	assert.Equal(t, entity.RoleProvider, history[0].ActorRole)
}

func TestStatusMachine_EmitsEventAndRecomputesRating(t *testing.T) {
	f := newMachineFixture()
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []StatusChanged
	)
	f.machine.OnStatusChanged(func(_ context.Context, e StatusChanged) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	f.machine.OnStatusChanged(func(context.Context, StatusChanged) {
		panic("handler bug")
	})

	b := f.seed(t, entity.BookingStatusInProgress)
	got, err := f.machine.Transition(ctx, b.ID, entity.BookingStatusCompleted, providerOf(b), nil)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)

	require.Len(t, events, 1)
	assert.Equal(t, entity.BookingStatusInProgress, events[0].OldStatus)
	assert.Equal(t, entity.BookingStatusCompleted, events[0].NewStatus)
	assert.Equal(t, b.ProviderID, events[0].ActorID)
	assert.Equal(t, 1, f.ratings.Calls(b.ProviderID))
}

type failingRatings struct{}

func (failingRatings) Recompute(context.Context, uuid.UUID) (float64, error) {
	return 0, errors.New("reviews unavailable")
}

func TestStatusMachine_RatingFailureDoesNotFailTransition(t *testing.T) {
	repo := repository.NewMemoryBookingRepository()
	machine := NewBookingStatusMachine(repo, failingRatings{}, zap.NewNop())
	b := seedBooking(t, repo, uuid.New(), 600, 60, entity.BookingStatusInProgress)

	got, err := machine.Transition(context.Background(), b.ID, entity.BookingStatusCompleted, providerOf(b), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCompleted, got.Status)
}

// racingRepository lets another writer win between the read and the compare-and-set.
type racingRepository struct {
	repository.BookingRepository
	race func()
}

func (r *racingRepository) UpdateStatus(ctx context.Context, b *entity.Booking, from entity.BookingStatus, c *entity.StatusChange) (bool, error) {
	if r.race != nil {
		race := r.race
		r.race = nil
		race()
	}
	return r.BookingRepository.UpdateStatus(ctx, b, from, c)
}

func TestStatusMachine_LostUpdateReportsFreshStatus(t *testing.T) {
	inner := repository.NewMemoryBookingRepository()
	repo := &racingRepository{BookingRepository: inner}
	machine := NewBookingStatusMachine(repo, repository.NewMemoryRatingRepository(), zap.NewNop())
	ctx := context.Background()

	b := seedBooking(t, inner, uuid.New(), 600, 60, entity.BookingStatusPending)
	repo.race = func() {
		_, err := NewBookingStatusMachine(inner, repository.NewMemoryRatingRepository(), zap.NewNop()).
			Transition(ctx, b.ID, entity.BookingStatusCancelled, providerOf(b), nil)
		require.NoError(t, err)
	}

	_, err := machine.Transition(ctx, b.ID, entity.BookingStatusConfirmed, customerOf(b), nil)
	require.ErrorIs(t, err, apperror.ErrIllegalTransition)
	assert.Contains(t, err.Error(), "from cancelled to confirmed")
}

func TestStatusMachine_NotFoundAndUnknownTarget(t *testing.T) {
	f := newMachineFixture()
	ctx := context.Background()

	_, err := f.machine.Transition(ctx, uuid.New(), entity.BookingStatusConfirmed, anAdmin(), nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	b := f.seed(t, entity.BookingStatusPending)
	_, err = f.machine.Transition(ctx, b.ID, entity.BookingStatus("archived"), customerOf(b), nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
