package repository

import (
	"context"
	"fmt"
	"sync"

	"service-marketplace/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RatingRepository maintains a provider's average review rating.
type RatingRepository interface {
	Recompute(ctx context.Context, providerID uuid.UUID) (float64, error)
}

type ratingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewRatingRepository(db database.PgxIface, log *zap.Logger) RatingRepository {
	return &ratingRepository{
		db:  db,
		log: log.With(zap.String("repository", "rating")),
	}
}

// Recompute averages the provider's reviews to one decimal and stores it in provider_stats.
func (r *ratingRepository) Recompute(ctx context.Context, providerID uuid.UUID) (float64, error) {
	query := `
		INSERT INTO provider_stats (provider_id, average_rating, review_count, updated_at)
		SELECT $1, COALESCE(ROUND(AVG(rating)::numeric, 1), 0)::float8, COUNT(*), NOW()
		FROM reviews
		WHERE provider_id = $1
		ON CONFLICT (provider_id) DO UPDATE
		SET average_rating = EXCLUDED.average_rating,
		    review_count = EXCLUDED.review_count,
		    updated_at = EXCLUDED.updated_at
		RETURNING average_rating
	`

	var avg float64
	if err := r.db.QueryRow(ctx, query, providerID).Scan(&avg); err != nil {
		r.log.Error("Failed to recompute provider rating",
			zap.Error(err),
			zap.String("provider_id", providerID.String()),
		)
		return 0, fmt.Errorf("recompute rating for provider %s: %w", providerID, err)
	}

	return avg, nil
}

// MemoryRatingRepository keeps reviews in memory and averages them the way
// Recompute does in provider_stats. Calls counts recomputes per provider.
type MemoryRatingRepository struct {
	mu       sync.Mutex
	reviews  map[uuid.UUID][]int
	averages map[uuid.UUID]float64
	calls    map[uuid.UUID]int
}

func NewMemoryRatingRepository() *MemoryRatingRepository {
	return &MemoryRatingRepository{
		reviews:  make(map[uuid.UUID][]int),
		averages: make(map[uuid.UUID]float64),
		calls:    make(map[uuid.UUID]int),
	}
}

// AddReview records a 1-5 rating for the provider.
func (r *MemoryRatingRepository) AddReview(providerID uuid.UUID, rating int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews[providerID] = append(r.reviews[providerID], rating)
}

func (r *MemoryRatingRepository) Recompute(_ context.Context, providerID uuid.UUID) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls[providerID]++

	ratings := r.reviews[providerID]
	if len(ratings) == 0 {
		r.averages[providerID] = 0
		return 0, nil
	}

	sum := 0
	for _, v := range ratings {
		sum += v
	}
	avg, _ := decimal.NewFromInt(int64(sum)).
		Div(decimal.NewFromInt(int64(len(ratings)))).
		Round(1).
		Float64()

	r.averages[providerID] = avg
	return avg, nil
}

// Average returns the value stored by the last Recompute.
func (r *MemoryRatingRepository) Average(providerID uuid.UUID) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.averages[providerID]
}

func (r *MemoryRatingRepository) Calls(providerID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[providerID]
}
