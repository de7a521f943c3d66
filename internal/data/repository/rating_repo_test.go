package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRatingRepository_Recompute(t *testing.T) {
	repo := NewMemoryRatingRepository()
	ctx := context.Background()
	providerID := uuid.New()

	avg, err := repo.Recompute(ctx, providerID)
	require.NoError(t, err)
	assert.Zero(t, avg, "no reviews yet")

	for _, rating := range []int{5, 4, 4} {
		repo.AddReview(providerID, rating)
	}
	repo.AddReview(uuid.New(), 1)

	avg, err = repo.Recompute(ctx, providerID)
	require.NoError(t, err)
	assert.Equal(t, 4.3, avg)
	assert.Equal(t, 4.3, repo.Average(providerID))
	assert.Equal(t, 2, repo.Calls(providerID))

	repo.AddReview(providerID, 3)
	repo.AddReview(providerID, 5)
	repo.AddReview(providerID, 4)

	// 25 / 6 = 4.1666... rounds to 4.2
	avg, err = repo.Recompute(ctx, providerID)
	require.NoError(t, err)
	assert.Equal(t, 4.2, avg)
}
