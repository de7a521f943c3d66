package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"service-marketplace/internal/data/entity"
	"service-marketplace/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ServiceOfferingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ServiceOffering, error)
}

type serviceOfferingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewServiceOfferingRepository(db database.PgxIface, log *zap.Logger) ServiceOfferingRepository {
	return &serviceOfferingRepository{
		db:  db,
		log: log.With(zap.String("repository", "service_offering")),
	}
}

func (r *serviceOfferingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ServiceOffering, error) {
	query := `
		SELECT id, provider_id, title, duration_minutes, is_active,
		       price_type, price_amount, price_currency, price_minimum_charge,
		       materials, created_at, updated_at
		FROM service_offerings
		WHERE id = $1
	`

	var s entity.ServiceOffering
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.ProviderID,
		&s.Title,
		&s.DurationMinutes,
		&s.IsActive,
		&s.Price.Type,
		&s.Price.Amount,
		&s.Price.Currency,
		&s.Price.MinimumCharge,
		&s.Materials,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find service offering by ID",
			zap.Error(err),
			zap.String("service_id", id.String()),
		)
		return nil, fmt.Errorf("find service offering %s: %w", id, err)
	}

	return &s, nil
}

// MemoryServiceOfferingRepository is seeded with Put.
type MemoryServiceOfferingRepository struct {
	mu       sync.RWMutex
	services map[uuid.UUID]entity.ServiceOffering
}

func NewMemoryServiceOfferingRepository() *MemoryServiceOfferingRepository {
	return &MemoryServiceOfferingRepository{services: make(map[uuid.UUID]entity.ServiceOffering)}
}

func (r *MemoryServiceOfferingRepository) Put(service entity.ServiceOffering) {
	r.mu.Lock()
	defer r.mu.Unlock()

	service.Materials = append([]entity.Material(nil), service.Materials...)
	r.services[service.ID] = service
}

func (r *MemoryServiceOfferingRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.ServiceOffering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.services[id]
	if !ok {
		return nil, nil
	}
	s.Materials = append([]entity.Material(nil), s.Materials...)
	return &s, nil
}
