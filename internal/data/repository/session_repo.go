package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"service-marketplace/internal/data/entity"
	"service-marketplace/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SessionRepository resolves bearer tokens issued by the external auth service.
type SessionRepository interface {
	// FindActor returns nil when the token is unknown, expired, revoked or the user is inactive.
	FindActor(ctx context.Context, token string) (*entity.Actor, error)
}

type sessionRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSessionRepository(db database.PgxIface, log *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:  db,
		log: log.With(zap.String("repository", "session")),
	}
}

func (r *sessionRepository) FindActor(ctx context.Context, token string) (*entity.Actor, error) {
	query := `
		SELECT u.id, u.role
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > NOW()
		  AND u.is_active = true
	`

	var (
		actor entity.Actor
		role  string
	)
	err := r.db.QueryRow(ctx, query, token).Scan(&actor.ID, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find session", zap.Error(err))
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	actor.Role, err = entity.ParseUserRole(role)
	if err != nil {
		r.log.Warn("Session user has unknown role", zap.String("user_id", actor.ID.String()), zap.String("role", role))
		return nil, nil
	}

	return &actor, nil
}

// MemorySessionRepository maps static tokens to actors.
type MemorySessionRepository struct {
	mu     sync.RWMutex
	tokens map[string]entity.Actor
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{tokens: make(map[string]entity.Actor)}
}

func (r *MemorySessionRepository) Put(token string, actor entity.Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = actor
}

func (r *MemorySessionRepository) FindActor(_ context.Context, token string) (*entity.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actor, ok := r.tokens[token]
	if !ok {
		return nil, nil
	}
	return &actor, nil
}
