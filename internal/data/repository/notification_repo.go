package repository

import (
	"context"
	"fmt"
	"sync"

	"service-marketplace/internal/data/entity"
	"service-marketplace/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationRepository is the per-user notification inbox.
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.Notification, error)
}

type notificationRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewNotificationRepository(db database.PgxIface, log *zap.Logger) NotificationRepository {
	return &notificationRepository{
		db:  db,
		log: log.With(zap.String("repository", "notification")),
	}
}

func (r *notificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, payload, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query, n.ID, n.UserID, n.Type, n.Payload, n.Read, n.CreatedAt)
	if err != nil {
		r.log.Error("Failed to create notification",
			zap.Error(err),
			zap.String("user_id", n.UserID.String()),
			zap.String("type", string(n.Type)),
		)
		return fmt.Errorf("create notification for user %s: %w", n.UserID, err)
	}

	return nil
}

func (r *notificationRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.Notification, error) {
	query := `
		SELECT id, user_id, type, payload, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.log.Error("Failed to find notifications", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("find notifications for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}

	return out, rows.Err()
}

type MemoryNotificationRepository struct {
	mu    sync.Mutex
	items []*entity.Notification
}

func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{}
}

func (r *MemoryNotificationRepository) Create(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *n
	r.items = append(r.items, &cp)
	return nil
}

// FindByUserID returns newest first.
func (r *MemoryNotificationRepository) FindByUserID(_ context.Context, userID uuid.UUID, limit int) ([]*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].UserID != userID {
			continue
		}
		cp := *r.items[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
