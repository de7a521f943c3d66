package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"service-marketplace/internal/data/entity"
	"service-marketplace/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationDispatcher interface {
	Send(ctx context.Context, userID uuid.UUID, kind entity.NotificationType, payload map[string]any) error
}

// inboxDispatcher delivers by writing to the user's notification inbox.
type inboxDispatcher struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

func NewInboxDispatcher(repo repository.NotificationRepository) NotificationDispatcher {
	return &inboxDispatcher{repo: repo, now: time.Now}
}

func (d *inboxDispatcher) Send(ctx context.Context, userID uuid.UUID, kind entity.NotificationType, payload map[string]any) error {
	n := &entity.Notification{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: d.now().UTC()},
		UserID:     userID,
		Type:       kind,
		Payload:    payload,
	}
	if err := d.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("deliver %s to %s: %w", kind, userID, err)
	}
	return nil
}

// AsyncNotifier sends in the background. Failures are logged and never reach the caller.
type AsyncNotifier struct {
	next    NotificationDispatcher
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewAsyncNotifier(next NotificationDispatcher, timeout time.Duration, log *zap.Logger) *AsyncNotifier {
	return &AsyncNotifier{
		next:    next,
		timeout: timeout,
		log:     log.With(zap.String("service", "notifier")),
	}
}

func (n *AsyncNotifier) Notify(userID uuid.UUID, kind entity.NotificationType, payload map[string]any) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				n.log.Error("Notification dispatch panicked", zap.Any("panic", r), zap.String("type", string(kind)))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.next.Send(ctx, userID, kind, payload); err != nil {
			n.log.Warn("Notification dispatch failed",
				zap.Error(err),
				zap.String("user_id", userID.String()),
				zap.String("type", string(kind)),
			)
		}
	}()
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (n *AsyncNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
