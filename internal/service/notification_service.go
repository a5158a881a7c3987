package service

import (
	"context"

	"go.uber.org/zap"
)

// NotificationService fans a message out to members. Delivery is best effort:
// a failed recipient is logged and the rest still get the message.
type NotificationService interface {
	Broadcast(ctx context.Context, recipients []string, exclude string, text string) (sent, failed int)
}

type notificationService struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewNotificationService(notifier Notifier, logger *zap.Logger) NotificationService {
	return &notificationService{notifier: notifier, logger: logger.Named("notify")}
}

func (s *notificationService) Broadcast(ctx context.Context, recipients []string, exclude string, text string) (int, int) {
	var sent, failed int
	seen := make(map[string]struct{}, len(recipients))
	for _, id := range recipients {
		if id == exclude {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := s.notifier.Notify(ctx, id, text); err != nil {
			failed++
			s.logger.Warn("notification failed", zap.String("member_id", id), zap.Error(err))
			continue
		}
		sent++
	}
	s.logger.Info("broadcast finished", zap.Int("sent", sent), zap.Int("failed", failed))
	return sent, failed
}
