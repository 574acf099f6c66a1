package rankdesk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rankdesk/rankdesk/core"
	"github.com/rankdesk/rankdesk/domain"
	"go.uber.org/zap"
)

// Notifier records every notification in the history table, logs it and hands it to an
// optional display function.
type Notifier struct {
	repo    domain.NotificationRepository
	logger  *zap.Logger
	display func(domain.Notification)
}

// NewNotifier creates a Notifier. repo and display may be nil.
func NewNotifier(repo domain.NotificationRepository, logger *zap.Logger, display func(domain.Notification)) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{repo: repo, logger: logger, display: display}
}

// Notify satisfies collection.Notifier. Missing IDs and timestamps are filled in and the
// request ID is taken from ctx when the notification has none.
func (n *Notifier) Notify(ctx context.Context, notification domain.Notification) {
	if notification.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			n.logger.Error("generating notification id", zap.Error(err))
			return
		}
		notification.ID = id
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now()
	}
	if notification.RequestID == nil {
		if requestID, ok := RequestIDFromContext(ctx); ok {
			notification.RequestID = &requestID
		}
	}

	fields := []zap.Field{
		zap.String("title", notification.Title),
		zap.String("message", notification.Message),
		zap.Any("context", notification.Context),
	}
	if notification.RequestID != nil {
		fields = append(fields, zap.Stringer("request_id", notification.RequestID))
	}
	if notification.Level == domain.LevelError {
		n.logger.Warn("notification", fields...)
	} else {
		n.logger.Info("notification", fields...)
	}

	if n.repo != nil {
		if err := n.repo.InsertNotification(&notification); err != nil {
			n.logger.Error("saving notification", zap.Error(err))
		}
	}
	if n.display != nil {
		n.display(notification)
	}
}

// Raise builds a notification from level, title and message, applies options and sends it.
func (n *Notifier) Raise(ctx context.Context, level, title, message string, options ...func(*domain.Notification) error) {
	notification := domain.Notification{Level: level, Title: title, Message: message}
	if err := core.ApplyNotificationOptions(&notification, options...); err != nil {
		n.logger.Error("applying notification options", zap.Error(err))
		return
	}
	n.Notify(ctx, notification)
}
