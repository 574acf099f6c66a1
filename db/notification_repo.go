package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rankdesk/rankdesk/domain"
)

var _ domain.NotificationRepository = (*Repository)(nil)

// dbNotification represents a notification as stored in the database.
type dbNotification struct {
	ID        uuid.UUID      `db:"id"`
	Timestamp time.Time      `db:"timestamp"`
	Level     string         `db:"level"`
	Title     string         `db:"title"`
	Message   string         `db:"message"`
	Context   Metadata       `db:"context"`
	RequestID sql.NullString `db:"request_id"`
}

// toDomainNotification converts a dbNotification to a domain.Notification.
func toDomainNotification(dbNotification *dbNotification) *domain.Notification {
	notification := &domain.Notification{
		ID:        dbNotification.ID,
		Timestamp: dbNotification.Timestamp,
		Level:     dbNotification.Level,
		Title:     dbNotification.Title,
		Message:   dbNotification.Message,
		Context:   map[string]any(dbNotification.Context),
	}

	if dbNotification.RequestID.Valid {
		if id, err := uuid.Parse(dbNotification.RequestID.String); err == nil {
			notification.RequestID = &id
		}
	}

	return notification
}

// fromDomainNotification converts a domain.Notification to a dbNotification.
func fromDomainNotification(notification *domain.Notification) *dbNotification {
	dbNotification := &dbNotification{
		ID:        notification.ID,
		Timestamp: notification.Timestamp,
		Level:     notification.Level,
		Title:     notification.Title,
		Message:   notification.Message,
		Context:   Metadata(notification.Context),
	}

	if notification.RequestID != nil {
		dbNotification.RequestID = sql.NullString{String: notification.RequestID.String(), Valid: true}
	}

	return dbNotification
}

// InsertNotification saves a new notification to the database.
func (repo *Repository) InsertNotification(notification *domain.Notification) error {
	dbNotification := fromDomainNotification(notification)
	query := `INSERT INTO notifications (id, timestamp, level, title, message, context, request_id)
	          VALUES (:id, :timestamp, :level, :title, :message, :context, :request_id)`

	_, err := repo.conn.NamedExec(query, dbNotification)
	if err != nil {
		return fmt.Errorf("inserting notification %s: %w", notification.ID, err)
	}

	return nil
}

// GetNotifications retrieves all notifications from the database, oldest first.
func (repo *Repository) GetNotifications() ([]*domain.Notification, error) {
	var dbNotifications []*dbNotification
	query := `SELECT * FROM notifications ORDER BY timestamp ASC, id ASC`

	err := repo.conn.Select(&dbNotifications, query)
	if err != nil {
		return nil, fmt.Errorf("getting notifications: %w", err)
	}

	notifications := make([]*domain.Notification, len(dbNotifications))
	for i, dbN := range dbNotifications {
		notifications[i] = toDomainNotification(dbN)
	}

	return notifications, nil
}
