package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// NotificationRepository defines the interface for the notification history.
// Every toast shown to the user is persisted so the CLI can list them afterwards.
type NotificationRepository interface {
	// InsertNotification saves a new notification to the repository.
	InsertNotification(notification *Notification) error
	// GetNotifications retrieves all notifications, oldest first.
	GetNotifications() ([]*Notification, error)
}

// Notification is a user-facing message with a fixed title and message pair.
type Notification struct {
	ID        uuid.UUID      // Unique identifier for the notification.
	Timestamp time.Time      // The time at which the notification was raised.
	Level     string         // LevelSuccess or LevelError.
	Title     string         // Short title, e.g. "Error".
	Message   string         // Fixed message for the operation, e.g. "Failed to add processor".
	Context   map[string]any // Additional key-value data, never shown to the user.
	RequestID *uuid.UUID     // Optional id of the HTTP request that triggered the notification.
}
