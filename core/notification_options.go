// Package core provides small helpers shared by rankdesk packages.
// This file contains option functions for customizing notifications.
package core

import (
	"maps"

	"github.com/google/uuid"
	"github.com/rankdesk/rankdesk/domain"
)

// NotificationWithContext is an option that merges values into the context map of a notification.
func NotificationWithContext(context map[string]any) func(notification *domain.Notification) error {
	return func(notification *domain.Notification) error {
		if notification.Context == nil {
			notification.Context = make(map[string]any, len(context))
		}
		maps.Copy(notification.Context, context)
		return nil
	}
}

// NotificationWithRequestID is an option to associate a notification with an API request ID.
func NotificationWithRequestID(id uuid.UUID) func(notification *domain.Notification) error {
	return func(notification *domain.Notification) error {
		notification.RequestID = &id
		return nil
	}
}

// ApplyNotificationOptions applies options in order and stops at the first error.
func ApplyNotificationOptions(notification *domain.Notification, options ...func(*domain.Notification) error) error {
	for _, option := range options {
		if err := option(notification); err != nil {
			return err
		}
	}
	return nil
}
