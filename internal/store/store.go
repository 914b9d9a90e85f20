package store

import (
	"time"
)

// Store is the persistence interface for the notification journal.
// Defined at the consumer side per Go conventions.
type Store interface {
	RecordNotification(n *NotificationRecord) error
	ListNotifications(f NotificationFilter) ([]NotificationRecord, error)

	// Maintenance
	Cleanup(olderThan time.Time) (int64, error)
	Close() error
}

// NotificationRecord is one dispatcher decision.
type NotificationRecord struct {
	ID             int64
	NotificationID string
	Kind           string
	Delivered      bool
	Reason         string
	Cwd            string
	CreatedAt      time.Time
}

// NotificationFilter specifies criteria for listing notifications.
type NotificationFilter struct {
	NotificationID string
	DeliveredOnly  bool
	Limit          int
	Since          time.Time
}
