// Package notify is the bounded, newest-first queue of operator alerts.
package notify

import "time"

// Type is the severity of a notification.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Notification is a single alert. It is immutable once queued.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}
