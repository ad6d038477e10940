package notification

import (
	"encoding/json"
	"time"
)

// Notification is a persisted in-app notification. It is unread while ReadAt is nil.
type Notification struct {
	ID     string    `gorm:"primaryKey;size:32" json:"id"`
	UserID string    `gorm:"size:36;not null;index" json:"user_id"`
	Type   EventType `gorm:"size:64;not null" json:"type"`
	Data   string    `gorm:"type:text;not null" json:"-"`
	// DedupKey identifies the (job, recipient) pair. A redelivered job keeps
	// its ID and writes one row; a job enqueued again gets a new ID.
	DedupKey  string     `gorm:"size:64;uniqueIndex" json:"-"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the table name for the Notification entity.
func (Notification) TableName() string {
	return "notifications"
}

// IsUnread reports whether the notification has not been read yet.
func (n *Notification) IsUnread() bool {
	return n.ReadAt == nil
}

// Payload returns the stored event snapshot.
func (n *Notification) Payload() json.RawMessage {
	return json.RawMessage(n.Data)
}
