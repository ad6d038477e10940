package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/product-catalog/domain/notification"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotificationNotFound is returned when a notification does not exist for the user.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository stores in-app notifications.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts n unless a notification with the same DedupKey exists.
// It reports whether a row was written.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedup_key"}}, DoNothing: true}).
		Create(n)
	if err := result.Error; err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}
	return result.RowsAffected > 0, nil
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*notification.Notification, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var out []*notification.Notification
	if err := query.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// CountUnread returns the number of unread notifications of a user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

// MarkRead stamps read_at on an unread notification owned by userID.
// Marking an already read notification is a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) (*notification.Notification, error) {
	err := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", at.UTC()).Error
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}

	var n notification.Notification
	if err := r.db.WithContext(ctx).First(&n, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	return &n, nil
}
