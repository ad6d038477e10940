package channel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/product-catalog/domain/notification"
	nanoid "github.com/jaevor/go-nanoid"
)

// DatabaseChannel persists unread in-app notifications and pushes them to
// any open websocket of the recipient.
type DatabaseChannel struct {
	repo  *NotificationRepository
	hub   *Hub
	newID func() string
}

var _ notification.Channel = (*DatabaseChannel)(nil)

// NewDatabaseChannel creates the channel. hub may be nil.
func NewDatabaseChannel(repo *NotificationRepository, hub *Hub) (*DatabaseChannel, error) {
	gen, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &DatabaseChannel{repo: repo, hub: hub, newID: gen}, nil
}

// Kind returns notification.ChannelDatabase.
func (c *DatabaseChannel) Kind() notification.ChannelKind {
	return notification.ChannelDatabase
}

// Deliver stores the payload for the recipient. Redelivering the same job to
// the same recipient leaves a single row; without a job ID in ctx every call
// writes a new one.
func (c *DatabaseChannel) Deliver(ctx context.Context, r notification.Recipient, event notification.EventType, payload json.RawMessage) error {
	if r.UserID == "" {
		return fmt.Errorf("recipient %s has no user id", r.Email)
	}

	id := c.newID()
	jobID, ok := notification.JobIDFrom(ctx)
	if !ok {
		jobID = id
	}

	n := &notification.Notification{
		ID:        id,
		UserID:    r.UserID,
		Type:      event,
		Data:      string(payload),
		DedupKey:  dedupKey(jobID, r.UserID),
		CreatedAt: time.Now().UTC(),
	}
	created, err := c.repo.Create(ctx, n)
	if err != nil {
		return err
	}

	if created && c.hub != nil {
		c.hub.Push(r.UserID, Live{
			ID:        n.ID,
			Type:      n.Type,
			Data:      payload,
			CreatedAt: n.CreatedAt,
		})
	}
	return nil
}

// Live is the websocket frame sent for a new notification.
type Live struct {
	ID        string                 `json:"id"`
	Type      notification.EventType `json:"type"`
	Data      json.RawMessage        `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
}

func dedupKey(jobID, userID string) string {
	h := sha256.New()
	h.Write([]byte(jobID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}
