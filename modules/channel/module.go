// Package channel implements the notification delivery channels: transactional
// mail and persisted in-app notifications with live websocket push.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/example/product-catalog/domain/notification"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ListNotificationsRequest asks for a user's notifications.
type ListNotificationsRequest struct {
	UserID     string `json:"user_id"`
	UnreadOnly bool   `json:"unread_only"`
	Limit      int    `json:"limit"`
}

// NotificationResponse is a notification with its decoded payload.
type NotificationResponse struct {
	ID        string                 `json:"id"`
	Type      notification.EventType `json:"type"`
	Data      json.RawMessage        `json:"data"`
	Read      bool                   `json:"read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ListNotificationsResponse lists notifications with the unread count.
type ListNotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Unread        int64                  `json:"unread"`
}

// MarkReadRequest marks one notification read.
type MarkReadRequest struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

// ToNotificationResponse converts a persisted notification.
func ToNotificationResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Data:      n.Payload(),
		Read:      !n.IsUnread(),
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// Module owns the notification channels and the websocket hub.
type Module struct {
	mail     *MailChannel
	database *DatabaseChannel
	repo     *NotificationRepository
	hub      *Hub
	cancel   context.CancelFunc
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule wires both channels around a shared hub.
func NewModule(repo *NotificationRepository, mailer Mailer, from string) (*Module, error) {
	hub := NewHub()
	db, err := NewDatabaseChannel(repo, hub)
	if err != nil {
		return nil, err
	}
	return &Module{
		mail:     NewMailChannel(mailer, from),
		database: db,
		repo:     repo,
		hub:      hub,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "notification"
}

// Channels returns every delivery channel.
func (m *Module) Channels() []notification.Channel {
	return []notification.Channel{m.mail, m.database}
}

// Hub returns the websocket hub.
func (m *Module) Hub() *Hub {
	return m.hub
}

// Repository returns the notification repository.
func (m *Module) Repository() *NotificationRepository {
	return m.repo
}

// RegisterServices registers services.notification.{list,read}.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "list", json.Unmarshal, json.Marshal, m.list,
	); err != nil {
		return fmt.Errorf("failed to register list service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "read", json.Unmarshal, json.Marshal, m.markRead,
	); err != nil {
		return fmt.Errorf("failed to register read service: %w", err)
	}
	log.Printf("[notification] Registered services: services.notification.{list,read}")
	return nil
}

// Start runs the hub.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.hub.Run(ctx)
	log.Println("[notification] Module started")
	return nil
}

// Stop closes every websocket and stops the hub.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.hub.Wait()
	}
	log.Println("[notification] Module stopped")
	return nil
}

// List returns a user's notifications and unread count.
func (m *Module) List(ctx context.Context, req ListNotificationsRequest) (ListNotificationsResponse, error) {
	items, err := m.repo.ListForUser(ctx, req.UserID, req.UnreadOnly, req.Limit)
	if err != nil {
		return ListNotificationsResponse{}, err
	}
	unread, err := m.repo.CountUnread(ctx, req.UserID)
	if err != nil {
		return ListNotificationsResponse{}, err
	}

	resp := ListNotificationsResponse{
		Notifications: make([]NotificationResponse, 0, len(items)),
		Unread:        unread,
	}
	for _, n := range items {
		resp.Notifications = append(resp.Notifications, ToNotificationResponse(n))
	}
	return resp, nil
}

// MarkRead marks one notification of the user read.
func (m *Module) MarkRead(ctx context.Context, req MarkReadRequest) (NotificationResponse, error) {
	n, err := m.repo.MarkRead(ctx, req.UserID, req.ID, time.Now())
	if err != nil {
		return NotificationResponse{}, err
	}
	return ToNotificationResponse(n), nil
}

func (m *Module) list(ctx context.Context, req ListNotificationsRequest, _ *mono.Msg) (ListNotificationsResponse, error) {
	if req.UserID == "" {
		return ListNotificationsResponse{}, fmt.Errorf("user_id is required")
	}
	return m.List(ctx, req)
}

func (m *Module) markRead(ctx context.Context, req MarkReadRequest, _ *mono.Msg) (NotificationResponse, error) {
	if req.UserID == "" || req.ID == "" {
		return NotificationResponse{}, fmt.Errorf("user_id and id are required")
	}
	return m.MarkRead(ctx, req)
}
