package api

import (
	"log"

	"github.com/example/product-catalog/modules/channel"
	"github.com/example/product-catalog/modules/user"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// handleNotificationsSocket streams new in-app notifications to the
// authenticated user until the client disconnects.
func (m *APIModule) handleNotificationsSocket(c *websocket.Conn) {
	claims, _ := c.Locals(ClaimsContextKey).(*user.Claims)
	if claims == nil {
		_ = c.Close()
		return
	}

	client := &channel.Client{
		ID:     uuid.New().String(),
		UserID: claims.UserID,
		Conn:   c,
	}

	// The welcome frame goes out before the hub may write to the connection.
	if err := c.WriteJSON(map[string]string{"type": "connected", "user_id": claims.UserID}); err != nil {
		log.Printf("[api] Failed to send welcome: %v", err)
		return
	}

	hub := m.services.Notifications.Hub()
	hub.Register(client)
	defer hub.Unregister(client)

	log.Printf("[api] Notification socket connected: %s (user %s)", client.ID, claims.UserID)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Client %s closed connection", client.ID)
			} else {
				log.Printf("[api] Read error from %s: %v", client.ID, err)
			}
			return
		}
	}
}
