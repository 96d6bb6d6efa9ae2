package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"driftchat/internal/events"
	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
	"driftchat/pkg/logger"
)

// clientCommand is what a connected client may ask of the hub.
type clientCommand struct {
	Action  string `json:"action"` // subscribe, unsubscribe, heartbeat
	Channel string `json:"channel,omitempty"`
}

type Handler struct {
	auth       *services.AuthService
	presence   *services.PresenceService
	authorizer *ChannelAuthorizer
	hub        *Hub
	log        *logger.Logger
}

func NewHandler(auth *services.AuthService, presence *services.PresenceService, authorizer *ChannelAuthorizer, hub *Hub, log *logger.Logger) *Handler {
	return &Handler{auth: auth, presence: presence, authorizer: authorizer, hub: hub, log: log}
}

// Connect upgrades the request and runs the session until the peer drops.
// The token rides in the query string because browsers cannot set headers
// on websocket upgrades.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, err := h.auth.ParseAccess(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID.String())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	// Every session gets its owner's mailboxes without asking.
	h.hub.Subscribe(client, events.ChannelPrefixUser+client.UserID)
	h.hub.Subscribe(client, events.ChannelPrefixCall+client.UserID)
	h.hub.Subscribe(client, events.ChannelPrefixTyping+client.UserID)

	if err := h.presence.Connected(ctx, userID); err != nil {
		h.log.Warnf("ws: presence online for %s: %v", userID, err)
	}

	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return h.presence.Heartbeat(ctx, userID)
	})

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		h.handleCommand(ctx, client, raw)
	}

	h.hub.Unregister(client)
	// Only the last connection flips the user offline.
	if h.hub.ConnectionsForUser(client.UserID) == 0 {
		if err := h.presence.Disconnected(context.Background(), userID); err != nil {
			h.log.Warnf("ws: presence offline for %s: %v", userID, err)
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, client *Client, raw []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return
	}

	switch cmd.Action {
	case "subscribe":
		ok, err := h.authorizer.CanSubscribe(ctx, client.UserID, cmd.Channel)
		if err != nil {
			h.log.Warnf("ws: authorize %s for %s: %v", cmd.Channel, client.UserID, err)
			return
		}
		if ok {
			h.hub.Subscribe(client, cmd.Channel)
		}
	case "unsubscribe":
		h.hub.Unsubscribe(client, cmd.Channel)
	case "heartbeat":
		if userID, err := uuid.Parse(client.UserID); err == nil {
			_ = h.presence.Heartbeat(ctx, userID)
		}
	}
}
