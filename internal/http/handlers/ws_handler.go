package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/escrow-storefront/backend/internal/auth"
	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WSHub pushes domain events to the connected users they concern.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.Mutex
	connections map[uuid.UUID][]*websocket.Conn
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[uuid.UUID][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	for _, stream := range events.Streams {
		if err := h.subscriber.Subscribe(ctx, stream, h.route); err != nil {
			h.log.Error("ws hub subscribe failed", zap.String("stream", stream), zap.Error(err))
		}
	}
}

func (h *WSHub) route(event events.Event) {
	for _, userID := range event.Recipients() {
		h.SendToUser(userID, event)
	}
}

// SendToUser writes event to every open connection of userID. Writes are
// serialised because a websocket connection allows one writer at a time.
func (h *WSHub) SendToUser(userID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conn := range h.connections[userID] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid subject"}`))
		conn.Close()
		return
	}

	h.mu.Lock()
	h.connections[userID] = append(h.connections[userID], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[userID]
		for i, c := range conns {
			if c == conn {
				h.connections[userID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[userID]) == 0 {
			delete(h.connections, userID)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
