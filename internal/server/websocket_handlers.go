package server

import (
	"encoding/json"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketEventsHandler streams live admin events (new comments, likes,
// failed mail) to a dashboard. Authentication happens before the upgrade,
// usually with a ticket from POST /api/ws/ticket.
func (s *Server) WebsocketEventsHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed", "user_id", userID, "error", err)
			msg, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}
		middleware.Logger.Info("admin events connected", "user_id", userID, "clients", s.hub.Count())

		hello, _ := json.Marshal(fiber.Map{
			"type": "connected",
			"payload": fiber.Map{
				"live_events": s.notifier.Enabled(),
				"time":        time.Now().UTC(),
			},
		})
		client.TrySend(hello)

		go client.WritePump()
		client.ReadPump()
		middleware.Logger.Info("admin events disconnected", "user_id", userID)
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		return upgrade(c)
	}
}
