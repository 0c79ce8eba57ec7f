package handlers

import (
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/identity"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	selectorsKey = "selectors"
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

type subscribedMessage struct {
	Type      string            `json:"type"`
	Selectors []realtime.Target `json:"selectors"`
}

// NotificationHandler streams notifications over a websocket. Clients that
// miss events while disconnected reconcile through the report queries.
type NotificationHandler struct {
	hub      *realtime.Hub
	notifier *services.NotificationService
}

func NewNotificationHandler(hub *realtime.Hub, notifier *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{hub: hub, notifier: notifier}
}

// Upgrade resolves what the caller may subscribe to before the protocol
// switch, so authorization failures still get a JSON error. ?report=<id>,...
// adds the session channels of the caller's anonymous reports.
func (h *NotificationHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	actor, err := identity.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}

	var reports []uuid.UUID
	for _, raw := range strings.Split(c.Query("report"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid report ID: "+raw)
		}
		reports = append(reports, id)
	}

	selectors, err := h.notifier.SelectorsFor(c.UserContext(), actor, reports)
	if err != nil {
		return writeError(c, err)
	}
	c.Locals(selectorsKey, selectors)
	return c.Next()
}

func (h *NotificationHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		selectors, _ := conn.Locals(selectorsKey).([]realtime.Target)
		sub := h.hub.Subscribe(selectors...)
		defer sub.Close()

		if err := conn.WriteJSON(subscribedMessage{Type: "subscribed", Selectors: sub.Selectors()}); err != nil {
			return
		}

		// The client never sends anything meaningful; reading only detects
		// disconnects.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					slog.Debug("websocket write failed", "component", "realtime", "subscription_id", sub.ID, "error", err)
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	})
}
