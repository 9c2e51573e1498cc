package handler

import (
	"net/http"
	"time"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/api/middleware"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/events"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long the connection survives without a pong.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
)

// GatewayHandler upgrades authenticated clients to a websocket and streams
// their job events. Authentication happens before the upgrade via a token
// query parameter, so a bad token is rejected as a plain HTTP 401 and never
// sees a websocket frame.
type GatewayHandler struct {
	tokens   *repository.TokenRepository
	bus      *events.Bus
	upgrader websocket.Upgrader
}

// NewGatewayHandler creates a new gateway handler.
// Parameters:
//   - tokens: token repository used for pre-upgrade authentication.
//   - bus: event bus subscriptions are taken on.
//   - cors: origin policy shared with the HTTP surface.
// Returns:
//   - *GatewayHandler: initialized handler.
func NewGatewayHandler(tokens *repository.TokenRepository, bus *events.Bus, cors config.CORSConfig) *GatewayHandler {
	return &GatewayHandler{
		tokens: tokens,
		bus:    bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return middleware.IsOriginAllowed(origin, cors)
			},
		},
	}
}

// Serve handles GET /ws/jobs?token=<key>.
func (h *GatewayHandler) Serve(c *gin.Context) {
	userID, err := h.tokens.Resolve(c.Request.Context(), c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	connID := uuid.New().String()
	log := logger.FromContext(c.Request.Context()).WithFields(logger.Fields{
		logger.FieldConnID: connID,
		logger.FieldUserID: userID,
	})

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	sub := h.bus.Subscribe(userID)
	log.Info("Websocket connected")

	go h.writePump(conn, sub, log)
	h.readPump(conn, sub, log)
}

// readPump consumes and discards client frames. The gateway is push-only;
// the read loop exists to process control frames and notice disconnects.
func (h *GatewayHandler) readPump(conn *websocket.Conn, sub *events.Subscription, log *logger.Logger) {
	defer func() {
		sub.Close()
		conn.Close()
		log.Info("Websocket disconnected")
	}()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("Websocket read error")
			}
			return
		}
	}
}

// writePump sends the greeting, then forwards bus events until the
// subscription closes or a write fails.
func (h *GatewayHandler) writePump(conn *websocket.Conn, sub *events.Subscription, log *logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if err := h.write(conn, events.NewConnected()); err != nil {
		log.WithError(err).Debug("Failed to send greeting")
		return
	}

	for {
		select {
		case event, ok := <-sub.C():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := h.write(conn, event); err != nil {
				log.WithError(err).Debug("Websocket write error")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *GatewayHandler) write(conn *websocket.Conn, event events.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
