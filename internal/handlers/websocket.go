package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"racer-platform/internal/store"
	ws "racer-platform/internal/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Overlays are loaded by streaming software from arbitrary origins; the secret
// token in the URL is the credential.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Store  *store.Store
	Hub    *ws.Hub
	logger zerolog.Logger
}

func NewWebSocketHandler(s *store.Store, hub *ws.Hub, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{Store: s, Hub: hub, logger: logger}
}

func (h *WebSocketHandler) ServerWs(c *gin.Context) {
	creator, err := h.Store.CreatorByWidgetToken(c.Request.Context(), c.Param("secretToken"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("invalid websocket secret token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := &ws.Client{
		Hub:       h.Hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		CreatorID: creator.ID,
	}

	if !client.Hub.Attach(client) {
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) writePump(client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; overlays never send data.
func (h *WebSocketHandler) readPump(client *ws.Client) {
	defer func() {
		client.Hub.Detach(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Int64("creator_id", client.CreatorID).Msg("readPump error")
			}
			break
		}
	}
}
