package websocket

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is one creator overlay connection.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	CreatorID int64
}

// SupportAlert is pushed to a creator's overlays when a charge succeeds.
type SupportAlert struct {
	TargetCreatorID int64  `json:"-"`
	Kind            string `json:"kind"`
	SupporterID     int64  `json:"supporter_id"`
	DisplayName     string `json:"display_name"`
	Message         string `json:"message,omitempty"`
	AmountCents     int64  `json:"amount_cents"`
	CreatorCents    int64  `json:"creator_cents"`
	IsSuperfan      bool   `json:"is_superfan"`
}

// Hub owns the client set; everything reaches it through channels so only
// Run touches the map.
type Hub struct {
	clients        map[int64]map[*Client]struct{}
	Register       chan *Client
	Unregister     chan *Client
	BroadcastAlert chan SupportAlert
	done           chan struct{}
	logger         zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:        make(map[int64]map[*Client]struct{}),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		BroadcastAlert: make(chan SupportAlert, 64),
		done:           make(chan struct{}),
		logger:         logger,
	}
}

// Publish queues an alert without blocking; alerts are dropped when the hub is
// saturated since they are a courtesy on top of the committed charge.
func (h *Hub) Publish(alert SupportAlert) bool {
	select {
	case h.BroadcastAlert <- alert:
		return true
	default:
		h.logger.Warn().Int64("creator_id", alert.TargetCreatorID).Msg("alert queue full, dropping support alert")
		return false
	}
}

// Attach registers client. It reports false once the hub has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Detach unregisters client; it returns at once when the hub has stopped.
func (h *Hub) Detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Run owns the client set until ctx is canceled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					close(client.Send)
				}
			}
			h.clients = make(map[int64]map[*Client]struct{})
			return

		case client := <-h.Register:
			set, ok := h.clients[client.CreatorID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.CreatorID] = set
			}
			set[client] = struct{}{}
			h.logger.Info().Int64("creator_id", client.CreatorID).Msg("websocket client registered")

		case client := <-h.Unregister:
			h.remove(client)

		case alert := <-h.BroadcastAlert:
			set := h.clients[alert.TargetCreatorID]
			if len(set) == 0 {
				continue
			}
			jsonData, err := json.Marshal(alert)
			if err != nil {
				h.logger.Error().Err(err).Msg("failed to marshal support alert")
				continue
			}
			for client := range set {
				select {
				case client.Send <- jsonData:
				default:
					h.remove(client)
				}
			}
			h.logger.Info().Int64("creator_id", alert.TargetCreatorID).Int("clients", len(set)).Msg("sent support alert")
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.CreatorID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.CreatorID)
	}
	h.logger.Info().Int64("creator_id", client.CreatorID).Msg("websocket client unregistered")
}
