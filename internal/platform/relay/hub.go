// Package relay fans consultation events out to connected websocket clients.
// Clients subscribe to rooms; the hub tracks which clients are in which room
// and delivers events without blocking on slow readers.
package relay

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

const (
	consultationRoomPrefix = "consultation_"
	userRoomPrefix         = "user_"
)

func ConsultationRoom(consultationID string) string { return consultationRoomPrefix + consultationID }
func UserRoom(accountID string) string              { return userRoomPrefix + accountID }

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one authenticated websocket connection.
type Client struct {
	ID        string
	AccountID string
	Role      string
	Name      string
	Send      chan []byte

	rooms map[string]struct{} // guarded by Hub.mu
}

func NewClient(id, accountID, role, name string, buffer int) *Client {
	return &Client{
		ID:        id,
		AccountID: accountID,
		Role:      role,
		Name:      name,
		Send:      make(chan []byte, buffer),
		rooms:     make(map[string]struct{}),
	}
}

// Hub maps room keys to the clients subscribed to them. The registry lives
// only in memory; clients rejoin their rooms after a restart.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	all    map[*Client]struct{}
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		all:    make(map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[client] = struct{}{}
}

// Unregister removes a client from every room and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for room := range client.rooms {
		h.removeLocked(client, room)
	}
	delete(h.all, client)
	close(client.Send)
}

// Join subscribes a registered client to room.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.rooms[room] = struct{}{}
}

func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client, room)
}

func (h *Hub) removeLocked(client *Client, room string) {
	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

// InRoom reports whether client is subscribed to room.
func (h *Hub) InRoom(client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][client]
	return ok
}

// Broadcast delivers an event to every subscriber of room except the given
// client, which may be nil. A subscriber whose buffer is full misses the
// event. It returns the number of clients the event was queued for.
func (h *Hub) Broadcast(room, event string, data interface{}, except *Client) int {
	frame, err := encode(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Str("room", room).Msg("relay: failed to marshal event")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.rooms[room] {
		if client == except {
			continue
		}
		select {
		case client.Send <- frame:
			delivered++
		default:
			h.logger.Debug().Str("client_id", client.ID).Str("event", event).Msg("relay: client buffer full, event dropped")
		}
	}
	return delivered
}

// BroadcastToConsultation delivers an event to everyone in a consultation's
// room, including the connections of whoever caused it.
func (h *Hub) BroadcastToConsultation(consultationID, event string, data interface{}) {
	h.Broadcast(ConsultationRoom(consultationID), event, data, nil)
}

// SendTo queues an event for a single client.
func (h *Hub) SendTo(client *Client, event string, data interface{}) bool {
	frame, err := encode(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("relay: failed to marshal event")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.all[client]; !ok {
		return false
	}
	select {
	case client.Send <- frame:
		return true
	default:
		return false
	}
}

func encode(event string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// RoomCount returns the number of clients subscribed to room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
