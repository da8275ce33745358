package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newClient(id string, buffer int) *Client {
	return NewClient(id, "account-"+id, "patient", "Client "+id, buffer)
}

func readEnvelope(t *testing.T, client *Client) Envelope {
	t.Helper()
	select {
	case frame := <-client.Send:
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("invalid frame %s: %v", frame, err)
		}
		return env
	default:
		t.Fatalf("expected a queued frame for %s", client.ID)
		return Envelope{}
	}
}

func TestRoomKeys(t *testing.T) {
	if got := ConsultationRoom("c-1"); got != "consultation_c-1" {
		t.Errorf("unexpected consultation room %q", got)
	}
	if got := UserRoom("u-1"); got != "user_u-1" {
		t.Errorf("unexpected user room %q", got)
	}
}

func TestHub_RegisterAndJoin(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("1", 8)

	// Joining before registering is ignored.
	hub.Join(client, "room-a")
	if hub.RoomCount("room-a") != 0 {
		t.Fatalf("expected unregistered client to be ignored")
	}

	hub.Register(client)
	hub.Join(client, "room-a")
	hub.Join(client, "room-a")

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.RoomCount("room-a") != 1 {
		t.Fatalf("expected 1 subscriber in room-a, got %d", hub.RoomCount("room-a"))
	}
	if !hub.InRoom(client, "room-a") || hub.InRoom(client, "room-b") {
		t.Fatal("unexpected room membership")
	}
}

func TestHub_Leave(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("1", 8)
	hub.Register(client)
	hub.Join(client, "room-a")
	hub.Join(client, "room-b")

	hub.Leave(client, "room-a")
	hub.Leave(client, "never-joined")

	if hub.InRoom(client, "room-a") {
		t.Error("expected client to have left room-a")
	}
	if !hub.InRoom(client, "room-b") {
		t.Error("expected client to remain in room-b")
	}
}

func TestHub_UnregisterLeavesRoomsAndClosesChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("1", 8)
	hub.Register(client)
	hub.Join(client, "room-a")
	hub.Join(client, "room-b")

	hub.Unregister(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 || hub.RoomCount("room-a") != 0 || hub.RoomCount("room-b") != 0 {
		t.Fatal("expected client removed from hub and rooms")
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send channel to be closed after unregister")
	}
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sender, peer, outsider := newClient("1", 8), newClient("2", 8), newClient("3", 8)
	for _, c := range []*Client{sender, peer, outsider} {
		hub.Register(c)
	}
	hub.Join(sender, "room")
	hub.Join(peer, "room")

	n := hub.Broadcast("room", "userTyping", map[string]bool{"is_typing": true}, sender)
	if n != 1 {
		t.Fatalf("expected delivery to 1 client, got %d", n)
	}

	env := readEnvelope(t, peer)
	if env.Event != "userTyping" || string(env.Data) != `{"is_typing":true}` {
		t.Errorf("unexpected envelope %+v", env)
	}
	if len(sender.Send) != 0 || len(outsider.Send) != 0 {
		t.Error("expected no frames for sender or outsider")
	}
}

func TestHub_BroadcastToConsultationIncludesEveryone(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b := newClient("1", 8), newClient("2", 8)
	hub.Register(a)
	hub.Register(b)
	hub.Join(a, ConsultationRoom("c-1"))
	hub.Join(b, ConsultationRoom("c-1"))

	hub.BroadcastToConsultation("c-1", "receiveMessage", map[string]string{"content": "hi"})

	for _, c := range []*Client{a, b} {
		if env := readEnvelope(t, c); env.Event != "receiveMessage" {
			t.Errorf("client %s: expected receiveMessage, got %s", c.ID, env.Event)
		}
	}
}

func TestHub_BroadcastRawPassesThrough(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("1", 8)
	hub.Register(client)
	hub.Join(client, "room")

	raw := json.RawMessage(`{"consultation_id":"c-1","offer":{"sdp":"v=0","type":"offer"}}`)
	hub.Broadcast("room", "offer", raw, nil)

	env := readEnvelope(t, client)
	if string(env.Data) != string(raw) {
		t.Errorf("expected raw payload preserved, got %s", env.Data)
	}
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow, fast := newClient("slow", 1), newClient("fast", 8)
	hub.Register(slow)
	hub.Register(fast)
	hub.Join(slow, "room")
	hub.Join(fast, "room")

	hub.Broadcast("room", "first", nil, nil)
	n := hub.Broadcast("room", "second", nil, nil)

	if n != 1 {
		t.Fatalf("expected second event queued for 1 client, got %d", n)
	}
	if env := readEnvelope(t, slow); env.Event != "first" {
		t.Errorf("expected slow client to keep first event, got %s", env.Event)
	}
	if len(slow.Send) != 0 {
		t.Error("expected second event dropped for slow client")
	}
	if len(fast.Send) != 2 {
		t.Errorf("expected 2 events for fast client, got %d", len(fast.Send))
	}
}

func TestHub_BroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	if n := hub.Broadcast("nobody-here", "event", nil, nil); n != 0 {
		t.Errorf("expected 0 deliveries, got %d", n)
	}
}

func TestHub_SendTo(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("1", 8)

	if hub.SendTo(client, "error", nil) {
		t.Fatal("expected send to unregistered client to fail")
	}
	hub.Register(client)
	if !hub.SendTo(client, "error", ErrorEvent{Event: "sendMessage", Message: "boom"}) {
		t.Fatal("expected send to succeed")
	}
	env := readEnvelope(t, client)
	if env.Event != "error" {
		t.Errorf("expected error event, got %s", env.Event)
	}
}

func TestHub_ConcurrentJoinBroadcastUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	const n = 50

	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = newClient(fmt.Sprintf("c-%d", i), 4)
		hub.Register(clients[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(3)
		go func(c *Client) {
			defer wg.Done()
			hub.Join(c, "room")
		}(clients[i])
		go func() {
			defer wg.Done()
			hub.Broadcast("room", "tick", nil, nil)
		}()
		go func(c *Client) {
			defer wg.Done()
			hub.Unregister(c)
		}(clients[i])
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected all clients unregistered, got %d", hub.ClientCount())
	}
	if hub.RoomCount("room") != 0 {
		t.Fatalf("expected empty room, got %d", hub.RoomCount("room"))
	}
}
