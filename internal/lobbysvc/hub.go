// Package lobbysvc implements C8 (the lobby state machine: Join/Leave)
// and C9 (per-lobby event fan-out). The fan-out keeps the teacher's
// WebSocketHub shape — a process-wide registry, channel-based
// register/unregister/broadcast — but is rebuilt for one-way SSE per
// §6's event-stream format: sinks are per-subscriber buffered channels
// drained by an HTTP handler's Flusher loop, not duplex sockets.
package lobbysvc

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// EventType is one of §6's event-stream message kinds.
type EventType string

const (
	EventPlayerJoined  EventType = "player_joined"
	EventPlayerLeft    EventType = "player_left"
	EventLobbyStarting EventType = "lobby_starting"
	EventGameStarted   EventType = "game_started"
	EventLobbyClosed   EventType = "lobby_closed"
)

// Event is one message in a lobby's event stream.
type Event struct {
	Type      EventType `json:"type"`
	Player    *Player   `json:"player,omitempty"`
	PlayerID  string    `json:"playerId,omitempty"`
	Countdown int       `json:"countdown,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Player is the event payload for player_joined.
type Player struct {
	UserID   string `json:"userId"`
	JoinedAt int64  `json:"joinedAt"`
}

// MarshalSSE renders e as the "data: {...}\n\n" frame §6 specifies.
func (e Event) MarshalSSE() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(append([]byte("data: "), body...), '\n', '\n'), nil
}

// heartbeatFrame is the SSE comment frame §6 specifies; sent on a fixed
// cadence and never interpreted as a state change by clients.
var heartbeatFrame = []byte(": heartbeat\n\n")

// message is what travels down a subscriber's channel: either a real
// event or a heartbeat (Event == nil), kept distinct at the type level
// so a handler never needs to sniff the payload to tell them apart.
type message struct {
	event *Event
}

// subscriberBuffer bounds how many undelivered messages a slow reader is
// allowed to queue before being evicted (§5: "one slow consumer cannot
// block others").
const subscriberBuffer = 16

type subscriber struct {
	id string
	ch chan message
}

// Hub is C9: a process-wide, mutex-protected registry of per-lobby
// subscriber sets (§9's design note: "specify it as such; do not expose
// it as a singleton" — callers must construct and inject one).
type Hub struct {
	mu      sync.Mutex
	lobbies map[string]map[string]*subscriber
	seq     int64
}

func NewHub() *Hub {
	return &Hub{lobbies: make(map[string]map[string]*subscriber)}
}

// Subscribe registers a new sink for lobbyID and returns a channel of
// rendered SSE frames plus an unsubscribe function. The caller (the
// HTTP handler) is responsible for draining the channel until it
// closes or the request context is cancelled.
func (h *Hub) Subscribe(lobbyID string) (frames <-chan []byte, unsubscribe func()) {
	h.mu.Lock()
	h.seq++
	id := fmt.Sprintf("sub-%d", h.seq)
	sub := &subscriber{id: id, ch: make(chan message, subscriberBuffer)}
	if h.lobbies[lobbyID] == nil {
		h.lobbies[lobbyID] = make(map[string]*subscriber)
	}
	h.lobbies[lobbyID][id] = sub
	h.mu.Unlock()

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range sub.ch {
			if msg.event == nil {
				out <- heartbeatFrame
				continue
			}
			frame, err := msg.event.MarshalSSE()
			if err != nil {
				continue
			}
			out <- frame
		}
	}()

	return out, func() { h.evict(lobbyID, id) }
}

func (h *Hub) evict(lobbyID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.lobbies[lobbyID]
	if !ok {
		return
	}
	if sub, ok := subs[subscriberID]; ok {
		close(sub.ch)
		delete(subs, subscriberID)
	}
	if len(subs) == 0 {
		delete(h.lobbies, lobbyID)
	}
}

// Broadcast attempts a non-blocking send of event to every sink
// subscribed to lobbyID, in the order Broadcast calls are invoked
// (§4.5's fan-out semantics). A sink whose buffer is full (a slow
// reader) is evicted rather than allowed to stall the broadcast.
func (h *Hub) Broadcast(lobbyID string, event Event) {
	h.send(lobbyID, message{event: &event})
}

// Heartbeat sends the comment frame to every subscriber of lobbyID.
func (h *Hub) Heartbeat(lobbyID string) {
	h.send(lobbyID, message{event: nil})
}

func (h *Hub) send(lobbyID string, msg message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.lobbies[lobbyID]
	for id, sub := range subs {
		select {
		case sub.ch <- msg:
		default:
			close(sub.ch)
			delete(subs, id)
		}
	}
	if len(subs) == 0 {
		delete(h.lobbies, lobbyID)
	}
}

// ActiveLobbyIDs returns the ids of every lobby with at least one live
// subscriber, used by the heartbeat ticker to know which lobbies to hit.
func (h *Hub) ActiveLobbyIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.lobbies))
	for id := range h.lobbies {
		ids = append(ids, id)
	}
	return ids
}

// RunHeartbeat sends a heartbeat to every active lobby every interval
// until done is closed (§4.5: "every 30 seconds per lobby").
func (h *Hub) RunHeartbeat(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, lobbyID := range h.ActiveLobbyIDs() {
				h.Heartbeat(lobbyID)
			}
		}
	}
}
