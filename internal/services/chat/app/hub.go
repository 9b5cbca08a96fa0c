package server

import (
	"encoding/json"
	"log"
	"sync"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// Hub tracks which peers sit in which rooms and fans events out to them.
// Room names are user IDs (every connection sits in its user's personal
// room), server IDs, and channel IDs. JoinRoom and LeaveRoom move every peer
// currently in the source room, which is how a server-wide subscription
// change reaches all of a user's devices at once.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*wsPeer]struct{}
	peers map[*wsPeer]map[string]struct{}
}

// NewHub creates an empty room hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*wsPeer]struct{}),
		peers: make(map[*wsPeer]map[string]struct{}),
	}
}

func (h *Hub) register(peer *wsPeer, rooms ...string) {
	if peer == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range rooms {
		h.addLocked(peer, room)
	}
}

func (h *Hub) unregister(peer *wsPeer) {
	if peer == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.peers[peer] {
		h.removeLocked(peer, room)
	}
	delete(h.peers, peer)
}

// JoinRoom subscribes every peer currently in sourceRoom to room.
func (h *Hub) JoinRoom(sourceRoom string, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for peer := range h.rooms[sourceRoom] {
		h.addLocked(peer, room)
	}
}

// LeaveRoom removes every peer currently in sourceRoom from room.
func (h *Hub) LeaveRoom(sourceRoom string, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for peer := range h.rooms[sourceRoom] {
		h.removeLocked(peer, room)
	}
}

// Emit pushes one event frame to every peer in room. Write failures are
// dropped; a dead peer is reaped when its read loop exits.
func (h *Hub) Emit(room string, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("chat: marshal %s payload: %v", event, err)
		return
	}
	frame := wsFrame{Type: event, Payload: body}

	h.mu.Lock()
	peers := make([]*wsPeer, 0, len(h.rooms[room]))
	for peer := range h.rooms[room] {
		peers = append(peers, peer)
	}
	h.mu.Unlock()

	for _, peer := range peers {
		_ = peer.writeFrame(frame)
	}
}

// RoomSize reports how many peers currently sit in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

func (h *Hub) addLocked(peer *wsPeer, room string) {
	if room == "" {
		return
	}
	subscribers, ok := h.rooms[room]
	if !ok {
		subscribers = make(map[*wsPeer]struct{})
		h.rooms[room] = subscribers
	}
	subscribers[peer] = struct{}{}

	joined, ok := h.peers[peer]
	if !ok {
		joined = make(map[string]struct{})
		h.peers[peer] = joined
	}
	joined[room] = struct{}{}
}

func (h *Hub) removeLocked(peer *wsPeer, room string) {
	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, peer)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.peers[peer]; ok {
		delete(joined, room)
	}
}
