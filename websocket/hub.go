package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Hub is the room registry: it maps room keys to the connections currently
// subscribed to them. Membership changes and broadcasts for a room are
// serialized under one lock, so a connection is never delivered to while it
// is being removed. Presence falls out of the registry itself: a user is
// online in a room exactly while one of their connections is joined, and the
// entry disappears with the connection no matter how it closed.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]*Client
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[uuid.UUID]*Client),
	}
}

// RoomKeyConversation is the broadcast scope for a direct conversation.
func RoomKeyConversation(conversationID uint) string {
	return fmt.Sprintf("chat_%d", conversationID)
}

// RoomKeyCommunity is the broadcast scope for a community.
func RoomKeyCommunity(communityID uint) string {
	return fmt.Sprintf("community_%d", communityID)
}

func (h *Hub) Join(roomKey string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomKey]; !ok {
		h.rooms[roomKey] = make(map[uuid.UUID]*Client)
	}
	h.rooms[roomKey][client.ID] = client

	log.Printf("Client %s (user %d) joined room %s", client.ID, client.UserID, roomKey)
}

// Leave is idempotent and safe for connections that never joined.
func (h *Hub) Leave(roomKey string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomKey]
	if !ok {
		return
	}
	if _, ok := room[client.ID]; !ok {
		return
	}

	delete(room, client.ID)
	if len(room) == 0 {
		delete(h.rooms, roomKey)
	}

	log.Printf("Client %s (user %d) left room %s", client.ID, client.UserID, roomKey)
}

// Broadcast serializes event once and delivers it to every connection in the
// room, the sender included. Delivery is non-blocking per subscriber.
func (h *Hub) Broadcast(roomKey string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal broadcast for room %s: %v", roomKey, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.rooms[roomKey] {
		client.enqueue(data)
	}
}

// OnlineUsers returns the distinct user ids currently connected to a room.
func (h *Hub) OnlineUsers(roomKey string) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uint]bool)
	users := make([]uint, 0)
	for _, client := range h.rooms[roomKey] {
		if !seen[client.UserID] {
			seen[client.UserID] = true
			users = append(users, client.UserID)
		}
	}
	return users
}

// RoomSize returns the number of connections joined to a room.
func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}
