// Package relay forwards room frames between WebSocket members. It keeps
// no history: a frame reaches whoever is connected when it arrives.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"LiveCanvas/internal/state"
)

// ConnectionConfig holds configuration for member connections.
type ConnectionConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	CheckOrigin    func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1 << 20,
		SendBuffer:     256,
		CheckOrigin: func(r *http.Request) bool {
			// origins are filtered by the CORS layer
			return true
		},
	}
}

// Hub tracks the members of every room.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*member]struct{}
	upgrader websocket.Upgrader
	config   ConnectionConfig
	presence Presence
}

type member struct {
	id          string
	peer        string
	room        string
	conn        *websocket.Conn
	send        chan []byte
	hub         *Hub
	connectedAt time.Time
	once        sync.Once
}

// NewHub creates a hub. presence may be nil.
func NewHub(config ConnectionConfig, presence Presence) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultConnectionConfig().SendBuffer
	}
	return &Hub{
		rooms: make(map[string]map[*member]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		config:   config,
		presence: presence,
	}
}

// Serve upgrades the request and runs the member's pumps until it leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, room, peer string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}
	m := &member{
		id:          uuid.NewString(),
		peer:        peer,
		room:        room,
		conn:        conn,
		send:        make(chan []byte, h.config.SendBuffer),
		hub:         h,
		connectedAt: time.Now(),
	}
	h.register(m)
	go m.writePump()
	go m.readPump()
	return nil
}

func (h *Hub) register(m *member) {
	h.mu.Lock()
	if h.rooms[m.room] == nil {
		h.rooms[m.room] = make(map[*member]struct{})
	}
	h.rooms[m.room][m] = struct{}{}
	count := len(h.rooms[m.room])
	h.mu.Unlock()

	if h.presence != nil {
		if err := h.presence.Join(context.Background(), m.room, m.peer); err != nil {
			log.Warn().Err(err).Str("room", m.room).Msg("presence join failed")
		}
	}
	log.Info().
		Str("connection_id", m.id).
		Str("peer", m.peer).
		Str("room", m.room).
		Int("members", count).
		Msg("member joined")
}

func (h *Hub) unregister(m *member) {
	m.once.Do(func() {
		var slow []*member
		h.mu.Lock()
		members := h.rooms[m.room]
		delete(members, m)
		last := !h.hasPeer(m.room, m.peer)
		if last {
			// tell the others even when the member vanished without a goodbye
			if bye, err := state.Encode(m.peer, state.Bye{Peer: m.peer}); err == nil {
				slow = h.fanout(m.room, nil, bye)
			}
		}
		if len(members) == 0 {
			delete(h.rooms, m.room)
		}
		h.mu.Unlock()
		close(m.send)
		h.evict(m.room, slow)

		if h.presence != nil && last {
			if err := h.presence.Leave(context.Background(), m.room, m.peer); err != nil {
				log.Warn().Err(err).Str("room", m.room).Msg("presence leave failed")
			}
		}
		log.Info().
			Str("connection_id", m.id).
			Str("peer", m.peer).
			Str("room", m.room).
			Bool("last_connection", last).
			Dur("connected", time.Since(m.connectedAt)).
			Msg("member left")
	})
}

// hasPeer reports whether peer still has a connection in room. h.mu must
// be held.
func (h *Hub) hasPeer(room, peer string) bool {
	for other := range h.rooms[room] {
		if other.peer == peer {
			return true
		}
	}
	return false
}

// broadcast queues data for every member of room except from. A member
// whose buffer is full is disconnected.
func (h *Hub) broadcast(room string, from *member, data []byte) {
	h.mu.RLock()
	slow := h.fanout(room, from, data)
	h.mu.RUnlock()
	h.evict(room, slow)
}

// fanout queues data and returns the members that could not take it. h.mu
// must be held.
func (h *Hub) fanout(room string, from *member, data []byte) []*member {
	var slow []*member
	for m := range h.rooms[room] {
		if m == from {
			continue
		}
		select {
		case m.send <- data:
		default:
			slow = append(slow, m)
		}
	}
	return slow
}

func (h *Hub) evict(room string, slow []*member) {
	for _, m := range slow {
		log.Warn().Str("connection_id", m.id).Str("room", room).Msg("send buffer full, closing connection")
		m.conn.Close()
	}
}

// Members returns how many connections this relay holds for room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Peers counts the room's peers across relays when presence is shared,
// falling back to local members.
func (h *Hub) Peers(ctx context.Context, room string) int {
	if h.presence != nil {
		n, err := h.presence.Count(ctx, room)
		if err == nil {
			return n
		}
		log.Warn().Err(err).Str("room", room).Msg("presence count failed")
	}
	return h.Members(room)
}

// Stats returns statistics about active connections.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	counts := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		total += len(members)
		counts[room] = len(members)
	}
	return map[string]any{
		"total_connections": total,
		"active_rooms":      len(h.rooms),
		"room_connections":  counts,
	}
}

// Close disconnects every member.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*member
	for _, members := range h.rooms {
		for m := range members {
			all = append(all, m)
		}
	}
	h.mu.RUnlock()
	for _, m := range all {
		m.conn.Close()
	}
}

func (m *member) writePump() {
	ticker := time.NewTicker(m.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		m.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-m.send:
			m.conn.SetWriteDeadline(time.Now().Add(m.hub.config.WriteTimeout))
			if !ok {
				m.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := m.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("connection_id", m.id).Msg("failed to write frame")
				return
			}
		case <-ticker.C:
			m.conn.SetWriteDeadline(time.Now().Add(m.hub.config.WriteTimeout))
			if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", m.id).Msg("failed to send ping")
				return
			}
		}
	}
}

func (m *member) readPump() {
	defer func() {
		m.hub.unregister(m)
		m.conn.Close()
	}()

	m.conn.SetReadLimit(m.hub.config.MaxMessageSize)
	m.conn.SetReadDeadline(time.Now().Add(m.hub.config.ReadTimeout))
	m.conn.SetPongHandler(func(string) error {
		m.conn.SetReadDeadline(time.Now().Add(m.hub.config.ReadTimeout))
		return nil
	})

	for {
		kind, frame, err := m.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", m.id).Msg("unexpected WebSocket close error")
			}
			return
		}
		m.conn.SetReadDeadline(time.Now().Add(m.hub.config.ReadTimeout))
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		m.hub.broadcast(m.room, m, frame)
	}
}
