package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub manages WebSocket connections and broadcasts messages to quiz session
// participants. Rooms are keyed by quiz id.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection // participant_id -> connection
	rooms       map[string][]uuid.UUID    // quiz_id -> []participant_id
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		rooms:       make(map[string][]uuid.UUID),
		logger:      logger,
	}
}

// RegisterConnection adds a connection for a participant.
func (h *Hub) RegisterConnection(participantID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if old, exists := h.connections[participantID]; exists {
		old.Close()
	}

	h.connections[participantID] = conn
	h.logger.Info().Str("participant_id", participantID.String()).Msg("connection registered")
}

// UnregisterConnection removes a connection and drops the participant from
// every room.
func (h *Hub) UnregisterConnection(participantID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[participantID]; exists {
		conn.Close()
		delete(h.connections, participantID)
		h.logger.Info().Str("participant_id", participantID.String()).Msg("connection unregistered")
	}

	for quizID, members := range h.rooms {
		for i, id := range members {
			if id == participantID {
				h.rooms[quizID] = append(members[:i], members[i+1:]...)
				break
			}
		}
		if len(h.rooms[quizID]) == 0 {
			delete(h.rooms, quizID)
		}
	}
}

// JoinRoom associates a participant with a quiz room for targeted broadcasts.
func (h *Hub) JoinRoom(quizID string, participantID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[quizID]
	for _, id := range members {
		if id == participantID {
			return // already joined
		}
	}
	h.rooms[quizID] = append(members, participantID)
}

// LeaveRoom removes a participant from a quiz room.
func (h *Hub) LeaveRoom(quizID string, participantID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[quizID]
	for i, id := range members {
		if id == participantID {
			h.rooms[quizID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(h.rooms[quizID]) == 0 {
		delete(h.rooms, quizID)
	}
}

// BroadcastToRoom sends a message to every participant in a quiz room.
func (h *Hub) BroadcastToRoom(quizID string, msg Message) error {
	h.mu.RLock()
	members := make([]uuid.UUID, len(h.rooms[quizID]))
	copy(members, h.rooms[quizID])
	h.mu.RUnlock()

	var firstErr error
	for _, participantID := range members {
		if err := h.SendToParticipant(participantID, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendToParticipant delivers a message to a specific participant.
func (h *Hub) SendToParticipant(participantID uuid.UUID, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[participantID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}

	return conn.Send(msg)
}

// GetConnection retrieves a connection for a participant.
func (h *Hub) GetConnection(participantID uuid.UUID) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, exists := h.connections[participantID]
	return conn, exists
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	conn        *websocket.Conn
	sendCh      chan Message
	readTimeout time.Duration
	mu          sync.Mutex
	closed      bool
	logger      zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, queueSize int, logger zerolog.Logger) *Connection {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Connection{
		conn:        conn,
		sendCh:      make(chan Message, queueSize),
		readTimeout: 60 * time.Second,
		logger:      logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close marks the connection closed and stops the send queue. The write pump
// drains whatever was already queued, sends a close frame and closes the
// socket, which also unblocks the read pump.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
}

// WritePump sends messages from the send queue and owns the socket teardown.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for msg := range c.sendCh {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump receives messages and calls the handler. Messages from a single
// connection are handled in arrival order. Liveness arrives as JSON traffic
// (heartbeats are ordinary messages, not pings), so every successful read
// extends the idle deadline, as does a pong.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Participant connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
