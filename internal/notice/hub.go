package notice

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Message is the frame pushed to consoles.
type Message struct {
	Type   string  `json:"type"`
	Notice *Notice `json:"notice"`
}

// Hub fans notices out to every connected console and forwards the input
// events consoles report back to the activity callback.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	conns    map[uuid.UUID]*websocket.Conn
	locks    map[uuid.UUID]*sync.Mutex
	last     []byte
	activity func(event string)
}

// NewHub constructs a hub. A nil logger uses slog.Default.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[uuid.UUID]*websocket.Conn),
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// OnActivity sets the callback for input events named in inbound text frames.
func (h *Hub) OnActivity(fn func(event string)) {
	h.mu.Lock()
	h.activity = fn
	h.mu.Unlock()
}

// Publish implements Publisher.
func (h *Hub) Publish(n *Notice) {
	data, err := json.Marshal(Message{Type: "notice", Notice: n})
	if err != nil {
		h.log.Error("notice marshal failed", "error", err)
		return
	}
	h.mu.Lock()
	h.last = data
	ids := make([]uuid.UUID, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.safeWrite(id, func(conn *websocket.Conn) error {
			return conn.WriteMessage(websocket.TextMessage, data)
		})
	}
}

// Connections returns the number of open consoles.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and sends the current banner right away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("notice ws upgrade failed", "error", err)
		return
	}
	id := uuid.New()

	h.mu.Lock()
	h.conns[id] = conn
	h.locks[id] = &sync.Mutex{}
	last := h.last
	h.mu.Unlock()

	h.log.Info("console connected", "conn_id", id)
	if last != nil {
		h.safeWrite(id, func(c *websocket.Conn) error {
			return c.WriteMessage(websocket.TextMessage, last)
		})
	}

	go h.pingLoop(id, conn)
	go h.readLoop(id, conn)
}

func (h *Hub) pingLoop(id uuid.UUID, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.RLock()
		alive := h.conns[id] == conn
		h.mu.RUnlock()
		if !alive {
			return
		}
		h.safeWrite(id, func(c *websocket.Conn) error {
			return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})
	}
}

func (h *Hub) readLoop(id uuid.UUID, conn *websocket.Conn) {
	defer h.closeConn(id, conn)

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage {
			continue
		}
		event := strings.TrimSpace(string(message))
		if strings.EqualFold(event, "ping") {
			h.safeWrite(id, func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
			continue
		}
		h.mu.RLock()
		fn := h.activity
		h.mu.RUnlock()
		if fn != nil {
			fn(event)
		}
	}
}

func (h *Hub) closeConn(id uuid.UUID, conn *websocket.Conn) {
	_ = conn.Close()
	h.mu.Lock()
	if current, ok := h.conns[id]; ok && current == conn {
		delete(h.conns, id)
		delete(h.locks, id)
	}
	h.mu.Unlock()
}

func (h *Hub) safeWrite(id uuid.UUID, fn func(*websocket.Conn) error) {
	h.mu.RLock()
	conn := h.conns[id]
	mu := h.locks[id]
	h.mu.RUnlock()
	if conn == nil || mu == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := fn(conn); err != nil {
		h.log.Warn("notice ws write failed", "conn_id", id, "error", err)
		h.closeConn(id, conn)
	}
}
