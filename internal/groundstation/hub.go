package groundstation

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHistory is how many entries a new browser receives on connect.
const DefaultHistory = 200

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // ground station runs on a local network
	},
}

// Hub streams entries to connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	history []Entry
	limit   int
}

type client struct {
	conn *websocket.Conn
	send chan Entry
}

// NewHub keeps the last limit entries for late joiners.
func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Hub{clients: make(map[*client]struct{}), limit: limit}
}

// Broadcast queues e for every client. Slow clients are disconnected.
func (h *Hub) Broadcast(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, e)
	if len(h.history) > h.limit {
		h.history = h.history[len(h.history)-h.limit:]
	}
	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			log.Printf("hub: client %s too slow, dropping", c.conn.RemoteAddr())
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// History returns the retained entries, oldest first.
func (h *Hub) History() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Entry(nil), h.history...)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades to a websocket, sends the history, then every new
// entry as one JSON message.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("hub: websocket upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan Entry, h.limit+16)}
	h.mu.Lock()
	for _, e := range h.history {
		c.send <- e
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Printf("hub: client %s connected", conn.RemoteAddr())

	go h.readLoop(c)
	h.writeLoop(c)
}

// readLoop discards client messages and notices the close.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("hub: websocket error: %v", err)
			}
			h.remove(c)
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for e := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(e); err != nil {
			log.Printf("hub: write to %s: %v", c.conn.RemoteAddr(), err)
			h.remove(c)
			// Drain until remove closes the channel.
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Handler serves the live feed on /ws, recent entries as JSON on
// /api/records and, when staticDir is set, the map page on /.
func Handler(h *Hub, store *Store, staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		var (
			entries []Entry
			err     error
		)
		if store != nil {
			entries, err = store.Recent(h.limit)
		} else {
			entries = h.History()
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []Entry{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			log.Printf("hub: json encode error: %v", err)
		}
	})
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}
