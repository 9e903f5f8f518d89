package notify

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
)

// Hub pushes table-updated pokes to websocket subscribers. Each connection
// subscribes to a single table; a slow or dead connection is dropped rather
// than allowed to stall the rest.
type Hub struct {
	log      slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[*hubConn]struct{}
}

type hubConn struct {
	tableID string
	send    chan []byte
	ws      *websocket.Conn
}

// wsPoke is the frame pushed to subscribers.
type wsPoke struct {
	Type    string `json:"type"`
	TableID string `json:"tableId"`
}

// NewHub creates an empty hub.
func NewHub(log slog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]map[*hubConn]struct{}),
	}
}

// Subscribe upgrades the request and registers the connection for pokes
// about one table. It returns once the connection is set up; pumping runs
// in background goroutines.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, tableID string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &hubConn{tableID: tableID, send: make(chan []byte, 16), ws: ws}

	h.mu.Lock()
	if h.conns[tableID] == nil {
		h.conns[tableID] = make(map[*hubConn]struct{})
	}
	h.conns[tableID][c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

func (h *Hub) writePump(c *hubConn) {
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
			return
		}
	}
	c.ws.Close()
}

// readPump discards inbound frames; its job is noticing the close.
func (h *Hub) readPump(c *hubConn) {
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *hubConn) {
	h.mu.Lock()
	if set, ok := h.conns[c.tableID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.conns, c.tableID)
		}
	}
	h.mu.Unlock()
	c.ws.Close()
}

// TableUpdated pushes a poke to every subscriber of the table.
func (h *Hub) TableUpdated(tableID string) {
	raw, _ := json.Marshal(wsPoke{Type: "TABLE_UPDATED", TableID: tableID})

	h.mu.RLock()
	var stalled []*hubConn
	for c := range h.conns[tableID] {
		select {
		case c.send <- raw:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.log.Debugf("Dropping stalled websocket subscriber of table %s", tableID)
		h.drop(c)
	}
}
