package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/JuniperReader/core/display"
	"github.com/FocuswithJustin/JuniperReader/core/search"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

// searchRequest is sent by the client whenever the query box changes.
type searchRequest struct {
	Query string `json:"query"`
}

// searchMessage is pushed to the client for the newest generation only.
type searchMessage struct {
	Type       string         `json:"type"`
	Generation uint64         `json:"generation"`
	Query      string         `json:"query"`
	Summary    string         `json:"summary,omitempty"`
	HasSummary bool           `json:"has_summary"`
	Count      int            `json:"count"`
	Items      []display.Item `json:"items"`
	Error      string         `json:"error,omitempty"`
}

// hub tracks open search sockets so shutdown can close them.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logging.WebSocketEvent("client_connected", n)
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	logging.WebSocketEvent("client_disconnected", n)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

// client is one search socket. Each client owns a search.Session, so
// typing in one browser tab never cancels another tab's search.
type client struct {
	conn *websocket.Conn
	sess *search.Session

	mu      sync.Mutex
	pending *searchMessage
	wake    chan struct{}
	done    chan struct{}
}

// publish keeps only the newest message; the write pump drains it.
// It runs under the session lock and must not block.
func (c *client) publish(gen uint64, res search.Result, err error) {
	msg := &searchMessage{
		Type:       "result",
		Generation: gen,
		Query:      res.Query,
		Summary:    res.Summary,
		HasSummary: res.HasSummary,
		Count:      res.Count,
		Items:      res.Items,
	}
	if err != nil {
		msg.Type = "error"
		msg.Error = err.Error()
	}
	if msg.Items == nil {
		msg.Items = []display.Item{}
	}

	c.mu.Lock()
	c.pending = msg
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (s *Server) handleSearchSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.allowedOrigins, r)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	c.sess = s.svc.NewSession(search.WithPublish(c.publish))
	s.hub.add(c)

	go c.writePump()
	c.readPump()
	s.hub.remove(c)
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.sess.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("websocket unexpected close", "error", err)
			}
			return
		}
		var req searchRequest
		if err := json.Unmarshal(data, &req); err != nil {
			logging.Debug("ignoring malformed search request", "error", err)
			continue
		}
		c.sess.Submit(req.Query)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.wake:
			c.mu.Lock()
			msg := c.pending
			c.pending = nil
			c.mu.Unlock()
			if msg == nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
