package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 512
	clientBufferSize = 64
)

// wsHub fans the bus events out to the connected websocket clients
type wsHub struct {
	mut     sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type wsClient struct {
	hub  *wsHub
	conn *websocket.Conn
	send chan []byte
}

func newWSHub() *wsHub {
	return &wsHub{
		clients: make(map[*wsClient]struct{}),
	}
}

// Handle broadcasts the event to every client. Clients with a full buffer are disconnected.
func (h *wsHub) Handle(event common.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Warn("failed to marshal event for the websocket clients", "kind", event.Kind, "error", err)
		return
	}

	h.mut.Lock()
	defer h.mut.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Debug("websocket client too slow, disconnecting", "remote", c.conn.RemoteAddr())
			h.removeLocked(c)
		}
	}
}

// serve registers the connection and starts its pumps. The initial messages are sent before any
// broadcast event.
func (h *wsHub) serve(conn *websocket.Conn, initial ...[]byte) {
	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBufferSize+len(initial)),
	}
	for _, msg := range initial {
		c.send <- msg
	}

	h.mut.Lock()
	if h.closed {
		h.mut.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mut.Unlock()

	log.Debug("websocket client registered", "remote", conn.RemoteAddr())

	go c.writePump()
	go c.readPump()
}

func (h *wsHub) unregister(c *wsClient) {
	h.mut.Lock()
	h.removeLocked(c)
	h.mut.Unlock()
}

func (h *wsHub) removeLocked(c *wsClient) {
	_, found := h.clients[c]
	if !found {
		return
	}

	delete(h.clients, c)
	close(c.send)
}

func (h *wsHub) numClients() int {
	h.mut.Lock()
	defer h.mut.Unlock()

	return len(h.clients)
}

// Close disconnects all clients and waits for their pumps to finish
func (h *wsHub) Close() {
	h.mut.Lock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mut.Unlock()

	h.wg.Wait()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (h *wsHub) IsInterfaceNil() bool {
	return h == nil
}

// readPump only consumes control frames, the stream is one way
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
		c.hub.wg.Done()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug("websocket read error", "remote", c.conn.RemoteAddr(), "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.hub.wg.Done()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			err := c.conn.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				log.Debug("websocket write error", "remote", c.conn.RemoteAddr(), "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}
