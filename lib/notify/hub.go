package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/atomic"

	"github.com/byzantinelab/gateway/lib/log"
	"github.com/byzantinelab/gateway/lib/msg"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10

	// per-client outgoing queue depth
	sendBufSize = 64
	// events waiting to be forwarded to the broker
	sinkBufSize = 256
)

// Event types.
const (
	TypeBlock      = "block"
	TypeLabCreated = "lab.created"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// origins are checked by the reverse proxy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the JSON message broadcast to clients and forwarded to the broker.
type Event struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Time    time.Time   `json:"time"`
	Data    interface{} `json:"data,omitempty"`
}

// Key returns the routing key of the event: <type>.<channel>.
func (e Event) Key() string {
	if e.Channel == "" {
		return e.Type
	}

	return e.Type + "." + e.Channel
}

type sinkMsg struct {
	key  string
	body []byte
}

// Hub manages the websocket clients and broadcasts the published events to all of them.
type Hub struct {
	sink  msg.MsgBroker
	queue chan sinkMsg
	done  chan struct{}

	closed    atomic.Bool
	published atomic.Int64
	dropped   atomic.Int64

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New returns a running hub. When sink is not nil every event published is also sent to the broker.
func New(sink msg.MsgBroker) *Hub {
	h := &Hub{
		sink:    sink,
		done:    make(chan struct{}),
		clients: make(map[*client]struct{}),
	}

	if sink != nil {
		h.queue = make(chan sinkMsg, sinkBufSize)

		go h.forward()
	} else {
		close(h.done)
	}

	return h
}

// ServeHTTP upgrades the connection to websocket and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "notification bus closed", http.StatusServiceUnavailable)

		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already replied
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufSize)}

	if !h.register(c) {
		conn.Close()

		return
	}
	defer h.unregister(c)

	log.Logger.Infof("Websocket client connected from %s", r.RemoteAddr)

	go c.writePump()
	c.readPump()

	log.Logger.Debugf("Websocket client %s disconnected", r.RemoteAddr)
}

// Publish broadcasts ev to every connected client. It never blocks: clients with a full queue miss the event. Publish
// after Close does nothing.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Logger.Errorf("Cannot marshal %s event: %v", ev.Type, err)

		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed.Load() {
		return
	}

	h.published.Inc()

	for c := range h.clients {
		select {
		case c.send <- body:
		default:
			h.dropped.Inc()
		}
	}

	if h.queue != nil {
		select {
		case h.queue <- sinkMsg{key: ev.Key(), body: body}:
		default:
			log.Logger.Warnf("Broker queue full, event %s not forwarded", ev.Key())
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Published returns the number of events published.
func (h *Hub) Published() int64 { return h.published.Load() }

// Dropped returns the number of client deliveries dropped because of full queues.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Close disconnects every client and waits for the pending broker deliveries. The broker itself is not closed.
func (h *Hub) Close() {
	h.mu.Lock()

	if h.closed.Swap(true) {
		h.mu.Unlock()

		return
	}

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}

	if h.queue != nil {
		close(h.queue)
	}

	h.mu.Unlock()

	<-h.done
}

func (h *Hub) forward() {
	defer close(h.done)

	for m := range h.queue {
		if err := h.sink.SendEvent(m.key, m.body); err != nil {
			log.Logger.Errorf("Cannot forward event %s to broker: %v", m.key, err)
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed.Load() {
		return false
	}

	h.clients[c] = struct{}{}

	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// writePump forwards the queued events to the connection and pings the client periodically.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, m); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and handles pongs until the connection is closed.
func (c *client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
