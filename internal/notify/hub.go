package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

// writeTimeout bounds a single client write.
const writeTimeout = 10 * time.Second

// clientQueueSize is the per-client send buffer. A client that falls
// this far behind is disconnected rather than allowed to apply
// backpressure to the hub.
const clientQueueSize = 64

// Hub is a WebSocket fan-out publisher. Events are rate-limited at the
// hub level and dropped (with a log line) when the limiter or the
// broadcast queue is saturated.
type Hub struct {
	logger  *zap.Logger
	limiter *rate.Limiter

	broadcast  chan Event
	register   chan *client
	unregister chan *client

	mu      sync.Mutex
	clients map[*client]bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns a running hub limited to eventsPerSecond (with the
// given burst).
func NewHub(eventsPerSecond float64, burst int, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Publish implements Publisher. Events beyond the rate limit or a full
// broadcast queue are dropped.
func (h *Hub) Publish(event Event) {
	if !h.limiter.Allow() {
		h.logger.Debug("broadcast rate limit exceeded, dropping event",
			zap.String("type", event.Type))
		return
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast queue full, dropping event",
			zap.String("type", event.Type))
	}
}

// Close implements Publisher: it stops the loop and disconnects every
// client.
func (h *Hub) Close() error {
	h.cancel()
	<-h.done

	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close(websocket.StatusNormalClosure, "hub shutting down")
	}
	h.clients = make(map[*client]bool)
	h.mu.Unlock()
	return nil
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("observer connected", zap.Int("total", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("observer disconnected", zap.Int("total", total))

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("event not serializable", zap.Error(err))
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow client: disconnect instead of blocking.
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket observer connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueueSize)}

	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "hub shutting down")
		return
	}

	go c.writePump(h)
	go c.readPump(h)
}

func (c *client) writePump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains client messages to detect disconnection; observers
// are write-only from the hub's point of view.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(h.ctx); err != nil {
			return
		}
	}
}
