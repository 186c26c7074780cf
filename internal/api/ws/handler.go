// Package ws serves player notifications to websocket clients.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flowbeat/internal/app/notification"
	"github.com/osa030/flowbeat/internal/app/player"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var (
	errClosed = errors.New("websocket client closed")
	errSlow   = errors.New("websocket client too slow")
)

// StatusSource provides the state sent on connect.
type StatusSource interface {
	Status(ctx context.Context) (player.Snapshot, error)
	Done() <-chan struct{}
}

// Notifier is the subscription side of the notification manager.
type Notifier interface {
	Subscribe(stream notification.Stream, initial ...*notification.Notification) string
	Unsubscribe(subscriptionID string)
	Done(subscriptionID string) <-chan struct{}
}

// Handler upgrades requests to websocket connections that receive every
// notification as a JSON text message, starting with the current status.
// Incoming messages are ignored.
type Handler struct {
	player   StatusSource
	notifier Notifier
	upgrader websocket.Upgrader
}

// NewHandler creates a new Handler. Connections are accepted from any origin.
func NewHandler(p StatusSource, n Notifier) *Handler {
	return &Handler{
		player:   p,
		notifier: n,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap, err := h.player.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Msgf("websocket upgrade failed: remote=%s err=%v", r.RemoteAddr, err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan *notification.Notification, sendBuffer),
		done: make(chan struct{}),
	}
	id := h.notifier.Subscribe(c, notification.New(notification.KindStatus, snap))
	zlog.Info().Msgf("websocket client connected: id=%s remote=%s", id, r.RemoteAddr)

	go c.writePump()
	go func() {
		select {
		case <-h.notifier.Done(id):
		case <-h.player.Done():
		case <-c.done:
		}
		c.close()
	}()

	c.readPump()

	h.notifier.Unsubscribe(id)
	zlog.Info().Msgf("websocket client disconnected: id=%s", id)
}

// client is one websocket connection.
type client struct {
	conn *websocket.Conn
	send chan *notification.Notification
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Send queues n for the write pump. It fails when the connection is gone or
// the pump cannot keep up.
func (c *client) Send(n *notification.Notification) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}

	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case c.send <- n:
		return nil
	case <-c.done:
		return errClosed
	case <-timer.C:
		c.close()
		return errSlow
	}
}

// readPump handles control frames until the connection fails.
func (c *client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				zlog.Warn().Msgf("websocket read error: %v", err)
			}
			return
		}
	}
}

// writePump writes queued notifications and keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case n := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(n); err != nil {
				zlog.Debug().Msgf("websocket write error: %v", err)
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
