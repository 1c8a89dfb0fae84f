package http

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cimillas/grabticket/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	defaultSendBuffer = 64
)

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("send buffer full")
)

// wsConn is one viewer socket. All writes go through a single writer
// goroutine fed by a bounded buffer, so senders never block on the network.
type wsConn struct {
	conn   *websocket.Conn
	logger *zap.Logger
	send   chan []byte

	closeOnce   sync.Once
	closeCode   int
	closeReason string
	done        chan struct{}
	finished    chan struct{}
}

func newWSConn(conn *websocket.Conn, buffer int, logger *zap.Logger) *wsConn {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &wsConn{
		conn:     conn,
		logger:   logger,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (c *wsConn) SendSnapshot(snapshot domain.SeatSnapshot) error {
	payload, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *wsConn) DeliverGrabResult(result domain.GrabResult) error {
	payload, err := encodeGrabResult(result)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *wsConn) sendError(reason string) error {
	payload, err := encodeError(reason)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *wsConn) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.closeWith(websocket.CloseTryAgainLater, "slow consumer")
		return errSlowConsumer
	}
}

// closeWith asks the writer to send a close frame and drop the socket.
// Only the first call decides the close code.
func (c *wsConn) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.finished)
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				c.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("websocket ping failed", zap.Error(err))
				c.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			c.flush()
			if c.closeCode != websocket.CloseAbnormalClosure {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeReason))
			}
			return
		}
	}
}

// flush writes whatever is still buffered before the close frame.
func (c *wsConn) flush() {
	for {
		select {
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) write(messageType int, payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

func (c *wsConn) prepareRead() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}
