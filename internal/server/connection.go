package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when sending on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// Connection wraps one WebSocket client. The first message must be a hello
// naming the participant; every later command is handled on their behalf.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	name      string
	handler   *Handler
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewConnection creates a connection wrapper.
func NewConnection(conn *websocket.Conn, handler *Handler, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 64),
		handler: handler,
		logger:  logger.WithPrefix("conn"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins the read and write pumps.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection shuts down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Name returns the participant behind the connection, empty before hello.
func (c *Connection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Connection) setName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// SendMessage queues a message for the client.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Send raced with Close; the channel is gone.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Debug("invalid message", "error", err)
			_ = c.SendMessage(&Message{Type: MessageTypeError})
			continue
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) handleMessage(msg *Message) {
	if msg.Type == MessageTypeHello {
		var data HelloData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Name == "" {
			resp, _ := NewMessage(MessageTypeError, ErrorData{
				Code: "invalid_hello", Message: "hello must carry a participant name",
			})
			_ = c.SendMessage(resp)
			return
		}
		c.setName(data.Name)
		resp, _ := NewMessage(MessageTypeOK, OKData{Message: "hello " + data.Name})
		resp.RequestID = requestID(msg)
		_ = c.SendMessage(resp)
		return
	}

	from := c.Name()
	if from == "" {
		resp, _ := NewMessage(MessageTypeError, ErrorData{
			Code: "unauthenticated", Message: "send hello first",
		})
		resp.RequestID = requestID(msg)
		_ = c.SendMessage(resp)
		return
	}
	_ = c.SendMessage(c.handler.Handle(from, msg))
}

func (c *Connection) writePump() {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("write error", "error", err)
				_ = c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
