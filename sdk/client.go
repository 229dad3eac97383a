package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// EventHandler is a function that handles incoming messages.
type EventHandler func(*Message)

// CommandError is returned when the gateway answers a command with an
// error response.
type CommandError struct {
	Code    string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client is a WebSocket client for the fluxbux gateway.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	logger    *log.Logger
	mu        sync.RWMutex
	handlers  map[MessageType][]EventHandler
	pending   map[string]chan *Message
	connected bool
	stopChan  chan struct{}
}

// NewClient creates a client for the gateway at serverURL.
func NewClient(serverURL string, logger *log.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		logger:    logger.WithPrefix("sdk"),
		handlers:  make(map[MessageType][]EventHandler),
		pending:   make(map[string]chan *Message),
		stopChan:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}

	c.logger.Debug("connecting", "url", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readMessages()

	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.connected = false
	close(c.stopChan)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}

	return nil
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendMessage sends a message without waiting for the response.
func (c *Client) SendMessage(msg *Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.conn == nil {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// AddEventHandler registers a handler for a message type. Handlers see
// every message of that type, including replies already consumed by Do.
func (c *Client) AddEventHandler(msgType MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[msgType] = append(c.handlers[msgType], handler)
}

// Do sends a command and waits for the gateway's reply. An error
// response is returned as a *CommandError.
func (c *Client) Do(ctx context.Context, msgType MessageType, data interface{}) (*Message, error) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		return nil, err
	}

	reply := make(chan *Message, 1)
	c.mu.Lock()
	c.pending[msg.RequestID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
	}()

	if err := c.SendMessage(msg); err != nil {
		return nil, err
	}

	select {
	case resp := <-reply:
		if resp.Type == MessageTypeError {
			var data ErrorData
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return nil, fmt.Errorf("malformed error response: %w", err)
			}
			return nil, &CommandError{Code: data.Code, Message: data.Message}
		}
		return resp, nil
	case <-c.stopChan:
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// call runs a command and decodes the rendered message from the ok
// response.
func (c *Client) call(ctx context.Context, msgType MessageType, data interface{}) (string, error) {
	resp, err := c.Do(ctx, msgType, data)
	if err != nil {
		return "", err
	}
	var ok OKData
	if err := json.Unmarshal(resp.Data, &ok); err != nil {
		return "", fmt.Errorf("malformed ok response: %w", err)
	}
	return ok.Message, nil
}

// Hello introduces the participant behind this connection. It must be
// the first command on a fresh connection.
func (c *Client) Hello(ctx context.Context, name string) (string, error) {
	return c.call(ctx, MessageTypeHello, HelloData{Name: name})
}

// Configure sets the betting options for a week. Operator only.
func (c *Client) Configure(ctx context.Context, period string, options []string, reset string) (string, error) {
	return c.call(ctx, MessageTypeConfigure, ConfigureData{Period: period, Options: options, Reset: reset})
}

// Grant adjusts a participant's balance. Operator only.
func (c *Client) Grant(ctx context.Context, user string, amount int) (string, error) {
	return c.call(ctx, MessageTypeGrant, GrantData{User: user, Amount: amount})
}

// Claim collects the weekly bonus. The claim stays valid for 24 hours
// from openedAt.
func (c *Client) Claim(ctx context.Context, period string, openedAt time.Time) (string, error) {
	return c.call(ctx, MessageTypeClaim, ClaimData{Period: period, OpenedAt: openedAt})
}

// Transfer moves fluxbux to another participant.
func (c *Client) Transfer(ctx context.Context, to string, amount int) (string, error) {
	return c.call(ctx, MessageTypeTransfer, TransferData{To: to, Amount: amount})
}

// Bet places or replaces a wager on target for the given week.
func (c *Client) Bet(ctx context.Context, period, target string, amount int) (string, error) {
	return c.call(ctx, MessageTypeBet, BetData{Period: period, Target: target, Amount: amount})
}

// RemoveBet withdraws a wager.
func (c *Client) RemoveBet(ctx context.Context, period, target string) (string, error) {
	return c.call(ctx, MessageTypeRemoveBet, RemoveBetData{Period: period, Target: target})
}

// Settle closes a week and pays out against the winning option.
// Operator only.
func (c *Client) Settle(ctx context.Context, period, winner string) (string, error) {
	return c.call(ctx, MessageTypeSettle, SettleData{Period: period, Winner: winner})
}

// Link records an external id alias for a participant. Operator only.
func (c *Client) Link(ctx context.Context, user, externalID string) (string, error) {
	return c.call(ctx, MessageTypeLink, LinkData{User: user, ExternalID: externalID})
}

// Status fetches the rendered state of a week.
func (c *Client) Status(ctx context.Context, period string) (string, error) {
	return c.call(ctx, MessageTypeStatus, StatusData{Period: period})
}

// Balance fetches the caller's rendered balance.
func (c *Client) Balance(ctx context.Context, period string) (string, error) {
	return c.call(ctx, MessageTypeBalance, BalanceData{Period: period})
}

// Results fetches the settlement summary of a closed week.
func (c *Client) Results(ctx context.Context, period string) (string, error) {
	return c.call(ctx, MessageTypeResults, ResultsData{Period: period})
}

// Commands lists the commands the gateway accepts.
func (c *Client) Commands(ctx context.Context) ([]CommandInfo, error) {
	resp, err := c.Do(ctx, MessageTypeCommands, nil)
	if err != nil {
		return nil, err
	}
	var data CommandsData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("malformed commands response: %w", err)
	}
	return data.Commands, nil
}

func (c *Client) readMessages() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.stopChan:
			return
		default:
			var msg Message
			err := c.conn.ReadJSON(&msg)
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
					c.logger.Error("websocket error", "error", err)
				}
				return
			}

			c.dispatchMessage(&msg)
		}
	}
}

func (c *Client) dispatchMessage(msg *Message) {
	c.mu.RLock()
	waiter := c.pending[msg.RequestID]
	handlers := c.handlers[msg.Type]
	c.mu.RUnlock()

	if waiter != nil {
		select {
		case waiter <- msg:
		default:
		}
	}

	for _, handler := range handlers {
		go handler(msg)
	}
}
