// Package sdk provides a WebSocket client for the fluxbux gateway. It
// carries its own copy of the wire protocol so importers do not depend
// on the server internals.
package sdk

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the command or response carried by a message.
type MessageType string

// Client to server commands.
const (
	MessageTypeHello     MessageType = "hello"
	MessageTypeConfigure MessageType = "configure"
	MessageTypeGrant     MessageType = "grant"
	MessageTypeClaim     MessageType = "claim"
	MessageTypeTransfer  MessageType = "transfer"
	MessageTypeBet       MessageType = "bet"
	MessageTypeRemoveBet MessageType = "remove_bet"
	MessageTypeSettle    MessageType = "settle"
	MessageTypeLink      MessageType = "link"
	MessageTypeStatus    MessageType = "status"
	MessageTypeBalance   MessageType = "balance"
	MessageTypeResults   MessageType = "results"
	MessageTypeCommands  MessageType = "commands"
)

// Server to client responses.
const (
	MessageTypeOK    MessageType = "ok"
	MessageTypeError MessageType = "error"
)

// Message is the wire envelope. The gateway echoes RequestID on its
// response, which lets the client pair replies with commands.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a message with the current timestamp and a fresh
// request id.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var dataBytes json.RawMessage
	if data != nil {
		var err error
		dataBytes, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Message{
		Type:      msgType,
		Data:      dataBytes,
		Timestamp: time.Now().UTC(),
		RequestID: uuid.NewString(),
	}, nil
}

// Client to server payloads.

// HelloData introduces the participant behind a connection.
type HelloData struct {
	Name string `json:"name"`
}

type ConfigureData struct {
	Period  string   `json:"period,omitempty"`
	Options []string `json:"options"`
	Reset   string   `json:"reset,omitempty"`
}

type GrantData struct {
	User   string `json:"user"`
	Amount int    `json:"amount"`
}

type ClaimData struct {
	Period   string    `json:"period,omitempty"`
	OpenedAt time.Time `json:"openedAt"`
}

type TransferData struct {
	To     string `json:"to"`
	Amount int    `json:"amount"`
}

type BetData struct {
	Period string `json:"period,omitempty"`
	Target string `json:"target"`
	Amount int    `json:"amount"`
}

type RemoveBetData struct {
	Period string `json:"period,omitempty"`
	Target string `json:"target"`
}

type SettleData struct {
	Period string `json:"period,omitempty"`
	Winner string `json:"winner"`
}

type LinkData struct {
	User       string `json:"user"`
	ExternalID string `json:"externalId"`
}

type StatusData struct {
	Period string `json:"period,omitempty"`
}

type BalanceData struct {
	Period string `json:"period,omitempty"`
}

type ResultsData struct {
	Period string `json:"period,omitempty"`
}

// Server to client payloads.

// OKData carries the rendered answer to a successful command.
type OKData struct {
	Message string `json:"message"`
}

// ErrorData carries a stable error code plus a human-readable message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CommandInfo describes one available command.
type CommandInfo struct {
	Name     string `json:"name"`
	Help     string `json:"help"`
	Operator bool   `json:"operator,omitempty"`
}

// CommandsData lists the available commands.
type CommandsData struct {
	Commands []CommandInfo `json:"commands"`
}
