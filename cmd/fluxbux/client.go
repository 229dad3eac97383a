package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/fluxbux/cmd/fluxbux/shared"
	"github.com/lox/fluxbux/sdk"
)

// ClientCmd sends a single command to a running gateway and prints the
// reply. Useful for poking at a live game.
type ClientCmd struct {
	URL     string        `kong:"default='ws://localhost:8080/ws',help='Gateway WebSocket URL'"`
	Name    string        `kong:"required,help='Participant name to connect as'"`
	Command string        `kong:"arg,help='Command to send, e.g. status, bet, settle'"`
	Data    string        `kong:"help='JSON payload for the command'"`
	Timeout time.Duration `kong:"default='10s',help='How long to wait for the reply'"`
	Debug   bool          `kong:"help='Enable debug logging'"`
}

func (c *ClientCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	client := sdk.NewClient(c.URL, logger)
	if err := client.Connect(); err != nil {
		return err
	}
	defer func() { _ = client.Disconnect() }()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	if _, err := client.Hello(ctx, c.Name); err != nil {
		return err
	}

	var payload interface{}
	if c.Data != "" {
		payload = json.RawMessage(c.Data)
	}

	resp, err := client.Do(ctx, sdk.MessageType(c.Command), payload)
	if err != nil {
		return err
	}

	var ok sdk.OKData
	if resp.Type == sdk.MessageTypeOK && json.Unmarshal(resp.Data, &ok) == nil {
		fmt.Println(ok.Message)
		return nil
	}
	fmt.Println(string(resp.Data))
	return nil
}
