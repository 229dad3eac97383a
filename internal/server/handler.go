package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/fluxbux/internal/game"
	"github.com/lox/fluxbux/internal/render"
)

// errNotOperator rejects operator-only commands from regular participants.
var errNotOperator = errors.New("you don't have permission to run this command")

// errUnknownCommand keeps unrecognized message types distinct from real
// faults, which report as "internal".
var errUnknownCommand = errors.New("unknown command")

// commandList is the help surface returned by the commands message.
var commandList = []CommandInfo{
	{Name: "bet", Help: "Bet on an option"},
	{Name: "remove_bet", Help: "Remove a bet you made"},
	{Name: "balance", Help: "Get your balance"},
	{Name: "transfer", Help: "Transfer fluxbux to another user"},
	{Name: "status", Help: "Get balances and bets for a week"},
	{Name: "results", Help: "Get the results for a week"},
	{Name: "claim", Help: "Claim the weekly fluxbux bonus"},
	{Name: "commands", Help: "List available commands"},
	{Name: "configure", Help: "Set the options for a betting round", Operator: true},
	{Name: "grant", Help: "Give fluxbux to a user", Operator: true},
	{Name: "settle", Help: "Settle the round against the winner", Operator: true},
	{Name: "link", Help: "Link a user to an external identity", Operator: true},
}

// Handler dispatches gateway commands to the game. Permission checks live
// here so the core stays unaware of roles.
type Handler struct {
	game      *game.Game
	operators map[string]bool
	logger    *log.Logger
}

// NewHandler creates a handler. With no operators configured, every
// participant may run operator commands.
func NewHandler(g *game.Game, operators []string, logger *log.Logger) *Handler {
	ops := make(map[string]bool, len(operators))
	for _, name := range operators {
		ops[name] = true
	}
	return &Handler{
		game:      g,
		operators: ops,
		logger:    logger.WithPrefix("handler"),
	}
}

func (h *Handler) isOperator(name string) bool {
	return len(h.operators) == 0 || h.operators[name]
}

// Handle runs one command for the named participant and always produces a
// response message. Unexpected faults are caught here, logged with context
// and surfaced as a generic failure; they never take the process down.
func (h *Handler) Handle(from string, msg *Message) (resp *Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic handling command", "type", msg.Type, "from", from, "panic", r)
			resp = h.errorResponse(msg, "internal", "something went wrong")
		}
	}()

	resp, err := h.dispatch(from, msg)
	if err != nil {
		h.logger.Info("command rejected", "type", msg.Type, "from", from, "error", err)
		code := game.ErrorCode(err)
		switch {
		case errors.Is(err, errNotOperator):
			code = "forbidden"
		case errors.Is(err, errUnknownCommand):
			code = "unknown_command"
		}
		return h.errorResponse(msg, code, err.Error())
	}
	return resp
}

func (h *Handler) dispatch(from string, msg *Message) (*Message, error) {
	switch msg.Type {
	case MessageTypeConfigure:
		var data ConfigureData
		if err := h.decode(msg, &data, true, from); err != nil {
			return nil, err
		}
		period := h.period(data.Period)
		mode, err := game.ParseResetMode(data.Reset)
		if err != nil {
			return nil, err
		}
		options := h.game.Configure(period, data.Options, mode)
		return h.okResponse(msg, render.ConfiguredOptions(period, options))

	case MessageTypeGrant:
		var data GrantData
		if err := h.decode(msg, &data, true, from); err != nil {
			return nil, err
		}
		message, err := h.game.Grant(data.User, data.Amount)
		if err != nil {
			return nil, err
		}
		return h.okResponse(msg, message)

	case MessageTypeClaim:
		var data ClaimData
		if err := h.decode(msg, &data, false, from); err != nil {
			return nil, err
		}
		message, err := h.game.Claim(from, h.period(data.Period), data.OpenedAt)
		if err != nil {
			return nil, err
		}
		return h.okResponse(msg, message)

	case MessageTypeTransfer:
		var data TransferData
		if err := h.decode(msg, &data, false, from); err != nil {
			return nil, err
		}
		message, err := h.game.Transfer(from, data.To, data.Amount, h.period(""))
		if err != nil {
			return nil, err
		}
		return h.okResponse(msg, message)

	case MessageTypeBet:
		var data BetData
		if err := h.decode(msg, &data, false, from); err != nil {
			return nil, err
		}
		receipt, err := h.game.PlaceBet(h.period(data.Period), from, data.Target, data.Amount)
		if err != nil {
			return nil, err
		}
		return h.okResponse(msg, render.Receipt(receipt))

	case MessageTypeRemoveBet:
		var data RemoveBetData
		if err := h.decode(msg, &data, false, from); err != nil {
			return nil, err
		}
		message, err := h.game.RemoveBet(h.period(data.Period), from, data.Target)
		if err != nil {
			return nil, err
		}
		return h.okResponse(msg, message)

	case MessageTypeSettle:
		var data SettleData
		if err := h.decode(msg, &data, true, from); err != nil {
			return nil, err
		}
		report, err := h.game.SettleRound(h.period(data.Period), data.Winner)
		if err != nil {
			return nil, err
		}
		return h.okResponse(msg, render.Settlement(report))

	case MessageTypeLink:
		var data LinkData
		if err := h.decode(msg, &data, true, from); err != nil {
			return nil, err
		}
		h.game.LinkAlias(data.User, data.ExternalID)
		return h.okResponse(msg, fmt.Sprintf("Linked %s and %s", data.User, data.ExternalID))

	case MessageTypeStatus:
		var data StatusData
		if err := h.decode(msg, &data, false, from); err != nil {
			return nil, err
		}
		period := h.period(data.Period)
		return h.okResponse(msg, render.Status(h.game.Status(period)))

	case MessageTypeBalance:
		var data BalanceData
		if err := h.decode(msg, &data, false, from); err != nil {
			return nil, err
		}
		report, err := h.game.Balance(from, h.period(data.Period))
		if err != nil {
			return nil, err
		}
		return h.okResponse(msg, render.Balance(report))

	case MessageTypeResults:
		var data ResultsData
		if err := h.decode(msg, &data, false, from); err != nil {
			return nil, err
		}
		period := h.period(data.Period)
		summary, err := h.game.Results(period)
		if err != nil {
			return nil, err
		}
		return h.okResponse(msg, render.Results(period, summary))

	case MessageTypeCommands:
		resp, err := NewMessage(MessageTypeCommands, CommandsData{Commands: commandList})
		if err != nil {
			return nil, err
		}
		resp.RequestID = requestID(msg)
		return resp, nil

	default:
		return nil, fmt.Errorf("%w %q", errUnknownCommand, msg.Type)
	}
}

// decode unmarshals the command payload and applies the operator check.
func (h *Handler) decode(msg *Message, into interface{}, operatorOnly bool, from string) error {
	if operatorOnly && !h.isOperator(from) {
		return errNotOperator
	}
	if len(msg.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Data, into); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return nil
}

// period falls back to the current wall-clock week.
func (h *Handler) period(period string) string {
	if period != "" {
		return period
	}
	return h.game.CurrentPeriod()
}

func (h *Handler) okResponse(msg *Message, message string) (*Message, error) {
	resp, err := NewMessage(MessageTypeOK, OKData{Message: message})
	if err != nil {
		return nil, err
	}
	resp.RequestID = requestID(msg)
	return resp, nil
}

func (h *Handler) errorResponse(msg *Message, code, message string) *Message {
	resp, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		// Marshalling two strings cannot fail; keep the compiler honest.
		return &Message{Type: MessageTypeError, RequestID: requestID(msg)}
	}
	resp.RequestID = requestID(msg)
	return resp
}

// requestID echoes the client's request id, minting one if absent.
func requestID(msg *Message) string {
	if msg.RequestID != "" {
		return msg.RequestID
	}
	return newRequestID()
}
