package game

import "errors"

// Operation errors. All of these are recoverable: the gateway renders them
// as user-facing messages and nothing is partially applied when one is
// returned.
var (
	ErrRoundClosed        = errors.New("round has already been settled")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientFunds  = errors.New("not enough fluxbux")
	ErrInvalidTarget      = errors.New("not a valid option to bet on")
	ErrTooManyBets        = errors.New("too many bets")
	ErrNoSuchBet          = errors.New("no such bet")
	ErrNoRound            = errors.New("no round for that week")
	ErrNoBets             = errors.New("no bets have been made")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrAlreadyClaimed     = errors.New("bonus already claimed this week")
	ErrClaimExpired       = errors.New("claim window has expired")
)

// ErrorCode returns a stable wire identifier for an operation error, used by
// the gateway when reporting failures to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoundClosed):
		return "round_closed"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrTooManyBets):
		return "too_many_bets"
	case errors.Is(err, ErrNoSuchBet):
		return "no_such_bet"
	case errors.Is(err, ErrNoRound):
		return "no_round"
	case errors.Is(err, ErrNoBets):
		return "no_bets"
	case errors.Is(err, ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrClaimExpired):
		return "claim_expired"
	default:
		return "internal"
	}
}
