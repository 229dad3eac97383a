package game

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// DefaultClaimBonus is the fluxbux granted by the one-time weekly claim.
const DefaultClaimBonus = 100

// ClaimWindow is how long after a claim opens that it remains valid.
const ClaimWindow = 24 * time.Hour

// Game owns the authoritative betting state: the ledger, the rounds keyed
// by week, and the alias map. Every operation takes the single mutex, which
// serializes the gateway's command handlers against the bootstrap ticker.
// Nothing inside the lock blocks on I/O.
type Game struct {
	mu         sync.Mutex
	clock      quartz.Clock
	logger     *log.Logger
	ledger     *Ledger
	rounds     map[string]*Round
	aliases    map[string]string
	claimBonus int
}

// GameOption configures a Game.
type GameOption func(*Game)

// WithClock replaces the wall clock, used by tests to pin the current week
// and the claim window.
func WithClock(clock quartz.Clock) GameOption {
	return func(g *Game) { g.clock = clock }
}

// WithClaimBonus overrides the weekly claim amount.
func WithClaimBonus(amount int) GameOption {
	return func(g *Game) { g.claimBonus = amount }
}

// New returns an empty game.
func New(logger *log.Logger, opts ...GameOption) *Game {
	g := &Game{
		clock:      quartz.NewReal(),
		logger:     logger.WithPrefix("game"),
		ledger:     NewLedger(),
		rounds:     make(map[string]*Round),
		aliases:    make(map[string]string),
		claimBonus: DefaultClaimBonus,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CurrentPeriod derives the week identifier from the wall clock. Every
// other operation accepts arbitrary period strings so synthetic weeks work
// in tests.
func (g *Game) CurrentPeriod() string {
	_, week := g.clock.Now().ISOWeek()
	return strconv.Itoa(week)
}

// Bootstrap idempotently ensures a round exists for the period.
func (g *Game) Bootstrap(period string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureRound(period)
}

// ensureRound creates the round for period if absent. Callers hold the
// mutex.
func (g *Game) ensureRound(period string) *Round {
	round, ok := g.rounds[period]
	if !ok {
		round = NewRound()
		g.rounds[period] = round
		g.logger.Info("opened round", "week", period)
	}
	return round
}

// AddParticipant creates a zero-balance ledger entry if absent.
func (g *Game) AddParticipant(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ledger.Ensure(name)
}

// LinkAlias maps a participant nickname to an external platform identity.
// The link is used for notification rendering only, never ownership.
func (g *Game) LinkAlias(name, externalID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.aliases[name] = externalID
}

// Configure applies options and a reset mode to the period's round and
// returns the resulting option list.
func (g *Game) Configure(period string, options []string, mode ResetMode) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	result := g.ensureRound(period).Configure(options, mode)
	g.logger.Info("configured round", "week", period, "options", len(result))
	return result
}

// Grant credits amount to name unconditionally. Operator use only; the
// gateway enforces who may call it.
func (g *Game) Grant(name string, amount int) (string, error) {
	if amount == 0 {
		return "", ErrInvalidAmount
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ledger.Adjust(name, amount)
	g.logger.Info("granted fluxbux", "user", name, "amount", amount)
	return fmt.Sprintf("Gave %d fluxbux to %s, they now have %d fluxbux",
		amount, name, g.ledger.Balance(name)), nil
}

// Claim credits the weekly bonus once per participant per period. openedAt
// is the timestamp the claim was published; it stays valid for 24 hours.
func (g *Game) Claim(name, period string, openedAt time.Time) (string, error) {
	if g.clock.Now().Sub(openedAt) > ClaimWindow {
		return "", ErrClaimExpired
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	round := g.ensureRound(period)
	if round.Claimed[name] {
		return "", ErrAlreadyClaimed
	}
	round.Claimed[name] = true
	g.ledger.Adjust(name, g.claimBonus)
	g.logger.Info("claim granted", "user", name, "week", period, "amount", g.claimBonus)
	return fmt.Sprintf("You got %d fluxbux for week %s", g.claimBonus, period), nil
}

// Transfer moves amount between two participants. The sender's wagers
// already committed in the current period count against their balance, so
// a transfer can never leave an open bet unfunded: committed+amount <=
// balance before the debit implies committed <= balance after it.
func (g *Game) Transfer(from, to string, amount int, period string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ledger.Ensure(from)
	g.ledger.Ensure(to)
	committed := g.ensureRound(period).Committed(from)
	if committed+amount > g.ledger.Balance(from) {
		return "", ErrInsufficientFunds
	}
	g.ledger.Adjust(from, -amount)
	g.ledger.Adjust(to, amount)
	g.logger.Info("transfer", "from", from, "to", to, "amount", amount)
	return fmt.Sprintf("Transferred %d fluxbux. From %s(%d) to %s(%d).",
		amount, from, g.ledger.Balance(from), to, g.ledger.Balance(to)), nil
}

// BetReceipt confirms a recorded wager.
type BetReceipt struct {
	Participant string  `json:"participant"`
	Target      string  `json:"target"`
	Amount      int     `json:"amount"`
	Period      string  `json:"period"`
	Ratio       float64 `json:"ratio"`
	Committed   int     `json:"committed"`
	// Percent is the share of the participant's balance now committed,
	// rounded to two decimals. The taxation floor is 10%.
	Percent float64 `json:"percent"`
}

// PlaceBet records a wager in the period's round.
func (g *Game) PlaceBet(period, name, target string, amount int) (*BetReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	round := g.ensureRound(period)
	if err := round.PlaceBet(g.ledger, name, target, amount); err != nil {
		return nil, err
	}
	committed := round.Committed(name)
	percent := 0.0
	if balance := g.ledger.Balance(name); balance != 0 {
		percent = math.Round(float64(committed)/float64(balance)*100*100) / 100
	}
	g.logger.Info("bet placed", "user", name, "target", target, "amount", amount, "week", period)
	return &BetReceipt{
		Participant: name,
		Target:      target,
		Amount:      amount,
		Period:      period,
		Ratio:       round.PayoutRatio(),
		Committed:   committed,
		Percent:     percent,
	}, nil
}

// RemoveBet deletes a wager from the period's round.
func (g *Game) RemoveBet(period, name, target string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	round, ok := g.rounds[period]
	if !ok {
		return "", ErrNoSuchBet
	}
	if err := round.RemoveBet(name, target); err != nil {
		return "", err
	}
	g.logger.Info("bet removed", "user", name, "target", target, "week", period)
	return fmt.Sprintf("Removed your bet on %s", target), nil
}

// SettleReport is the full result of settling a round.
type SettleReport struct {
	Summary *Summary `json:"summary"`
	// Outcomes lists every balance movement in application order.
	Outcomes []Outcome `json:"outcomes"`
	// WinnerMention is the winner's linked external identity when one
	// exists, otherwise the winner name itself.
	WinnerMention string `json:"winner_mention"`
}

// SettleRound settles the period's round against winner. A round that
// already carries a result is rejected so settlement cannot run twice.
func (g *Game) SettleRound(period, winner string) (*SettleReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	round, ok := g.rounds[period]
	if !ok {
		return nil, ErrNoRound
	}
	summary, outcomes, err := Settle(g.ledger, round, winner)
	if err != nil {
		return nil, err
	}
	mention := winner
	if id, ok := g.aliases[winner]; ok {
		mention = id
	}
	g.logger.Info("round settled", "week", period, "winner", winner,
		"pool", summary.TotalPool, "taxed", summary.TaxedCount, "house", summary.NetHouseGain)
	return &SettleReport{Summary: summary, Outcomes: outcomes, WinnerMention: mention}, nil
}

// StatusReport is the structured answer to a status query. Rendering is the
// presentation layer's concern.
type StatusReport struct {
	Period   string                    `json:"period"`
	Balances map[string]int            `json:"balances"`
	Pool     map[string]int            `json:"pool"`
	Bets     map[string]map[string]int `json:"bets"`
	Options  []string                  `json:"options"`
}

// Status returns a copy of the balances and the period's betting state.
func (g *Game) Status(period string) *StatusReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	report := &StatusReport{
		Period:   period,
		Balances: g.ledger.Balances(),
		Pool:     map[string]int{},
		Bets:     map[string]map[string]int{},
	}
	if round, ok := g.rounds[period]; ok {
		clone := round.Clone()
		report.Pool = clone.Pool
		report.Bets = clone.Bets
		report.Options = clone.Options
	}
	return report
}

// BalanceReport is the structured answer to a balance query.
type BalanceReport struct {
	Participant string         `json:"participant"`
	Balance     int            `json:"balance"`
	Committed   int            `json:"committed"`
	Percent     float64        `json:"percent"`
	Bets        map[string]int `json:"bets"`
}

// Balance reports a participant's balance and their wagers for the period.
func (g *Game) Balance(name, period string) (*BalanceReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ledger.Has(name) {
		return nil, ErrUnknownParticipant
	}
	report := &BalanceReport{
		Participant: name,
		Balance:     g.ledger.Balance(name),
		Bets:        map[string]int{},
	}
	if round, ok := g.rounds[period]; ok {
		report.Committed = round.Committed(name)
		for target, amount := range round.Bets[name] {
			report.Bets[target] = amount
		}
	}
	if report.Balance != 0 {
		report.Percent = math.Round(float64(report.Committed)/float64(report.Balance)*100*100) / 100
	}
	return report, nil
}

// Results returns the settlement summary for a period, or ErrNoRound while
// the round is missing or still open.
func (g *Game) Results(period string) (*Summary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	round, ok := g.rounds[period]
	if !ok || !round.Closed() {
		return nil, ErrNoRound
	}
	result := *round.Result
	return &result, nil
}

// Options returns the period's bet targets, for autocompletion surfaces.
func (g *Game) Options(period string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if round, ok := g.rounds[period]; ok {
		return append([]string(nil), round.Options...)
	}
	return nil
}

// Participants returns every known participant name, sorted.
func (g *Game) Participants() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.Participants()
}
