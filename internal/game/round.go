package game

import (
	"fmt"
	"math"
	"sort"
)

// ResetMode controls how Configure treats existing round state.
type ResetMode int

const (
	// ResetNone appends to the current option list.
	ResetNone ResetMode = iota
	// ResetOptions clears the option list before appending.
	ResetOptions
	// ResetFull clears options, bets, pool and result before appending.
	ResetFull
)

// ParseResetMode maps the wire values ("", "options", "full") to a ResetMode.
func ParseResetMode(s string) (ResetMode, error) {
	switch s {
	case "", "none":
		return ResetNone, nil
	case "options":
		return ResetOptions, nil
	case "full":
		return ResetFull, nil
	default:
		return ResetNone, fmt.Errorf("unknown reset mode %q", s)
	}
}

// Round holds the betting state for a single week. The JSON field names are
// the on-disk snapshot contract and must not change.
type Round struct {
	Options []string                  `json:"options"`
	Result  *Summary                  `json:"result"`
	Pool    map[string]int            `json:"betting_pool"`
	Bets    map[string]map[string]int `json:"bets"`
	Claimed map[string]bool           `json:"claimed"`
}

// NewRound returns an open round with all sub-structures initialized.
func NewRound() *Round {
	return &Round{
		Pool:    make(map[string]int),
		Bets:    make(map[string]map[string]int),
		Claimed: make(map[string]bool),
	}
}

// normalize restores the sub-structure invariants after deserialization.
// A result with no winner is treated as an open round.
func (r *Round) normalize() {
	if r.Pool == nil {
		r.Pool = make(map[string]int)
	}
	if r.Bets == nil {
		r.Bets = make(map[string]map[string]int)
	}
	if r.Claimed == nil {
		r.Claimed = make(map[string]bool)
	}
	if r.Result != nil && r.Result.Winner == "" {
		r.Result = nil
	}
}

// Closed reports whether the round has been settled.
func (r *Round) Closed() bool {
	return r.Result != nil
}

// Configure applies the reset mode, appends options and returns the
// resulting option list.
func (r *Round) Configure(options []string, mode ResetMode) []string {
	switch mode {
	case ResetFull:
		r.Options = nil
		r.Pool = make(map[string]int)
		r.Bets = make(map[string]map[string]int)
		r.Result = nil
	case ResetOptions:
		r.Options = nil
	}
	r.Options = append(r.Options, options...)
	return r.Options
}

// MaxBets is the distinct-target limit per participant,
// ceil(len(options)/2).
func (r *Round) MaxBets() int {
	return (len(r.Options) + 1) / 2
}

// HasOption reports whether target is a valid bet target this round.
func (r *Round) HasOption(target string) bool {
	for _, opt := range r.Options {
		if opt == target {
			return true
		}
	}
	return false
}

// Committed returns the sum of user's wagers this round.
func (r *Round) Committed(user string) int {
	total := 0
	for _, amount := range r.Bets[user] {
		total += amount
	}
	return total
}

// PayoutRatio is the multiplier applied to a winning wager before
// commission: (1-p)/p where p = 1/len(options), rounded to two decimals.
// More options means longer odds and a higher ratio.
func (r *Round) PayoutRatio() float64 {
	if len(r.Options) == 0 {
		return 0
	}
	p := 1.0 / float64(len(r.Options))
	return math.Round((1-p)/p*100) / 100
}

// PlaceBet validates and records a wager for user on target. Re-betting a
// target overwrites the previous amount rather than accumulating. The total
// a participant has committed this round may never exceed their balance.
func (r *Round) PlaceBet(ledger *Ledger, user, target string, amount int) error {
	if r.Closed() {
		return ErrRoundClosed
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	ledger.Ensure(user)
	if r.Committed(user)+amount > ledger.Balance(user) {
		return ErrInsufficientFunds
	}
	if !r.HasOption(target) {
		return ErrInvalidTarget
	}
	if existing, ok := r.Bets[user]; ok {
		// The distinct-target cap only applies to new targets; overwriting
		// an existing wager is always allowed.
		if _, rebet := existing[target]; !rebet && len(existing) >= r.MaxBets() {
			return ErrTooManyBets
		}
	}
	if r.Bets[user] == nil {
		r.Bets[user] = make(map[string]int)
	}
	r.Bets[user][target] = amount
	r.recomputePool()
	return nil
}

// RemoveBet deletes user's wager on target and rebuilds the pool.
func (r *Round) RemoveBet(user, target string) error {
	if r.Closed() {
		return ErrRoundClosed
	}
	bets := r.Bets[user]
	if _, ok := bets[target]; !ok {
		return ErrNoSuchBet
	}
	delete(bets, target)
	if len(bets) == 0 {
		delete(r.Bets, user)
	}
	r.recomputePool()
	return nil
}

// recomputePool rederives the per-target aggregate from the bet table. The
// pool is never mutated directly.
func (r *Round) recomputePool() {
	pool := make(map[string]int)
	for _, bets := range r.Bets {
		for target, amount := range bets {
			pool[target] += amount
		}
	}
	r.Pool = pool
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	clone := &Round{
		Options: append([]string(nil), r.Options...),
		Pool:    make(map[string]int, len(r.Pool)),
		Bets:    make(map[string]map[string]int, len(r.Bets)),
		Claimed: make(map[string]bool, len(r.Claimed)),
	}
	for target, amount := range r.Pool {
		clone.Pool[target] = amount
	}
	for user, bets := range r.Bets {
		userBets := make(map[string]int, len(bets))
		for target, amount := range bets {
			userBets[target] = amount
		}
		clone.Bets[user] = userBets
	}
	for user, claimed := range r.Claimed {
		clone.Claimed[user] = claimed
	}
	if r.Result != nil {
		result := *r.Result
		clone.Result = &result
	}
	return clone
}

// sortedKeys returns m's keys in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
