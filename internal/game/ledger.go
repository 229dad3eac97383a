package game

import "sort"

// HouseAccount absorbs losing wagers and retains payout commission. It is
// exempt from taxation and never places bets.
const HouseAccount = "house"

// Ledger maps participant names to whole-fluxbux balances. It performs no
// validation of its own: callers that need overdraft protection pre-check
// with Balance, while settlement relies on unchecked adjustments to apply
// its multi-leg corrections in a single pass.
type Ledger struct {
	balances map[string]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]int)}
}

// Ensure creates a zero-balance entry for name if one does not exist.
// Idempotent.
func (l *Ledger) Ensure(name string) {
	if _, ok := l.balances[name]; !ok {
		l.balances[name] = 0
	}
}

// Adjust applies delta to name's balance, creating the entry if needed.
// Negative results are permitted.
func (l *Ledger) Adjust(name string, delta int) {
	l.Ensure(name)
	l.balances[name] += delta
}

// Balance returns name's balance, 0 for unknown participants.
func (l *Ledger) Balance(name string) int {
	return l.balances[name]
}

// Has reports whether name has a ledger entry.
func (l *Ledger) Has(name string) bool {
	_, ok := l.balances[name]
	return ok
}

// Participants returns every ledger entry name in sorted order. Settlement
// iterates this list so taxation order is deterministic.
func (l *Ledger) Participants() []string {
	names := make([]string, 0, len(l.balances))
	for name := range l.balances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Balances returns a copy of the balance table.
func (l *Ledger) Balances() map[string]int {
	out := make(map[string]int, len(l.balances))
	for name, balance := range l.balances {
		out[name] = balance
	}
	return out
}
