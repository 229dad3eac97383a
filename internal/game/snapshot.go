package game

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
)

// ExternalID is a participant's identity on the chat platform. Older
// snapshot files store these as raw numbers, so decoding accepts both
// forms; encoding always writes a string.
type ExternalID string

func (e *ExternalID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = ExternalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("external id must be a string or number: %s", data)
	}
	*e = ExternalID(n.String())
	return nil
}

// Snapshot is the serializable state of a Game: balances, the alias map and
// every round keyed by week. The JSON layout matches the database.json file
// the system has always persisted, which is the one on-disk contract the
// core honors exactly.
type Snapshot struct {
	Users   map[string]int        `json:"users"`
	UserMap map[string]ExternalID `json:"user_map"`
	Weeks   map[string]*Round     `json:"weeks"`
}

// Snapshot returns a deep copy of the game state, safe to serialize while
// the game keeps mutating.
func (g *Game) Snapshot() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := &Snapshot{
		Users:   g.ledger.Balances(),
		UserMap: make(map[string]ExternalID, len(g.aliases)),
		Weeks:   make(map[string]*Round, len(g.rounds)),
	}
	for name, id := range g.aliases {
		snap.UserMap[name] = ExternalID(id)
	}
	for period, round := range g.rounds {
		snap.Weeks[period] = round.Clone()
	}
	return snap
}

// FromSnapshot reconstructs a Game from a snapshot. A nil snapshot yields a
// fresh game. Missing sub-structures are initialized so deserialized rounds
// satisfy the same invariants as constructed ones.
func FromSnapshot(snap *Snapshot, logger *log.Logger, opts ...GameOption) *Game {
	g := New(logger, opts...)
	if snap == nil {
		return g
	}
	for name, balance := range snap.Users {
		g.ledger.balances[name] = balance
	}
	for name, id := range snap.UserMap {
		g.aliases[name] = string(id)
	}
	for period, round := range snap.Weeks {
		if round == nil {
			round = NewRound()
		}
		round.normalize()
		g.rounds[period] = round
	}
	return g
}
