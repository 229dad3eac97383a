package game

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestGame(t *testing.T, opts ...GameOption) (*Game, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	opts = append([]GameOption{WithClock(clock)}, opts...)
	return New(testLogger(), opts...), clock
}

func TestCurrentPeriodIsISOWeek(t *testing.T) {
	g, clock := newTestGame(t)
	clock.Set(time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, "1", g.CurrentPeriod())

	clock.Set(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "27", g.CurrentPeriod())
}

func TestBootstrapIsIdempotent(t *testing.T) {
	g, _ := newTestGame(t)
	g.Bootstrap("12")
	g.Configure("12", []string{"x"}, ResetNone)
	g.Bootstrap("12")

	assert.Equal(t, []string{"x"}, g.Options("12"))
}

func TestGrant(t *testing.T) {
	g, _ := newTestGame(t)

	msg, err := g.Grant("alice", 500)
	require.NoError(t, err)
	assert.Equal(t, "Gave 500 fluxbux to alice, they now have 500 fluxbux", msg)

	_, err = g.Grant("alice", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Operator grants may deduct.
	_, err = g.Grant("alice", -100)
	require.NoError(t, err)
	report, err := g.Balance("alice", "1")
	require.NoError(t, err)
	assert.Equal(t, 400, report.Balance)
}

func TestClaimOncePerPeriod(t *testing.T) {
	g, clock := newTestGame(t)
	openedAt := clock.Now()

	msg, err := g.Claim("alice", "12", openedAt)
	require.NoError(t, err)
	assert.Equal(t, "You got 100 fluxbux for week 12", msg)

	_, err = g.Claim("alice", "12", openedAt)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	// A different week has its own claim flag.
	_, err = g.Claim("alice", "13", openedAt)
	require.NoError(t, err)

	report, err := g.Balance("alice", "12")
	require.NoError(t, err)
	assert.Equal(t, 200, report.Balance)
}

func TestClaimWindowExpires(t *testing.T) {
	g, clock := newTestGame(t)

	openedAt := clock.Now().Add(-25 * time.Hour)
	_, err := g.Claim("alice", "12", openedAt)
	assert.ErrorIs(t, err, ErrClaimExpired)

	// Exactly inside the window still works.
	openedAt = clock.Now().Add(-23 * time.Hour)
	_, err = g.Claim("alice", "12", openedAt)
	assert.NoError(t, err)
}

func TestClaimBonusConfigurable(t *testing.T) {
	g, clock := newTestGame(t, WithClaimBonus(250))

	_, err := g.Claim("alice", "12", clock.Now())
	require.NoError(t, err)

	report, err := g.Balance("alice", "12")
	require.NoError(t, err)
	assert.Equal(t, 250, report.Balance)
}

func TestTransfer(t *testing.T) {
	g, _ := newTestGame(t)
	_, err := g.Grant("alice", 100)
	require.NoError(t, err)

	msg, err := g.Transfer("alice", "bob", 40, "12")
	require.NoError(t, err)
	assert.Equal(t, "Transferred 40 fluxbux. From alice(60) to bob(40).", msg)

	_, err = g.Transfer("alice", "bob", 61, "12")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = g.Transfer("alice", "bob", 0, "12")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTransferRespectsCommittedWagers(t *testing.T) {
	g, _ := newTestGame(t)
	_, err := g.Grant("alice", 100)
	require.NoError(t, err)
	g.Configure("12", []string{"x", "y"}, ResetNone)
	_, err = g.PlaceBet("12", "alice", "x", 70)
	require.NoError(t, err)

	// 70 committed: only 30 is transferable.
	_, err = g.Transfer("alice", "bob", 31, "12")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = g.Transfer("alice", "bob", 30, "12")
	assert.NoError(t, err)
}

func TestPlaceBetReceipt(t *testing.T) {
	g, _ := newTestGame(t)
	_, err := g.Grant("alice", 100)
	require.NoError(t, err)
	g.Configure("12", []string{"x", "y"}, ResetNone)

	receipt, err := g.PlaceBet("12", "alice", "x", 25)
	require.NoError(t, err)
	assert.Equal(t, 25, receipt.Committed)
	assert.InDelta(t, 1.0, receipt.Ratio, 0.001)
	assert.InDelta(t, 25.0, receipt.Percent, 0.001)
}

func TestRemoveBetOnUnknownPeriod(t *testing.T) {
	g, _ := newTestGame(t)

	_, err := g.RemoveBet("99", "alice", "x")
	assert.ErrorIs(t, err, ErrNoSuchBet)
}

func TestSettleRoundGuards(t *testing.T) {
	g, _ := newTestGame(t)

	_, err := g.SettleRound("12", "x")
	assert.ErrorIs(t, err, ErrNoRound)

	_, err = g.Grant("alice", 100)
	require.NoError(t, err)
	g.Configure("12", []string{"x", "y"}, ResetNone)
	_, err = g.PlaceBet("12", "alice", "x", 50)
	require.NoError(t, err)

	report, err := g.SettleRound("12", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", report.Summary.Winner)

	_, err = g.SettleRound("12", "x")
	assert.ErrorIs(t, err, ErrRoundClosed)
}

func TestSettleRoundResolvesWinnerAlias(t *testing.T) {
	g, _ := newTestGame(t)
	_, err := g.Grant("alice", 100)
	require.NoError(t, err)
	g.LinkAlias("x", "ext-123")
	g.Configure("12", []string{"x", "y"}, ResetNone)
	_, err = g.PlaceBet("12", "alice", "x", 50)
	require.NoError(t, err)

	report, err := g.SettleRound("12", "x")
	require.NoError(t, err)
	assert.Equal(t, "ext-123", report.WinnerMention)
}

func TestResults(t *testing.T) {
	g, _ := newTestGame(t)

	_, err := g.Results("12")
	assert.ErrorIs(t, err, ErrNoRound)

	g.Bootstrap("12")
	_, err = g.Results("12")
	assert.ErrorIs(t, err, ErrNoRound, "an open round has no results")

	_, err = g.Grant("alice", 100)
	require.NoError(t, err)
	g.Configure("12", []string{"x", "y"}, ResetNone)
	_, err = g.PlaceBet("12", "alice", "x", 50)
	require.NoError(t, err)
	_, err = g.SettleRound("12", "x")
	require.NoError(t, err)

	summary, err := g.Results("12")
	require.NoError(t, err)
	assert.Equal(t, "x", summary.Winner)
}

func TestBalanceUnknownParticipant(t *testing.T) {
	g, _ := newTestGame(t)

	_, err := g.Balance("ghost", "12")
	assert.ErrorIs(t, err, ErrUnknownParticipant)
}

func TestStatusReturnsCopies(t *testing.T) {
	g, _ := newTestGame(t)
	_, err := g.Grant("alice", 100)
	require.NoError(t, err)
	g.Configure("12", []string{"x", "y"}, ResetNone)
	_, err = g.PlaceBet("12", "alice", "x", 20)
	require.NoError(t, err)

	status := g.Status("12")
	status.Balances["alice"] = 0
	status.Pool["x"] = 0
	status.Bets["alice"]["x"] = 0

	fresh := g.Status("12")
	assert.Equal(t, 100, fresh.Balances["alice"])
	assert.Equal(t, 20, fresh.Pool["x"])
	assert.Equal(t, 20, fresh.Bets["alice"]["x"])
}

func populatedGame(t *testing.T) *Game {
	t.Helper()
	g, clock := newTestGame(t)
	_, err := g.Grant("alice", 100)
	require.NoError(t, err)
	_, err = g.Grant("bob", 200)
	require.NoError(t, err)
	g.LinkAlias("alice", "ext-1")
	g.Configure("11", []string{"x", "y"}, ResetNone)
	_, err = g.PlaceBet("11", "alice", "x", 30)
	require.NoError(t, err)
	_, err = g.SettleRound("11", "x")
	require.NoError(t, err)
	g.Configure("12", []string{"a", "b", "c"}, ResetNone)
	_, err = g.PlaceBet("12", "bob", "a", 50)
	require.NoError(t, err)
	_, err = g.Claim("alice", "12", clock.Now())
	require.NoError(t, err)
	return g
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := populatedGame(t)

	snap := g.Snapshot()
	restored := FromSnapshot(snap, testLogger())

	assert.Equal(t, snap, restored.Snapshot())
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	g := populatedGame(t)
	snap := g.Snapshot()

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var loaded Snapshot
	require.NoError(t, json.Unmarshal(data, &loaded))

	restored := FromSnapshot(&loaded, testLogger())
	assert.Equal(t, snap, restored.Snapshot())
}

func TestSnapshotIsDetached(t *testing.T) {
	g := populatedGame(t)
	snap := g.Snapshot()

	_, err := g.Grant("alice", 1000)
	require.NoError(t, err)
	_, err = g.PlaceBet("12", "bob", "b", 40)
	require.NoError(t, err)

	// The earlier snapshot must not observe later mutations.
	assert.NotContains(t, snap.Weeks["12"].Bets["bob"], "b")
	// alice at snapshot time: 100 grant + 28 payout + 60 tax return from
	// week 11, + 100 claim.
	assert.Equal(t, 288, snap.Users["alice"])
}

func TestFromSnapshotNormalizesEmptyResult(t *testing.T) {
	snap := &Snapshot{
		Users: map[string]int{"alice": 100},
		Weeks: map[string]*Round{
			"12": {Options: []string{"x", "y"}, Result: &Summary{}},
		},
	}

	restored := FromSnapshot(snap, testLogger())
	_, err := restored.PlaceBet("12", "alice", "x", 10)
	assert.NoError(t, err, "a result with no winner means the round is open")
}

func TestSnapshotAcceptsNumericExternalIDs(t *testing.T) {
	// Files written by the original bot store chat platform ids as raw
	// numbers.
	data := []byte(`{
		"users": {"alice": 100},
		"user_map": {"alice": 123456789012345678},
		"weeks": {}
	}`)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, ExternalID("123456789012345678"), snap.UserMap["alice"])

	restored := FromSnapshot(&snap, testLogger())
	assert.Equal(t, ExternalID("123456789012345678"), restored.Snapshot().UserMap["alice"])

	// Once rewritten, the id is a string and still round-trips.
	out, err := json.Marshal(restored.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(out), `"123456789012345678"`)
}

func TestFromSnapshotNil(t *testing.T) {
	g := FromSnapshot(nil, testLogger())
	assert.Empty(t, g.Participants())
}
