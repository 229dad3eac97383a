// Package render formats game reports as chat-ready text. The core returns
// structured data only; everything table- or list-shaped happens here.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lox/fluxbux/internal/game"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const none = "- None"

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

// amountTable renders a name/amount map sorted by amount descending.
func amountTable(nameHeader string, amounts map[string]int) string {
	if len(amounts) == 0 {
		return none
	}
	names := make([]string, 0, len(amounts))
	for name := range amounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if amounts[names[i]] != amounts[names[j]] {
			return amounts[names[i]] > amounts[names[j]]
		}
		return names[i] < names[j]
	})
	tbl := newTable(nameHeader, "fluxbux")
	for _, name := range names {
		tbl.Row(name, strconv.Itoa(amounts[name]))
	}
	return tbl.Render()
}

// Balances renders the fluxbux listing, richest first.
func Balances(balances map[string]int) string {
	return amountTable("user", balances)
}

// Pool renders the per-target betting pool.
func Pool(pool map[string]int) string {
	return amountTable("option", pool)
}

// Bets renders every wager as a user/bet/fluxbux row.
func Bets(bets map[string]map[string]int) string {
	if len(bets) == 0 {
		return none
	}
	tbl := newTable("user", "bet", "fluxbux")
	for _, user := range sortedKeys(bets) {
		wagers := bets[user]
		for _, target := range sortedKeys(wagers) {
			tbl.Row(user, target, strconv.Itoa(wagers[target]))
		}
	}
	return tbl.Render()
}

// Status renders the full status answer: balances, pool and bets.
func Status(report *game.StatusReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", titleStyle.Render("Current fluxbux listing"), Balances(report.Balances))
	fmt.Fprintf(&b, "%s\n%s\n", titleStyle.Render("Betting pool"), Pool(report.Pool))
	fmt.Fprintf(&b, "%s\n%s", titleStyle.Render("Bets for week "+report.Period), Bets(report.Bets))
	return b.String()
}

// ConfiguredOptions renders the post-configure confirmation list.
func ConfiguredOptions(period string, options []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Set week %s to:", period)
	for _, opt := range options {
		fmt.Fprintf(&b, "\n- %s", opt)
	}
	return b.String()
}

// Receipt renders the bet confirmation, including the committed share of
// balance against the 10% taxation floor.
func Receipt(r *game.BetReceipt) string {
	return fmt.Sprintf(
		"%s bet %d fluxbux on %s for a %.2f payout ratio on week %s.\n"+
			"Your percentage so far is %.2f%% of your fluxbux. The threshold is 10%%.",
		r.Participant, r.Amount, r.Target, r.Ratio, r.Period, r.Percent)
}

// Balance renders a participant's balance answer.
func Balance(r *game.BalanceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d fluxbux and have bet %.2f%% of your fluxbux.",
		r.Balance, r.Percent)
	for _, target := range sortedKeys(r.Bets) {
		fmt.Fprintf(&b, "\n- %s: %d", target, r.Bets[target])
	}
	return b.String()
}

// Results renders a settlement summary as a fixed-order listing.
func Results(period string, s *game.Summary) string {
	rows := []struct {
		label string
		value string
	}{
		{"Winner", s.Winner},
		{"Correct bets", strconv.Itoa(s.CorrectBets)},
		{"Incorrect bets", strconv.Itoa(s.IncorrectBets)},
		{"Total betting pool", strconv.Itoa(s.TotalPool)},
		{"Winning pool", strconv.Itoa(s.WinnerPool)},
		{"Total payouts", strconv.Itoa(s.TotalPayout)},
		{"Taxes", strconv.Itoa(s.TaxPool)},
		{"Taxed players", strconv.Itoa(s.TaxedCount)},
		{"House commission on payouts", strconv.Itoa(s.Commission)},
		{"Fluxbux to house from lost bets", strconv.Itoa(s.HouseGain)},
		{"Net fluxbux gone to the house", strconv.Itoa(s.NetHouseGain)},
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The results for week %s:", period)
	for _, row := range rows {
		fmt.Fprintf(&b, "\n- %s: %s", row.label, row.value)
	}
	return b.String()
}

// Settlement renders the payout breakdown grouped by outcome.
func Settlement(report *game.SettleReport) string {
	groups := map[game.OutcomeKind][]string{}
	for _, o := range report.Outcomes {
		groups[o.Kind] = append(groups[o.Kind],
			fmt.Sprintf("- %s %s %d fluxbux", o.Participant, o.Kind, o.Amount))
	}
	section := func(title string, kind game.OutcomeKind) string {
		lines := groups[kind]
		if len(lines) == 0 {
			return titleStyle.Render(title) + "\n" + none
		}
		return titleStyle.Render(title) + "\n" + strings.Join(lines, "\n")
	}
	return fmt.Sprintf("The winner is %s\n%s\n%s\n%s\n%s",
		report.WinnerMention,
		section("Gain:", game.OutcomeWon),
		section("Loss:", game.OutcomeLost),
		section("Taxed:", game.OutcomeTaxed),
		section("Tax return:", game.OutcomeTaxReturn))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
