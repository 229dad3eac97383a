package game

import "math"

// Tax and commission rates applied at settlement.
const (
	// nonParticipationTax is charged on the full balance of anyone who
	// placed no bet this round.
	nonParticipationTax = 0.30
	// participationFloor is the share of balance a participant must have
	// committed to avoid the shortfall tax.
	participationFloor = 0.10
	// commissionRate is the house cut taken from every payout.
	commissionRate = 0.05
)

// Summary is the fixed-shape settlement record stored on a closed round.
// A round with a non-nil Summary accepts no further bets. The JSON field
// names are part of the snapshot contract.
type Summary struct {
	Winner        string `json:"winner"`
	CorrectBets   int    `json:"correct_bets"`
	IncorrectBets int    `json:"incorrect_bets"`
	TotalPool     int    `json:"total_pool"`
	WinnerPool    int    `json:"winner_pool"`
	TotalPayout   int    `json:"total_payout"`
	TaxPool       int    `json:"taxes"`
	TaxedCount    int    `json:"taxed_players"`
	Commission    int    `json:"house_commission"`
	HouseGain     int    `json:"house_gain"`
	NetHouseGain  int    `json:"net_house_gain"`
}

// OutcomeKind classifies a settlement balance movement.
type OutcomeKind string

const (
	OutcomeWon       OutcomeKind = "won"
	OutcomeLost      OutcomeKind = "lost"
	OutcomeTaxed     OutcomeKind = "taxed"
	OutcomeTaxReturn OutcomeKind = "tax return"
)

// Outcome records one balance movement applied during settlement.
type Outcome struct {
	Participant string      `json:"participant"`
	Kind        OutcomeKind `json:"kind"`
	Amount      int         `json:"amount"`
}

// Settle runs the taxation, payout and redistribution passes for a round
// and closes it. Participants are visited in sorted name order so that
// tied edge cases always settle the same way.
//
// The passes, in order:
//  1. every participant without a bet is taxed 30% of their balance
//  2. every bettor committed at or below 10% of their balance is taxed
//     the shortfall (the two taxes are mutually exclusive)
//  3. winning wagers pay out amount*ratio less 5% commission; losing
//     wagers are debited into the house gain
//  4. the tax pool is split evenly among the bettors who were not taxed;
//     with no eligible bettor it falls to the house
//  5. the house balance moves by gain minus payouts
//
// Settle is not idempotent: re-running it would tax and pay twice, so a
// closed round is rejected up front with ErrRoundClosed.
func Settle(ledger *Ledger, round *Round, winner string) (*Summary, []Outcome, error) {
	if round == nil {
		return nil, nil, ErrNoRound
	}
	if round.Closed() {
		return nil, nil, ErrRoundClosed
	}
	totalPool := 0
	for _, staked := range round.Pool {
		totalPool += staked
	}
	if totalPool == 0 {
		return nil, nil, ErrNoBets
	}

	ledger.Ensure(HouseAccount)
	ratio := round.PayoutRatio()

	var (
		outcomes   []Outcome
		taxed      = make(map[string]bool)
		taxPool    int
		commission int
		houseLoss  int
		houseGain  int
		correct    int
		incorrect  int
	)

	// Pass 1: non-participation tax.
	for _, name := range ledger.Participants() {
		if name == HouseAccount {
			continue
		}
		if _, placed := round.Bets[name]; placed {
			continue
		}
		tax := roundNearest(float64(ledger.Balance(name)) * nonParticipationTax)
		taxPool += tax
		ledger.Adjust(name, -tax)
		taxed[name] = true
		outcomes = append(outcomes, Outcome{Participant: name, Kind: OutcomeTaxed, Amount: tax})
	}

	// Pass 2 and 3: shortfall tax, then payouts and losses, per bettor.
	// The shortfall threshold reads the bettor's balance before their own
	// wagers resolve.
	for _, name := range sortedKeys(round.Bets) {
		bets := round.Bets[name]
		committed := round.Committed(name)
		floor := participationFloor * float64(ledger.Balance(name))
		if float64(committed) <= floor {
			tax := roundNearest(floor - float64(committed))
			taxPool += tax
			ledger.Adjust(name, -tax)
			taxed[name] = true
			outcomes = append(outcomes, Outcome{Participant: name, Kind: OutcomeTaxed, Amount: tax})
		}
		for _, target := range sortedKeys(bets) {
			amount := bets[target]
			if target == winner {
				payout := roundNearest(float64(amount) * ratio)
				fee := roundNearest(float64(payout) * commissionRate)
				payout -= fee
				commission += fee
				houseLoss += payout
				ledger.Adjust(name, payout)
				correct++
				outcomes = append(outcomes, Outcome{Participant: name, Kind: OutcomeWon, Amount: payout})
			} else {
				// Wagers are committed, not pre-debited; this debit is the
				// actual loss application.
				houseGain += amount
				ledger.Adjust(name, -amount)
				incorrect++
				outcomes = append(outcomes, Outcome{Participant: name, Kind: OutcomeLost, Amount: amount})
			}
		}
	}

	// Pass 4: redistribute the tax pool to the bettors who stayed
	// compliant.
	if len(taxed) > 0 {
		var eligible []string
		for _, name := range sortedKeys(round.Bets) {
			if !taxed[name] {
				eligible = append(eligible, name)
			}
		}
		if len(eligible) > 0 {
			cut := roundNearest(float64(taxPool) / float64(len(eligible)))
			for _, name := range eligible {
				ledger.Adjust(name, cut)
				outcomes = append(outcomes, Outcome{Participant: name, Kind: OutcomeTaxReturn, Amount: cut})
			}
		} else {
			houseGain += taxPool
		}
	}

	// Pass 5: the house absorbs losses and funds payouts. Commission was
	// already withheld from payouts, so it is reported but not moved again.
	ledger.Adjust(HouseAccount, houseGain-houseLoss)

	summary := &Summary{
		Winner:        winner,
		CorrectBets:   correct,
		IncorrectBets: incorrect,
		TotalPool:     totalPool,
		WinnerPool:    round.Pool[winner],
		TotalPayout:   houseLoss,
		TaxPool:       taxPool,
		TaxedCount:    len(taxed),
		Commission:    commission,
		HouseGain:     houseGain,
		NetHouseGain:  houseGain - houseLoss,
	}
	round.Result = summary
	return summary, outcomes, nil
}

// roundNearest rounds half away from zero. Every fractional tax, payout and
// commission lands on whole fluxbux through this.
func roundNearest(v float64) int {
	return int(math.Round(v))
}
