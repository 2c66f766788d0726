package engine

import (
	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/apperr"
)

// SettleResult is one caller-supplied outcome row for Settle (§4.3.2).
// WinAmount is nil when the caller wants the engine to compute the
// default even split.
type SettleResult struct {
	PlayerID  string
	IsWinner  bool
	WinAmount *amount.Amount
}

// distribution computes platformFee, prizePool and the per-winner payout
// map for a Settle call, in the order winners appear in results (§4.3.2's
// "first remainder winners in the order given by results").
func distribution(totalPot amount.Amount, platformFeeBps int64, results []SettleResult) (platformFee, prizePool amount.Amount, payouts map[string]amount.Amount, err error) {
	platformFee = amount.MulBps(totalPot, platformFeeBps)
	prizePool, subErr := amount.SubNonNegative(totalPot, platformFee)
	if subErr != nil {
		return amount.Zero(), amount.Zero(), nil, apperr.New(apperr.CodeInternalError, "platform fee exceeds pot")
	}

	winners := make([]string, 0, len(results))
	explicit := make(map[string]amount.Amount, len(results))
	anyExplicit := false
	for _, r := range results {
		if !r.IsWinner {
			continue
		}
		winners = append(winners, r.PlayerID)
		if r.WinAmount != nil {
			explicit[r.PlayerID] = *r.WinAmount
			anyExplicit = true
		}
	}

	if len(winners) == 0 {
		return amount.Zero(), amount.Zero(), nil, apperr.Validation("settle requires at least one winner", nil)
	}

	if anyExplicit {
		if len(explicit) != len(winners) {
			return amount.Zero(), amount.Zero(), nil, apperr.Validation("every winner must have an explicit winAmount when any is given", nil)
		}
		sum := amount.Zero()
		for _, amt := range explicit {
			sum = amount.Add(sum, amt)
		}
		if amount.Cmp(sum, prizePool) != 0 {
			return amount.Zero(), amount.Zero(), nil, apperr.Validation("sum of explicit winAmounts must equal the prize pool", map[string]any{
				"prizePool": prizePool.String(),
				"sum":       sum.String(),
			})
		}
		return platformFee, prizePool, explicit, nil
	}

	return platformFee, prizePool, evenSplit(prizePool, winners), nil
}

// evenSplit divides prizePool evenly among winners in order, distributing
// the remainder one unit each to the first `remainder` winners in the
// order given (§4.3.2, §8 property 7 / scenario S5).
func evenSplit(prizePool amount.Amount, winners []string) map[string]amount.Amount {
	base, remainder := amount.QuoRem(prizePool, int64(len(winners)))

	payouts := make(map[string]amount.Amount, len(winners))
	unit := amount.MustFromInt64(1)
	for i, userID := range winners {
		amt := base
		if int64(i) < remainder {
			amt = amount.Add(amt, unit)
		}
		payouts[userID] = amt
	}
	return payouts
}
