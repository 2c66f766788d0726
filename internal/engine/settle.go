package engine

import (
	"context"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/store"
)

// SettleOutcome is the response to a successful Settle (§6).
type SettleOutcome struct {
	SessionID            string
	Winners              []WinnerPayout
	PlatformFeeCollected amount.Amount
}

// WinnerPayout is one winner's payout in a SettleOutcome.
type WinnerPayout struct {
	UserID    string
	WinAmount amount.Amount
}

// Settle is §4.3.2.
func (e *Engine) Settle(ctx context.Context, sessionToken string, results []SettleResult) (*SettleOutcome, error) {
	claims, err := e.codec.Verify(sessionToken)
	if err != nil {
		return nil, err
	}

	session, err := e.sessions.Find(ctx, claims.SessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("session")
		}
		return nil, e.internalError("settle.find_session", err)
	}

	if err := checkSettleable(session); err != nil {
		return nil, err
	}
	if e.nowMillis() > session.ExpiresAt {
		return nil, apperr.New(apperr.CodeSessionExpired, "session expired before settlement")
	}
	if err := validateResultsCoverSession(session, results); err != nil {
		return nil, err
	}

	contract, err := e.catalog.FindContract(ctx, session.ContractID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("contract")
		}
		return nil, e.internalError("settle.find_contract", err)
	}

	platformFee, _, payouts, err := distribution(session.TotalPot, contract.PlatformFeeBps, results)
	if err != nil {
		return nil, err
	}

	userIDs := session.PlayerIDs()
	release := e.locks.AcquireSorted(userIDs)
	defer release()

	users, err := e.loadUsersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	winnerOrder := make([]string, 0, len(payouts))
	for _, r := range results {
		if r.IsWinner {
			winnerOrder = append(winnerOrder, r.PlayerID)
		}
	}

	err = e.db.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		postLose := make(map[string]*domain.User, len(users))
		for _, player := range session.Players {
			user := users[player.UserID]
			newBalance, subErr := amount.SubNonNegative(user.Balance, player.AmountLocked)
			if subErr != nil {
				return subErr
			}
			newLocked, subErr := amount.SubNonNegative(user.LockedBalance, player.AmountLocked)
			if subErr != nil {
				return subErr
			}
			updated := e.balances.UpdateBalanceInTx(tx, user, store.Balances{Balance: newBalance, Locked: newLocked})
			tx.AppendLedgerEntry(domain.LedgerEntry{
				EntryID:      e.newID(),
				UserID:       user.UserID,
				Type:         domain.LedgerLose,
				Amount:       player.AmountLocked,
				BalanceAfter: newBalance,
				SessionID:    session.SessionID,
				CreatedAt:    e.nowMillis(),
			})
			postLose[user.UserID] = updated
		}

		for _, userID := range winnerOrder {
			winAmount := payouts[userID]
			user := postLose[userID]
			newBalance := amount.Add(user.Balance, winAmount)
			e.balances.UpdateBalanceInTx(tx, user, store.Balances{Balance: newBalance, Locked: user.LockedBalance})
			tx.AppendLedgerEntry(domain.LedgerEntry{
				EntryID:      e.newID(),
				UserID:       userID,
				Type:         domain.LedgerWin,
				Amount:       winAmount,
				BalanceAfter: newBalance,
				SessionID:    session.SessionID,
				CreatedAt:    e.nowMillis(),
			})
		}

		if !platformFee.IsZero() {
			tx.AppendLedgerEntry(domain.LedgerEntry{
				EntryID:     e.newID(),
				UserID:      platformAccountID,
				Type:        domain.LedgerFee,
				Amount:      platformFee,
				SessionID:   session.SessionID,
				Description: "platform fee",
				CreatedAt:   e.nowMillis(),
			})
		}

		for i := range session.Players {
			if winAmount, ok := payouts[session.Players[i].UserID]; ok {
				session.Players[i].IsWinner = true
				session.Players[i].WinAmount = winAmount
			}
		}
		session.Status = domain.SessionSettled
		session.SettledAt = e.nowMillis()
		e.sessions.UpdateStatus(tx, session)
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*apperr.Error); ok {
			return nil, appErr
		}
		return nil, e.internalError("settle.commit", err)
	}

	winners := make([]WinnerPayout, 0, len(payouts))
	for _, userID := range winnerOrder {
		winners = append(winners, WinnerPayout{UserID: userID, WinAmount: payouts[userID]})
	}

	return &SettleOutcome{
		SessionID:            session.SessionID,
		Winners:              winners,
		PlatformFeeCollected: platformFee,
	}, nil
}

func (e *Engine) loadUsersByID(ctx context.Context, userIDs []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(userIDs))
	for _, id := range userIDs {
		user, err := e.balances.FindByID(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, apperr.NotFound("user")
			}
			return nil, e.internalError("load_users", err)
		}
		out[id] = user
	}
	return out, nil
}

// checkSettleable maps a session's status to §4.3.2 precondition 2's
// error codes. Shared with Cancel/Expire's analogous precondition.
func checkSettleable(session *domain.GameSession) error {
	switch session.Status {
	case domain.SessionPending, domain.SessionActive:
		return nil
	case domain.SessionSettled:
		return apperr.New(apperr.CodeAlreadySettled, "session already settled")
	default:
		return apperr.New(apperr.CodeInvalidState, "session is in a terminal, non-settleable state")
	}
}

// validateResultsCoverSession enforces §4.3.2 preconditions 4 and 5: set
// equality against the session's player set, and at least one winner.
func validateResultsCoverSession(session *domain.GameSession, results []SettleResult) error {
	expected := make(map[string]struct{}, len(session.Players))
	for _, p := range session.Players {
		expected[p.UserID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(results))
	anyWinner := false
	for _, r := range results {
		if _, ok := expected[r.PlayerID]; !ok {
			return apperr.Validation("settle results contain a player not in the session", map[string]any{"playerId": r.PlayerID})
		}
		if _, dup := seen[r.PlayerID]; dup {
			return apperr.Validation("duplicate player id in settle results", map[string]any{"playerId": r.PlayerID})
		}
		seen[r.PlayerID] = struct{}{}
		if r.IsWinner {
			anyWinner = true
		}
	}
	if len(seen) != len(expected) {
		return apperr.Validation("settle results must cover exactly the session's player set", nil)
	}
	if !anyWinner {
		return apperr.Validation("settle requires at least one winner", nil)
	}
	return nil
}
