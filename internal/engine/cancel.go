package engine

import (
	"context"
	"fmt"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/store"
)

// CancelOutcome is the response to a successful Cancel or Expire (§6).
type CancelOutcome struct {
	SessionID       string
	RefundedPlayers []string
}

// Cancel is §4.3.3.
func (e *Engine) Cancel(ctx context.Context, sessionToken string, reason string) (*CancelOutcome, error) {
	claims, err := e.codec.Verify(sessionToken)
	if err != nil {
		return nil, err
	}

	session, err := e.sessions.Find(ctx, claims.SessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("session")
		}
		return nil, e.internalError("cancel.find_session", err)
	}

	if err := checkSettleable(session); err != nil {
		return nil, err
	}

	description := "cancelled"
	if reason != "" {
		description = fmt.Sprintf("cancelled: %s", reason)
	}
	return e.refund(ctx, session, domain.SessionCancelled, description)
}

// Expire is §4.3.4, driven by C10's sweeper. It operates directly on a
// session the sweeper already loaded via FindExpirable, rather than a
// token, since the sweeper has no caller to hand one to.
func (e *Engine) Expire(ctx context.Context, sessionID string) (*CancelOutcome, error) {
	session, err := e.sessions.Find(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("session")
		}
		return nil, e.internalError("expire.find_session", err)
	}

	if err := checkSettleable(session); err != nil {
		// Already terminal (possibly settled by the time the sweeper got
		// to it, or already expired by a prior sweep tick); nothing to do.
		return nil, err
	}
	if e.nowMillis() <= session.ExpiresAt {
		return nil, apperr.New(apperr.CodeInvalidState, "session has not yet expired")
	}

	return e.refund(ctx, session, domain.SessionExpired, "expired")
}

// refund implements the shared LOCK-reversal effect of Cancel (§4.3.3) and
// Expire (§4.3.4): UNLOCK each player's stake, total balance unchanged,
// set the given terminal status. No fee is charged.
func (e *Engine) refund(ctx context.Context, session *domain.GameSession, terminalStatus domain.SessionStatus, description string) (*CancelOutcome, error) {
	userIDs := session.PlayerIDs()
	release := e.locks.AcquireSorted(userIDs)
	defer release()

	users, err := e.loadUsersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	err = e.db.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, player := range session.Players {
			user := users[player.UserID]
			newLocked, subErr := amount.SubNonNegative(user.LockedBalance, player.AmountLocked)
			if subErr != nil {
				return subErr
			}
			e.balances.UpdateBalanceInTx(tx, user, store.Balances{Balance: user.Balance, Locked: newLocked})
			tx.AppendLedgerEntry(domain.LedgerEntry{
				EntryID:      e.newID(),
				UserID:       user.UserID,
				Type:         domain.LedgerUnlock,
				Amount:       player.AmountLocked,
				BalanceAfter: user.Balance,
				SessionID:    session.SessionID,
				Description:  description,
				CreatedAt:    e.nowMillis(),
			})
		}

		session.Status = terminalStatus
		e.sessions.UpdateStatus(tx, session)
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*apperr.Error); ok {
			return nil, appErr
		}
		return nil, e.internalError("refund.commit", err)
	}

	return &CancelOutcome{SessionID: session.SessionID, RefundedPlayers: userIDs}, nil
}
