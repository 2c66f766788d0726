// Package engine implements C7, the contract engine: Execute, Settle,
// Cancel and Expire, orchestrating C2 (ledger), C3 (balances), C5
// (catalog), C6 (sessions) and C4 (session tokens) atomically. It is the
// largest single module in the system (§2).
//
// Grounded on the teacher's services.GameEngine: a plain struct holding
// its store dependencies, validating inputs before any mutation, and
// delegating persistence to an injected service layer rather than
// embedding storage logic directly.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/store"
	"github.com/plutohub/hub/internal/store/rowlock"
	"github.com/plutohub/hub/internal/tokens"
)

// platformAccountID is the pseudo-account FEE ledger entries are recorded
// against (§4.2: "a dedicated platform account").
const platformAccountID = "platform"

// Engine is C7. One instance is shared across all request handlers; it
// holds no per-request state beyond the row lock.
type Engine struct {
	db       store.Database
	ledger   store.LedgerStore
	balances store.BalanceStore
	catalog  store.CatalogStore
	sessions store.SessionStore
	codec    *tokens.Codec
	locks    *rowlock.Locker
	logger   *zap.Logger

	newID func() string
	now   func() time.Time
}

// Deps bundles the store capabilities the engine orchestrates, per the
// design note (§9): "the contract engine is a plain module that receives
// those capabilities plus the token codec."
type Deps struct {
	DB       store.Database
	Ledger   store.LedgerStore
	Balances store.BalanceStore
	Catalog  store.CatalogStore
	Sessions store.SessionStore
	Codec    *tokens.Codec
	Logger   *zap.Logger
}

func New(deps Deps) *Engine {
	return &Engine{
		db:       deps.DB,
		ledger:   deps.Ledger,
		balances: deps.Balances,
		catalog:  deps.Catalog,
		sessions: deps.Sessions,
		codec:    deps.Codec,
		locks:    rowlock.New(),
		logger:   deps.Logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

// internalError logs an infrastructure failure with a correlation id and
// returns the opaque error the client sees (§7's propagation policy).
func (e *Engine) internalError(op string, err error) *apperr.Error {
	correlationID := e.newID()
	if e.logger != nil {
		e.logger.Error("engine: internal error", zap.String("op", op), zap.String("correlationId", correlationID), zap.Error(err))
	}
	return apperr.Internal(correlationID)
}

// ExecuteResult is the response to a successful Execute (§6).
type ExecuteResult struct {
	SessionID    string
	SessionToken string
	Players      []PlayerLock
	TotalPot     amount.Amount
	ExpiresAt    int64
}

// PlayerLock describes one player's locked stake in an ExecuteResult.
type PlayerLock struct {
	UserID       string
	AmountLocked amount.Amount
}

// Execute is §4.3.1. idempotencyKey, if non-empty, makes repeated calls
// with the same key return the original session instead of creating a
// second one (SPEC_FULL.md supplement, grounded on tyemirov-ledger's
// IdempotencyKey column).
func (e *Engine) Execute(ctx context.Context, contractID string, externalAuthIDs []string, idempotencyKey string) (*ExecuteResult, error) {
	if idempotencyKey != "" {
		if sessionID, found, err := e.sessions.IdempotencyLookup(ctx, idempotencyKey); err != nil {
			return nil, e.internalError("execute.idempotency_lookup", err)
		} else if found {
			return e.rebuildExecuteResult(ctx, sessionID)
		}
	}

	if err := rejectDuplicates(externalAuthIDs); err != nil {
		return nil, err
	}

	contract, err := e.catalog.FindContract(ctx, contractID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("contract")
		}
		return nil, e.internalError("execute.find_contract", err)
	}
	if !contract.IsActive {
		return nil, apperr.New(apperr.CodeGameNotActive, "contract is not active")
	}

	n := len(externalAuthIDs)
	if n < contract.MinPlayers || n > contract.MaxPlayers {
		return nil, apperr.Validation("player count out of contract bounds", map[string]any{
			"minPlayers": contract.MinPlayers,
			"maxPlayers": contract.MaxPlayers,
			"got":        n,
		})
	}

	users := make([]*domain.User, 0, n)
	for _, authID := range externalAuthIDs {
		user, err := e.balances.FindByExternalAuthID(ctx, authID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, apperr.NotFound("user")
			}
			return nil, e.internalError("execute.find_user", err)
		}
		users = append(users, user)
	}

	for _, user := range users {
		if amount.LessThan(user.AvailableBalance(), contract.EntryFee) {
			return nil, apperr.InsufficientFunds(contract.EntryFee.String(), user.AvailableBalance().String())
		}
	}

	userIDs := make([]string, n)
	for i, user := range users {
		userIDs[i] = user.UserID
	}
	release := e.locks.AcquireSorted(userIDs)
	defer release()

	totalPot := amount.MulInt(contract.EntryFee, n)
	session := &domain.GameSession{
		SessionID:  e.newID(),
		ContractID: contractID,
		Status:     domain.SessionPending,
		TotalPot:   totalPot,
		Players:    make([]domain.SessionPlayer, n),
		ExpiresAt:  e.nowMillis() + contract.TTLSeconds*1000,
		CreatedAt:  e.nowMillis(),
	}
	for i, user := range users {
		session.Players[i] = domain.SessionPlayer{UserID: user.UserID, AmountLocked: contract.EntryFee}
	}

	err = e.db.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		e.sessions.Create(tx, session)

		for _, user := range users {
			newLocked := amount.Add(user.LockedBalance, contract.EntryFee)
			e.balances.UpdateBalanceInTx(tx, user, store.Balances{Balance: user.Balance, Locked: newLocked})
			tx.AppendLedgerEntry(domain.LedgerEntry{
				EntryID:      e.newID(),
				UserID:       user.UserID,
				Type:         domain.LedgerLock,
				Amount:       contract.EntryFee,
				BalanceAfter: user.Balance,
				SessionID:    session.SessionID,
				CreatedAt:    e.nowMillis(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, e.internalError("execute.commit", err)
	}

	if idempotencyKey != "" {
		if err := e.sessions.StoreIdempotency(ctx, idempotencyKey, session.SessionID); err != nil {
			// Best-effort: the session is already committed; losing this
			// index only means a retried request with the same key will
			// create a second session rather than replay this one.
			if e.logger != nil {
				e.logger.Warn("engine: failed to store idempotency key", zap.Error(err))
			}
		}
	}

	token, err := e.codec.Mint(session.SessionID, contractID, userIDs, totalPot, time.UnixMilli(session.ExpiresAt))
	if err != nil {
		return nil, e.internalError("execute.mint_token", err)
	}

	return &ExecuteResult{
		SessionID:    session.SessionID,
		SessionToken: token,
		Players:      playerLocks(session.Players),
		TotalPot:     totalPot,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

func (e *Engine) rebuildExecuteResult(ctx context.Context, sessionID string) (*ExecuteResult, error) {
	session, err := e.sessions.Find(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("session")
		}
		return nil, e.internalError("execute.rebuild", err)
	}
	token, err := e.codec.Mint(session.SessionID, session.ContractID, session.PlayerIDs(), session.TotalPot, time.UnixMilli(session.ExpiresAt))
	if err != nil {
		return nil, e.internalError("execute.rebuild_mint", err)
	}
	return &ExecuteResult{
		SessionID:    session.SessionID,
		SessionToken: token,
		Players:      playerLocks(session.Players),
		TotalPot:     session.TotalPot,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

func playerLocks(players []domain.SessionPlayer) []PlayerLock {
	out := make([]PlayerLock, len(players))
	for i, p := range players {
		out[i] = PlayerLock{UserID: p.UserID, AmountLocked: p.AmountLocked}
	}
	return out
}

func rejectDuplicates(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return apperr.Validation("duplicate player id", map[string]any{"playerId": id})
		}
		seen[id] = struct{}{}
	}
	return nil
}
