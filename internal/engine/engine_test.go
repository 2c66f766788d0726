package engine_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/engine"
	"github.com/plutohub/hub/internal/store"
	"github.com/plutohub/hub/internal/store/redisstore"
	"github.com/plutohub/hub/internal/tokens"
)

type harness struct {
	store *redisstore.Store
	eng   *engine.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s, err := redisstore.NewFromClient(client, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	codec := tokens.NewCodec("test-secret")
	eng := engine.New(engine.Deps{
		DB:       s,
		Ledger:   s,
		Balances: s,
		Catalog:  s,
		Sessions: s,
		Codec:    codec,
	})
	return &harness{store: s, eng: eng}
}

func (h *harness) createUser(t *testing.T, authID string, balance int64) *domain.User {
	t.Helper()
	ctx := context.Background()
	user, err := h.store.CreateIfAbsent(ctx, authID, authID)
	if err != nil {
		t.Fatalf("create user %s: %v", authID, err)
	}
	if balance > 0 {
		expected := store.Balances{Balance: user.Balance, Locked: user.LockedBalance}
		newValues := store.Balances{Balance: amount.MustFromInt64(balance), Locked: amount.Zero()}
		updated, err := h.store.CompareAndUpdate(ctx, user.UserID, expected, newValues)
		if err != nil {
			t.Fatalf("seed balance for %s: %v", authID, err)
		}
		return updated
	}
	return user
}

func (h *harness) createContract(t *testing.T, entryFee int64, feeBps int64, minPlayers, maxPlayers int, ttlSeconds int64) *domain.Contract {
	t.Helper()
	ctx := context.Background()
	game := &domain.Game{GameID: "game-1", Name: "game-1", IsActive: true}
	_ = h.store.CreateGame(ctx, game)

	contract := &domain.Contract{
		ContractID:     "contract-1",
		GameID:         "game-1",
		Name:           "1v1",
		EntryFee:       amount.MustFromInt64(entryFee),
		PlatformFeeBps: feeBps,
		MinPlayers:     minPlayers,
		MaxPlayers:     maxPlayers,
		TTLSeconds:     ttlSeconds,
		IsActive:       true,
	}
	if err := h.store.CreateContract(ctx, contract); err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return contract
}

func TestS1HappyPathTwoPlayerMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.createUser(t, "a", 1000)
	h.createUser(t, "b", 1000)
	h.createContract(t, 100, 500, 2, 2, 3600)

	execResult, err := h.eng.Execute(ctx, "contract-1", []string{"a", "b"}, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if amount.Cmp(execResult.TotalPot, amount.MustFromInt64(200)) != 0 {
		t.Fatalf("expected totalPot 200, got %s", execResult.TotalPot)
	}

	userA, _ := h.store.FindByExternalAuthID(ctx, "a")
	if amount.Cmp(userA.Balance, amount.MustFromInt64(1000)) != 0 || amount.Cmp(userA.LockedBalance, amount.MustFromInt64(100)) != 0 {
		t.Fatalf("unexpected post-execute state for A: balance=%s locked=%s", userA.Balance, userA.LockedBalance)
	}

	outcome, err := h.eng.Settle(ctx, execResult.SessionToken, []engine.SettleResult{
		{PlayerID: userA.UserID, IsWinner: true},
		{PlayerID: mustUser(t, h, "b").UserID, IsWinner: false},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if amount.Cmp(outcome.PlatformFeeCollected, amount.MustFromInt64(10)) != 0 {
		t.Fatalf("expected fee 10, got %s", outcome.PlatformFeeCollected)
	}

	userA, _ = h.store.FindByID(ctx, userA.UserID)
	userB, _ := h.store.FindByID(ctx, mustUser(t, h, "b").UserID)
	if amount.Cmp(userA.Balance, amount.MustFromInt64(1090)) != 0 || !userA.LockedBalance.IsZero() {
		t.Fatalf("unexpected final state for A: balance=%s locked=%s", userA.Balance, userA.LockedBalance)
	}
	if amount.Cmp(userB.Balance, amount.MustFromInt64(900)) != 0 || !userB.LockedBalance.IsZero() {
		t.Fatalf("unexpected final state for B: balance=%s locked=%s", userB.Balance, userB.LockedBalance)
	}
}

func TestS2CancelRefundsExactly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.createUser(t, "a", 1000)
	h.createUser(t, "b", 1000)
	h.createContract(t, 100, 500, 2, 2, 3600)

	execResult, err := h.eng.Execute(ctx, "contract-1", []string{"a", "b"}, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if _, err := h.eng.Cancel(ctx, execResult.SessionToken, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	userA, _ := h.store.FindByExternalAuthID(ctx, "a")
	userB, _ := h.store.FindByExternalAuthID(ctx, "b")
	if amount.Cmp(userA.Balance, amount.MustFromInt64(1000)) != 0 || !userA.LockedBalance.IsZero() {
		t.Fatalf("A not refunded: balance=%s locked=%s", userA.Balance, userA.LockedBalance)
	}
	if amount.Cmp(userB.Balance, amount.MustFromInt64(1000)) != 0 || !userB.LockedBalance.IsZero() {
		t.Fatalf("B not refunded: balance=%s locked=%s", userB.Balance, userB.LockedBalance)
	}
}

func TestS4InsufficientFundsBlocksExecute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.createUser(t, "a", 1000)
	h.createUser(t, "c", 50)
	h.createContract(t, 100, 0, 2, 2, 3600)

	_, err := h.eng.Execute(ctx, "contract-1", []string{"a", "c"}, "")
	appErr, ok := err.(*apperr.Error)
	if !ok || appErr.Code != apperr.CodeInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}
}

func TestS5EvenSplitRemainder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.createUser(t, "a", 1000)
	h.createUser(t, "b", 1000)
	h.createUser(t, "c", 1000)
	h.createContract(t, 100, 0, 3, 3, 3600)

	execResult, err := h.eng.Execute(ctx, "contract-1", []string{"a", "b", "c"}, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	userA := mustUser(t, h, "a")
	userB := mustUser(t, h, "b")
	userC := mustUser(t, h, "c")

	outcome, err := h.eng.Settle(ctx, execResult.SessionToken, []engine.SettleResult{
		{PlayerID: userA.UserID, IsWinner: true},
		{PlayerID: userB.UserID, IsWinner: true},
		{PlayerID: userC.UserID, IsWinner: true},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	for _, w := range outcome.Winners {
		if amount.Cmp(w.WinAmount, amount.MustFromInt64(100)) != 0 {
			t.Fatalf("expected each winner to get 100, got %s for %s", w.WinAmount, w.UserID)
		}
	}
}

func TestS6DoubleSettleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.createUser(t, "a", 1000)
	h.createUser(t, "b", 1000)
	h.createContract(t, 100, 500, 2, 2, 3600)

	execResult, err := h.eng.Execute(ctx, "contract-1", []string{"a", "b"}, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	userA := mustUser(t, h, "a")
	userB := mustUser(t, h, "b")
	results := []engine.SettleResult{
		{PlayerID: userA.UserID, IsWinner: true},
		{PlayerID: userB.UserID, IsWinner: false},
	}
	if _, err := h.eng.Settle(ctx, execResult.SessionToken, results); err != nil {
		t.Fatalf("first settle: %v", err)
	}

	_, err = h.eng.Settle(ctx, execResult.SessionToken, results)
	appErr, ok := err.(*apperr.Error)
	if !ok || appErr.Code != apperr.CodeAlreadySettled {
		t.Fatalf("expected ALREADY_SETTLED on second settle, got %v", err)
	}
}

func TestS3ExpireBlocksLateSettle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.createUser(t, "a", 1000)
	h.createUser(t, "b", 1000)
	h.createContract(t, 100, 500, 2, 2, 1)

	execResult, err := h.eng.Execute(ctx, "contract-1", []string{"a", "b"}, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	session, err := h.store.Find(ctx, execResult.SessionID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	session.ExpiresAt = 1 // force it due for sweep
	if err := h.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		tx.SaveSession(session)
		return nil
	}); err != nil {
		t.Fatalf("backdate session expiry: %v", err)
	}

	if _, err := h.eng.Expire(ctx, execResult.SessionID); err != nil {
		t.Fatalf("expire: %v", err)
	}

	userA := mustUser(t, h, "a")
	userB := mustUser(t, h, "b")
	if amount.Cmp(userA.Balance, amount.MustFromInt64(1000)) != 0 || !userA.LockedBalance.IsZero() {
		t.Fatalf("A not refunded by expiry: balance=%s locked=%s", userA.Balance, userA.LockedBalance)
	}
	if amount.Cmp(userB.Balance, amount.MustFromInt64(1000)) != 0 || !userB.LockedBalance.IsZero() {
		t.Fatalf("B not refunded by expiry: balance=%s locked=%s", userB.Balance, userB.LockedBalance)
	}

	_, err = h.eng.Settle(ctx, execResult.SessionToken, []engine.SettleResult{
		{PlayerID: userA.UserID, IsWinner: true},
		{PlayerID: userB.UserID, IsWinner: false},
	})
	appErr, ok := err.(*apperr.Error)
	if !ok || appErr.Code != apperr.CodeInvalidState {
		t.Fatalf("expected INVALID_STATE on settle after expiry, got %v", err)
	}

	userA = mustUser(t, h, "a")
	userB = mustUser(t, h, "b")
	if amount.Cmp(userA.Balance, amount.MustFromInt64(1000)) != 0 || !userA.LockedBalance.IsZero() {
		t.Fatalf("A balance changed by rejected late settle: balance=%s locked=%s", userA.Balance, userA.LockedBalance)
	}
	if amount.Cmp(userB.Balance, amount.MustFromInt64(1000)) != 0 || !userB.LockedBalance.IsZero() {
		t.Fatalf("B balance changed by rejected late settle: balance=%s locked=%s", userB.Balance, userB.LockedBalance)
	}
}

func mustUser(t *testing.T, h *harness, authID string) *domain.User {
	t.Helper()
	user, err := h.store.FindByExternalAuthID(context.Background(), authID)
	if err != nil {
		t.Fatalf("find user %s: %v", authID, err)
	}
	return user
}
