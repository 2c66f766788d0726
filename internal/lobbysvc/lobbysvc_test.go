package lobbysvc_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/lobbysvc"
	"github.com/plutohub/hub/internal/store"
	"github.com/plutohub/hub/internal/store/redisstore"
)

// fund seeds a freshly created user's balance so Join's available-balance
// precheck passes for a paid contract.
func fund(t *testing.T, s *redisstore.Store, user *domain.User, balance int64) {
	t.Helper()
	expected := store.Balances{Balance: user.Balance, Locked: user.LockedBalance}
	newValues := store.Balances{Balance: amount.MustFromInt64(balance), Locked: amount.Zero()}
	if _, err := s.CompareAndUpdate(context.Background(), user.UserID, expected, newValues); err != nil {
		t.Fatalf("fund %s: %v", user.UserID, err)
	}
}

func newTestService(t *testing.T) (*lobbysvc.Service, *redisstore.Store) {
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

	hub := lobbysvc.NewHub()
	svc := lobbysvc.NewService(s, s, s, hub)
	return svc, s
}

func TestJoinFillsLobbyAndTransitionsToStarting(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	game := &domain.Game{GameID: "g1", Name: "g1", IsActive: true}
	_ = s.CreateGame(ctx, game)
	contract := &domain.Contract{
		ContractID: "c1", GameID: "g1", Name: "1v1",
		EntryFee: amount.MustFromInt64(100), MinPlayers: 2, MaxPlayers: 2, TTLSeconds: 60, IsActive: true,
	}
	if err := s.CreateContract(ctx, contract); err != nil {
		t.Fatalf("create contract: %v", err)
	}

	userA, _ := s.CreateIfAbsent(ctx, "a", "alice")
	userB, _ := s.CreateIfAbsent(ctx, "b", "bob")
	fund(t, s, userA, 1000)
	fund(t, s, userB, 1000)

	lobby1, err := svc.Join(ctx, userA.UserID, "c1")
	if err != nil {
		t.Fatalf("join A: %v", err)
	}
	if lobby1.Status != domain.LobbyWaiting {
		t.Fatalf("expected WAITING, got %s", lobby1.Status)
	}

	lobby2, err := svc.Join(ctx, userB.UserID, "c1")
	if err != nil {
		t.Fatalf("join B: %v", err)
	}
	if lobby2.Status != domain.LobbyStarting {
		t.Fatalf("expected STARTING once full, got %s", lobby2.Status)
	}
	if lobby1.LobbyID != lobby2.LobbyID {
		t.Fatal("expected both players in the same lobby")
	}
}

func TestJoinRejectsAlreadyInLobby(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	game := &domain.Game{GameID: "g1", Name: "g1", IsActive: true}
	_ = s.CreateGame(ctx, game)
	contract := &domain.Contract{
		ContractID: "c1", GameID: "g1", Name: "1v1",
		EntryFee: amount.MustFromInt64(100), MinPlayers: 2, MaxPlayers: 3, TTLSeconds: 60, IsActive: true,
	}
	_ = s.CreateContract(ctx, contract)

	userA, _ := s.CreateIfAbsent(ctx, "a", "alice")
	fund(t, s, userA, 1000)
	if _, err := svc.Join(ctx, userA.UserID, "c1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	_, err := svc.Join(ctx, userA.UserID, "c1")
	appErr, ok := err.(*apperr.Error)
	if !ok || appErr.Code != apperr.CodeAlreadyInLobby {
		t.Fatalf("expected ALREADY_IN_LOBBY, got %v", err)
	}
}

func TestLeaveClosesEmptyLobby(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	game := &domain.Game{GameID: "g1", Name: "g1", IsActive: true}
	_ = s.CreateGame(ctx, game)
	contract := &domain.Contract{
		ContractID: "c1", GameID: "g1", Name: "1v1",
		EntryFee: amount.MustFromInt64(100), MinPlayers: 2, MaxPlayers: 2, TTLSeconds: 60, IsActive: true,
	}
	_ = s.CreateContract(ctx, contract)

	userA, _ := s.CreateIfAbsent(ctx, "a", "alice")
	fund(t, s, userA, 1000)
	if _, err := svc.Join(ctx, userA.UserID, "c1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	lobby, err := svc.Leave(ctx, userA.UserID)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if lobby.Status != domain.LobbyClosed {
		t.Fatalf("expected CLOSED, got %s", lobby.Status)
	}

	if _, err := svc.Leave(ctx, userA.UserID); err == nil {
		t.Fatal("expected leaving again to fail with NOT_FOUND")
	}
}

func TestHubBroadcastDeliversToSubscriber(t *testing.T) {
	hub := lobbysvc.NewHub()
	frames, unsubscribe := hub.Subscribe("lobby-1")
	defer unsubscribe()

	hub.Broadcast("lobby-1", lobbysvc.Event{Type: lobbysvc.EventPlayerJoined, PlayerID: "a"})

	select {
	case frame := <-frames:
		if len(frame) == 0 {
			t.Fatal("expected a non-empty SSE frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast frame")
	}
}
