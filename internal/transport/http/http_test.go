package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/engine"
	"github.com/plutohub/hub/internal/identity"
	"github.com/plutohub/hub/internal/lobbysvc"
	"github.com/plutohub/hub/internal/store"
	"github.com/plutohub/hub/internal/store/redisstore"
	"github.com/plutohub/hub/internal/tokens"
	transporthttp "github.com/plutohub/hub/internal/transport/http"
)

type testHarness struct {
	store      *redisstore.Store
	router     *gin.Engine
	idVerifier *identity.JWTVerifier
	signingKey string
	gameID     string
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	eng := engine.New(engine.Deps{DB: s, Ledger: s, Balances: s, Catalog: s, Sessions: s, Codec: codec})

	hub := lobbysvc.NewHub()
	lobbyService := lobbysvc.NewService(s, s, s, hub)

	idVerifier := identity.NewJWTVerifier("identity-secret", "", "")

	ctx := context.Background()
	game := &domain.Game{GameID: "g1", Name: "g1", SigningKey: "shared-secret", IsActive: true}
	if err := s.CreateGame(ctx, game); err != nil {
		t.Fatalf("create game: %v", err)
	}
	contract := &domain.Contract{
		ContractID: "c1", GameID: "g1", Name: "1v1",
		EntryFee: amount.MustFromInt64(100), PlatformFeeBps: 500,
		MinPlayers: 2, MaxPlayers: 2, TTLSeconds: 3600, IsActive: true,
	}
	if err := s.CreateContract(ctx, contract); err != nil {
		t.Fatalf("create contract: %v", err)
	}

	router := transporthttp.NewRouter(transporthttp.Deps{
		Engine: eng, Lobby: lobbyService, Hub: hub,
		Balances: s, Ledger: s, Catalog: s, Identity: idVerifier,
	})

	return &testHarness{store: s, router: router, idVerifier: idVerifier, signingKey: "shared-secret", gameID: "g1"}
}

// createFundedUser creates a user and seeds its balance so the entry-fee
// checks of Execute and lobby Join pass.
func (h *testHarness) createFundedUser(t *testing.T, externalAuthID, displayName string, balance int64) {
	t.Helper()
	ctx := context.Background()
	user, err := h.store.CreateIfAbsent(ctx, externalAuthID, displayName)
	if err != nil {
		t.Fatalf("create user %s: %v", externalAuthID, err)
	}
	expected := store.Balances{Balance: user.Balance, Locked: user.LockedBalance}
	newValues := store.Balances{Balance: amount.MustFromInt64(balance), Locked: amount.Zero()}
	if _, err := h.store.CompareAndUpdate(ctx, user.UserID, expected, newValues); err != nil {
		t.Fatalf("fund user %s: %v", externalAuthID, err)
	}
}

func (h *testHarness) signedRequest(t *testing.T, method, path string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	mac := hmac.New(sha256.New, []byte(h.signingKey))
	mac.Write(body)
	req.Header.Set("X-Game-Id", h.gameID)
	req.Header.Set("X-Pluto-Signature", hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (h *testHarness) bearerRequest(t *testing.T, externalAuthID, method, path string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	token, err := h.idVerifier.Issue(externalAuthID, time.Hour)
	if err != nil {
		t.Fatalf("issue bearer token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestExecuteWithValidMACSucceeds(t *testing.T) {
	h := newTestHarness(t)
	h.createFundedUser(t, "a", "alice", 1000)
	h.createFundedUser(t, "b", "bob", 1000)

	body, _ := json.Marshal(map[string]any{"contractId": "c1", "playerIds": []string{"a", "b"}})
	req := h.signedRequest(t, http.MethodPost, "/v1/contracts/execute", body)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		SessionID    string `json:"sessionId"`
		SessionToken string `json:"sessionToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" || resp.SessionToken == "" {
		t.Fatalf("expected sessionId and sessionToken, got %+v", resp)
	}
}

func TestExecuteWithBadSignatureRejected(t *testing.T) {
	h := newTestHarness(t)
	body, _ := json.Marshal(map[string]any{"contractId": "c1", "playerIds": []string{"a", "b"}})
	req := httptest.NewRequest(http.MethodPost, "/v1/contracts/execute", bytes.NewReader(body))
	req.Header.Set("X-Game-Id", h.gameID)
	req.Header.Set("X-Pluto-Signature", "00")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetBalanceRequiresBearer(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/me/balance", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGetBalanceWithBearerSucceeds(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	if _, err := h.store.CreateIfAbsent(ctx, "a", "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	req := h.bearerRequest(t, "a", http.MethodGet, "/v1/me/balance", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Balance          string `json:"balance"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Balance != "0" || resp.AvailableBalance != "0" {
		t.Fatalf("expected zero balances for a fresh user, got %+v", resp)
	}
}

func TestLobbyJoinAndStatus(t *testing.T) {
	h := newTestHarness(t)
	h.createFundedUser(t, "a", "alice", 1000)

	body, _ := json.Marshal(map[string]any{"contractId": "c1"})
	req := h.bearerRequest(t, "a", http.MethodPost, "/v1/lobby/join", body)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var joinResp struct {
		LobbyID string `json:"lobbyId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &joinResp); err != nil {
		t.Fatalf("decode join response: %v", err)
	}

	statusRec := httptest.NewRecorder()
	statusReq := httptest.NewRequest(http.MethodGet, "/v1/lobbies/"+joinResp.LobbyID+"/status", nil)
	h.router.ServeHTTP(statusRec, statusReq)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200 status, got %d: %s", statusRec.Code, statusRec.Body.String())
	}
}
