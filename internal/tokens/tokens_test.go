package tokens_test

import (
	"strings"
	"testing"
	"time"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/tokens"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	codec := tokens.NewCodec("test-secret")
	pot := amount.MustFromInt64(200)

	signed, err := codec.Mint("sess-1", "contract-1", []string{"a", "b"}, pot, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := codec.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.SessionID != "sess-1" || claims.ContractID != "contract-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TotalPot != "200" {
		t.Fatalf("expected totalPot \"200\", got %q", claims.TotalPot)
	}
	if len(claims.PlayerIDs) != 2 || claims.PlayerIDs[0] != "a" {
		t.Fatalf("unexpected player ids: %v", claims.PlayerIDs)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	codec := tokens.NewCodec("test-secret")
	signed, err := codec.Mint("sess-1", "contract-1", []string{"a"}, amount.MustFromInt64(100), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 token segments, got %d", len(parts))
	}

	tampered := parts[0] + "." + parts[1] + "x" + "." + parts[2]
	if _, err := codec.Verify(tampered); err == nil {
		t.Fatal("expected tampered body to fail verification")
	}

	wrongSecret := tokens.NewCodec("different-secret")
	if _, err := wrongSecret.Verify(signed); err == nil {
		t.Fatal("expected token signed with a different secret to fail verification")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec := tokens.NewCodec("test-secret")
	if _, err := codec.Verify("not-a-token"); err == nil {
		t.Fatal("expected garbage input to fail verification")
	}
}
