// Package seed provides the minimal, non-HTTP Game/Contract bootstrapping
// SPEC_FULL.md calls for in place of the out-of-scope admin CRUD workflow
// (§1: "Admin developer-application workflow ... not hard engineering").
// It exists so local development and integration tests can exercise the
// core end to end without a real admin surface.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/store"
)

// Game is the result of registering a new game backend: the stored row
// plus the plaintext signing key, which is handed to the game backend
// exactly once and never persisted anywhere but Game.SigningKey.
type Game struct {
	Game       *domain.Game
	SigningKey string
}

// RegisterGame creates a Game row with a freshly generated signing key
// (§6's MAC key) and a bcrypt digest of it for later possession checks,
// mirroring how a developer-application workflow would issue credentials
// on registration.
func RegisterGame(ctx context.Context, catalog store.CatalogStore, name, callbackURL string) (*Game, error) {
	signingKey, err := randomSigningKey()
	if err != nil {
		return nil, fmt.Errorf("seed: generate signing key: %w", err)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(signingKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("seed: digest signing key: %w", err)
	}

	game := &domain.Game{
		GameID:             uuid.NewString(),
		Name:               name,
		SigningKey:         signingKey,
		ClientSecretDigest: string(digest),
		CallbackURL:        callbackURL,
		IsActive:           true,
		CreatedAt:          time.Now().UnixMilli(),
	}
	if err := catalog.CreateGame(ctx, game); err != nil {
		return nil, err
	}
	return &Game{Game: game, SigningKey: signingKey}, nil
}

// VerifySigningKey reports whether candidate matches the bcrypt digest
// recorded for game, for a developer re-proving possession of a key. The
// raw key is also stored on the game (SigningKey), since the MAC check
// needs it.
func VerifySigningKey(game *domain.Game, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(game.ClientSecretDigest), []byte(candidate)) == nil
}

// RegisterContract creates a Contract row for an already-registered game.
func RegisterContract(ctx context.Context, catalog store.CatalogStore, c domain.Contract) (*domain.Contract, error) {
	if c.ContractID == "" {
		c.ContractID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UnixMilli()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := catalog.CreateContract(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func randomSigningKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
