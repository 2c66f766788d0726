package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/store"
)

// gameRow is the stored form of a Game. domain.Game hides SigningKey and
// ClientSecretDigest from JSON so they never reach an API response; the
// row carries them explicitly so FindGame returns them to GameAuth.
type gameRow struct {
	domain.Game
	SigningKey         string `json:"signingKey"`
	ClientSecretDigest string `json:"clientSecretDigest"`
}

// CreateGame inserts an immutable-after-creation Game row (C5), reserving
// its name the same way CreateIfAbsent reserves a display name.
func (s *Store) CreateGame(ctx context.Context, game *domain.Game) error {
	nameKey := fmt.Sprintf(keyGameByName, game.Name)
	ok, err := s.client.SetNX(ctx, nameKey, game.GameID, 0).Result()
	if err != nil {
		return fmt.Errorf("redisstore: reserve game name: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: game name %q", store.ErrAlreadyExists, game.Name)
	}

	data, _ := json.Marshal(gameRow{Game: *game, SigningKey: game.SigningKey, ClientSecretDigest: game.ClientSecretDigest})
	if err := s.client.Set(ctx, fmt.Sprintf(keyGame, game.GameID), data, ttlUser).Err(); err != nil {
		return fmt.Errorf("redisstore: create game: %w", err)
	}
	return nil
}

func (s *Store) FindGame(ctx context.Context, gameID string) (*domain.Game, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyGame, gameID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: find game: %w", err)
	}
	var row gameRow
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal game: %w", err)
	}
	game := row.Game
	game.SigningKey = row.SigningKey
	game.ClientSecretDigest = row.ClientSecretDigest
	return &game, nil
}

func (s *Store) FindGameByName(ctx context.Context, name string) (*domain.Game, error) {
	gameID, err := s.client.Get(ctx, fmt.Sprintf(keyGameByName, name)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: find game by name: %w", err)
	}
	return s.FindGame(ctx, gameID)
}

// CreateContract inserts an immutable-after-creation Contract row and
// indexes it under its owning game for ListContracts.
func (s *Store) CreateContract(ctx context.Context, contract *domain.Contract) error {
	data, _ := json.Marshal(contract)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(keyContract, contract.ContractID), data, ttlUser)
	pipe.SAdd(ctx, fmt.Sprintf(keyContractsByGame, contract.GameID), contract.ContractID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: create contract: %w", err)
	}
	return nil
}

func (s *Store) FindContract(ctx context.Context, contractID string) (*domain.Contract, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyContract, contractID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: find contract: %w", err)
	}
	var contract domain.Contract
	if err := json.Unmarshal([]byte(data), &contract); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal contract: %w", err)
	}
	return &contract, nil
}

func (s *Store) ListContracts(ctx context.Context, gameID string) ([]*domain.Contract, error) {
	ids, err := s.client.SMembers(ctx, fmt.Sprintf(keyContractsByGame, gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list contracts: %w", err)
	}
	contracts := make([]*domain.Contract, 0, len(ids))
	for _, id := range ids {
		contract, err := s.FindContract(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}
