package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/store"
)

func queueUserWrite(pipe redis.Pipeliner, user *domain.User) {
	ctx := context.Background()
	data, _ := json.Marshal(user)
	pipe.Set(ctx, fmt.Sprintf(keyUser, user.UserID), data, ttlUser)
}

func (s *Store) getUser(ctx context.Context, userID string) (*domain.User, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyUser, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get user: %w", err)
	}
	var user domain.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal user: %w", err)
	}
	return &user, nil
}

func (s *Store) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUser(ctx, userID)
}

func (s *Store) FindByIDs(ctx context.Context, userIDs []string) ([]*domain.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(keyUser, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redisstore: find users by ids: %w", err)
	}
	users := make([]*domain.User, 0, len(userIDs))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var user domain.User
		if err := json.Unmarshal([]byte(data), &user); err != nil {
			continue
		}
		users = append(users, &user)
	}
	return users, nil
}

func (s *Store) FindByExternalAuthID(ctx context.Context, externalAuthID string) (*domain.User, error) {
	userID, err := s.client.Get(ctx, fmt.Sprintf(keyUserByExternalAuth, externalAuthID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: find user by external auth: %w", err)
	}
	return s.getUser(ctx, userID)
}

// CreateIfAbsent mirrors the teacher's "get or create on first login"
// pattern (models.User / services RedisService user bootstrap), guarded by
// SETNX on the external-auth index so two concurrent first logins for the
// same identity never create two rows.
func (s *Store) CreateIfAbsent(ctx context.Context, externalAuthID, displayName string) (*domain.User, error) {
	if existing, err := s.FindByExternalAuthID(ctx, externalAuthID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	userID := s.ids.Generate().String()
	now := nowMillis()
	user := &domain.User{
		UserID:         userID,
		ExternalAuthID: externalAuthID,
		DisplayName:    displayName,
		Balance:        amount.Zero(),
		LockedBalance:  amount.Zero(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	nameKey := fmt.Sprintf(keyUserByDisplayName, strings.ToLower(displayName))
	ok, err := s.client.SetNX(ctx, nameKey, userID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: reserve display name: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: display name %q", store.ErrAlreadyExists, displayName)
	}

	authOK, err := s.client.SetNX(ctx, fmt.Sprintf(keyUserByExternalAuth, externalAuthID), userID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: reserve external auth id: %w", err)
	}
	if !authOK {
		// Lost a race with another CreateIfAbsent for the same identity;
		// release the display-name reservation and return the winner's row.
		s.client.Del(ctx, nameKey)
		return s.FindByExternalAuthID(ctx, externalAuthID)
	}

	data, _ := json.Marshal(user)
	if err := s.client.Set(ctx, fmt.Sprintf(keyUser, userID), data, ttlUser).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: create user: %w", err)
	}
	return user, nil
}

// CompareAndUpdate implements the WATCH/MULTI optimistic-concurrency path
// (§4.1): it re-reads the row inside a Redis transaction function and
// aborts with store.ErrConcurrencyConflict if expected no longer matches.
func (s *Store) CompareAndUpdate(ctx context.Context, userID string, expected, newValues store.Balances) (*domain.User, error) {
	userKey := fmt.Sprintf(keyUser, userID)
	var updated *domain.User

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, userKey).Result()
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		var current domain.User
		if err := json.Unmarshal([]byte(data), &current); err != nil {
			return err
		}
		if amount.Cmp(current.Balance, expected.Balance) != 0 || amount.Cmp(current.LockedBalance, expected.Locked) != 0 {
			return store.ErrConcurrencyConflict
		}

		current.Balance = newValues.Balance
		current.LockedBalance = newValues.Locked
		current.UpdatedAt = nowMillis()
		if err := current.CheckInvariants(); err != nil {
			return err
		}
		updated = &current
		newData, _ := json.Marshal(current)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey, newData, ttlUser)
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txf, userKey); err != nil {
		if errors.Is(err, store.ErrConcurrencyConflict) || errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if errors.Is(err, redis.TxFailedErr) {
			return nil, store.ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("redisstore: compare and update: %w", err)
	}
	return updated, nil
}

// UpdateBalanceInTx performs an unconditional write participating in an
// already-open store.Tx; the caller (internal/engine) holds a rowlock for
// userID for the duration of the surrounding operation, so no optimistic
// check is needed here (§4.1). It panics if the new values violate
// CheckInvariants: §4.1 requires invariants enforced at every write, and a
// violation here means the engine computed a bad balance pair, which is a
// programmer error, not a recoverable one.
func (s *Store) UpdateBalanceInTx(tx store.Tx, base *domain.User, newValues store.Balances) *domain.User {
	updated := *base
	updated.Balance = newValues.Balance
	updated.LockedBalance = newValues.Locked
	updated.UpdatedAt = nowMillis()
	if err := updated.CheckInvariants(); err != nil {
		panic(fmt.Sprintf("redisstore: UpdateBalanceInTx: %v", err))
	}
	tx.SetBalance(&updated)
	return &updated
}
