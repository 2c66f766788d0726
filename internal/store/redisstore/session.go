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

// queueSessionWrite overwrites a session row and keeps the expiry zset
// (C10's sweep index) in sync: membership while non-terminal, removed once
// the session reaches a terminal status (§4.3, §4.4).
func queueSessionWrite(pipe redis.Pipeliner, session *domain.GameSession) {
	ctx := context.Background()
	data, _ := json.Marshal(session)
	key := fmt.Sprintf(keySession, session.SessionID)

	pipe.Set(ctx, key, data, ttlSession)
	if session.Status.IsTerminal() {
		pipe.ZRem(ctx, keySessionsExpiry, session.SessionID)
	} else {
		pipe.ZAdd(ctx, keySessionsExpiry, redis.Z{
			Score:  float64(session.ExpiresAt),
			Member: session.SessionID,
		})
	}
}

func (s *Store) Create(tx store.Tx, session *domain.GameSession) {
	tx.SaveSession(session)
}

func (s *Store) UpdateStatus(tx store.Tx, session *domain.GameSession) {
	tx.SaveSession(session)
}

func (s *Store) Find(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keySession, sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: find session: %w", err)
	}
	var session domain.GameSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal session: %w", err)
	}
	return &session, nil
}

// FindExpirable returns sessions due for C10's sweep: non-terminal and
// past expiresAt as of nowMillis.
func (s *Store) FindExpirable(ctx context.Context, nowMillis int64, limit int) ([]*domain.GameSession, error) {
	ids, err := s.client.ZRangeByScore(ctx, keySessionsExpiry, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("(%d", nowMillis),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: find expirable sessions: %w", err)
	}

	sessions := make([]*domain.GameSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.Find(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Row vanished (shouldn't happen in practice); drop it
				// from the expiry index so the sweep doesn't loop on it.
				s.client.ZRem(ctx, keySessionsExpiry, id)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *Store) IdempotencyLookup(ctx context.Context, key string) (string, bool, error) {
	sessionID, err := s.client.Get(ctx, fmt.Sprintf(keyIdempotency, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisstore: idempotency lookup: %w", err)
	}
	return sessionID, true, nil
}

func (s *Store) StoreIdempotency(ctx context.Context, key, sessionID string) error {
	if err := s.client.SetNX(ctx, fmt.Sprintf(keyIdempotency, key), sessionID, ttlIdemKey).Err(); err != nil {
		return fmt.Errorf("redisstore: store idempotency key: %w", err)
	}
	return nil
}
