package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/plutohub/hub/internal/domain"
)

// entryScore is the per-user sorted-set score: createdAt in unix millis,
// which a float64 holds exactly. Redis orders members with equal scores
// lexicographically, so entries sharing a millisecond are ordered by
// EntryID, giving the "createdAt then entryId" ordering of §4.1 History.
func entryScore(entry domain.LedgerEntry) float64 {
	return float64(entry.CreatedAt)
}

func queueLedgerEntryWrites(pipe redis.Pipeliner, entry domain.LedgerEntry) {
	ctx := context.Background()
	data, _ := json.Marshal(entry)

	pipe.Set(ctx, fmt.Sprintf(keyLedgerEntry, entry.EntryID), data, ttlLedger)
	pipe.ZAdd(ctx, fmt.Sprintf(keyLedgerByUser, entry.UserID), redis.Z{
		Score:  entryScore(entry),
		Member: entry.EntryID,
	})
	if entry.SessionID != "" {
		pipe.RPush(ctx, fmt.Sprintf(keyLedgerBySession, entry.SessionID), entry.EntryID)
	}
}

// Append inserts a single immutable row outside of any caller transaction.
func (s *Store) Append(ctx context.Context, entry domain.LedgerEntry) (string, error) {
	if entry.EntryID == "" {
		entry.EntryID = s.ids.Generate().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = nowMillis()
	}

	pipe := s.client.TxPipeline()
	queueLedgerEntryWrites(pipe, entry)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("redisstore: append ledger entry: %w", err)
	}
	return entry.EntryID, nil
}

// AppendMany inserts a batch atomically (all-or-nothing).
func (s *Store) AppendMany(ctx context.Context, entries []domain.LedgerEntry) error {
	pipe := s.client.TxPipeline()
	for i := range entries {
		if entries[i].EntryID == "" {
			entries[i].EntryID = s.ids.Generate().String()
		}
		if entries[i].CreatedAt == 0 {
			entries[i].CreatedAt = nowMillis()
		}
		queueLedgerEntryWrites(pipe, entries[i])
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: append many ledger entries: %w", err)
	}
	return nil
}

// History returns rows for userID ordered by createdAt descending, stable
// tiebreak by entryId, plus the total row count.
func (s *Store) History(ctx context.Context, userID string, limit, offset int) ([]domain.LedgerEntry, int, error) {
	key := fmt.Sprintf(keyLedgerByUser, userID)

	total, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redisstore: ledger history count: %w", err)
	}
	if total == 0 {
		return []domain.LedgerEntry{}, 0, nil
	}

	start := int64(offset)
	stop := start + int64(limit) - 1
	ids, err := s.client.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redisstore: ledger history range: %w", err)
	}

	entries, err := s.getLedgerEntries(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	// ZRevRange + entryId tiebreak: entries sharing a createdAt score are
	// returned in reverse lexicographic EntryID order — stable and
	// deterministic across calls.
	return entries, int(total), nil
}

// BySession returns rows referencing sessionID ordered by createdAt
// ascending (the order they were appended in).
func (s *Store) BySession(ctx context.Context, sessionID string) ([]domain.LedgerEntry, error) {
	ids, err := s.client.LRange(ctx, fmt.Sprintf(keyLedgerBySession, sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: ledger by session: %w", err)
	}
	return s.getLedgerEntries(ctx, ids)
}

func (s *Store) getLedgerEntries(ctx context.Context, ids []string) ([]domain.LedgerEntry, error) {
	if len(ids) == 0 {
		return []domain.LedgerEntry{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(keyLedgerEntry, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redisstore: get ledger entries: %w", err)
	}

	entries := make([]domain.LedgerEntry, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue // evicted/missing row; skip rather than fail the whole page
		}
		var entry domain.LedgerEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
