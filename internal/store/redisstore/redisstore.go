package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/store"
	"github.com/plutohub/hub/internal/store/rowlock"
)

// Store is the Redis-backed implementation of every store capability
// (C2, C3, C5, C6, C8). Construct one per process; it is safe for
// concurrent use.
type Store struct {
	client *redis.Client
	logger *zap.Logger
	ids    *snowflake.Node

	// lobbyJoinLock serializes FindOrCreateWaiting per contractID within
	// this process so two concurrent joiners never both claim the same
	// last open slot. It is an in-process lock only: joiners in different
	// processes are not serialized, and the TxPipeline commit that follows
	// only makes each join's own writes atomic.
	lobbyJoinLock *rowlock.Locker
}

// Options configures a new Store.
type Options struct {
	Addr     string
	Password string
	DB       int

	// SnowflakeNode distinguishes ledger-entry IDs minted by different
	// process instances; defaults to 0 for a single-instance deployment.
	SnowflakeNode int64
}

// New dials Redis and returns a ready Store, the way the teacher's
// NewRedisService does (ping on construction, fail fast).
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redisstore: connect: %w", err)
	}

	node, err := snowflake.NewNode(opts.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("redisstore: snowflake node: %w", err)
	}

	return &Store{client: client, logger: logger, ids: node, lobbyJoinLock: rowlock.New()}, nil
}

// NewFromClient wraps an already-constructed *redis.Client (used by tests
// against miniredis).
func NewFromClient(client *redis.Client, logger *zap.Logger) (*Store, error) {
	node, err := snowflake.NewNode(0)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, logger: logger, ids: node, lobbyJoinLock: rowlock.New()}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// txImpl buffers writes against a redis.Pipeliner opened in MULTI mode;
// nothing reaches the server until Exec is called by WithTx, so a non-nil
// error from the caller's fn discards every queued write (all-or-nothing).
type txImpl struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	pipe := s.client.TxPipeline()
	tx := &txImpl{ctx: ctx, pipe: pipe}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redisstore: tx exec: %w", err)
	}
	return nil
}

func (tx *txImpl) AppendLedgerEntry(entry domain.LedgerEntry) {
	queueLedgerEntryWrites(tx.pipe, entry)
}

func (tx *txImpl) SetBalance(user *domain.User) {
	queueUserWrite(tx.pipe, user)
}

func (tx *txImpl) SaveSession(session *domain.GameSession) {
	queueSessionWrite(tx.pipe, session)
}
