// Package store declares the abstract repository capabilities C2 (ledger),
// C3 (balances), C5 (contract/game catalog), C6 (sessions) and C8 (lobbies)
// as plain Go interfaces — "a record of function pointers" per the design
// notes (§9): no base-class hierarchy, polymorphism limited to swapping
// implementations (Redis in production, an in-memory fake in tests).
//
// internal/store/redisstore provides the only production implementation,
// against github.com/redis/go-redis/v9, grounded in the teacher service's
// services.RedisService.
package store

import (
	"context"
	"errors"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/domain"
)

// ErrConcurrencyConflict is returned by CompareAndUpdate when the row has
// changed since it was read (§4.1).
var ErrConcurrencyConflict = errors.New("store: concurrency conflict")

// ErrNotFound is returned by any single-row lookup that finds nothing.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned by inserts that collide with a uniqueness
// constraint (e.g. displayName, externalAuthId).
var ErrAlreadyExists = errors.New("store: already exists")

// Tx is a caller-provided unit of work: a set of writes that become
// visible to other readers atomically, all-or-nothing, when the function
// passed to Database.WithTx returns nil. It is the "caller-provided
// transaction" §4.1's UpdateBalanceInTx refers to.
type Tx interface {
	AppendLedgerEntry(entry domain.LedgerEntry)
	SetBalance(user *domain.User)
	SaveSession(session *domain.GameSession)
}

// Database opens a transaction. Every store capability that needs to
// mutate more than one kind of row atomically (the contract engine's
// Execute/Settle/Cancel/Expire) goes through WithTx exactly once per
// operation. fn must not perform network I/O to external systems (§5: "No
// network I/O to external systems ... is permitted inside that
// transaction").
type Database interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Balances is a (balance, locked) pair, used for CompareAndUpdate's
// expected and new values and for UpdateBalanceInTx's new values.
type Balances struct {
	Balance amount.Amount
	Locked  amount.Amount
}

// LedgerStore is C2: the append-only log of balance-changing events.
type LedgerStore interface {
	// Append inserts a single immutable row outside of any caller
	// transaction and returns its entryId. Used by flows that are not
	// part of a larger atomic operation (e.g. future deposit/withdraw).
	Append(ctx context.Context, entry domain.LedgerEntry) (string, error)

	// AppendMany inserts a batch atomically (all-or-nothing).
	AppendMany(ctx context.Context, entries []domain.LedgerEntry) error

	// History returns rows for userID ordered by createdAt descending,
	// stable tiebreak by entryId, plus the total row count.
	History(ctx context.Context, userID string, limit, offset int) ([]domain.LedgerEntry, int, error)

	// BySession returns rows referencing sessionID ordered by createdAt
	// ascending.
	BySession(ctx context.Context, sessionID string) ([]domain.LedgerEntry, error)
}

// BalanceStore is C3: per-user (total, locked) balance state.
type BalanceStore interface {
	FindByExternalAuthID(ctx context.Context, externalAuthID string) (*domain.User, error)
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	FindByIDs(ctx context.Context, userIDs []string) ([]*domain.User, error)

	// CreateIfAbsent creates a new User row for externalAuthID if none
	// exists yet (first successful authentication, §3's User lifecycle),
	// returning the existing or newly-created row.
	CreateIfAbsent(ctx context.Context, externalAuthID, displayName string) (*domain.User, error)

	// CompareAndUpdate conditionally mutates a balance row: it fails with
	// ErrConcurrencyConflict if the row's current (balance, locked) does
	// not match expected. The only sanctioned path to mutate a balance
	// row outside an outer transaction (§4.1).
	CompareAndUpdate(ctx context.Context, userID string, expected, newValues Balances) (*domain.User, error)

	// UpdateBalanceInTx performs an unconditional update participating in
	// tx: base is the row most recently read by the caller, newValues is
	// the post-mutation (balance, locked) pair. Returns the updated copy
	// (not yet visible to other readers until tx commits) so the caller
	// can use it to build a response. Used by the contract engine, which
	// already holds per-user row locks (internal/store/rowlock) for
	// the duration of the operation (§4.1).
	UpdateBalanceInTx(tx Tx, base *domain.User, newValues Balances) *domain.User
}

// CatalogStore is C5: the immutable-after-creation Game/Contract catalog.
type CatalogStore interface {
	CreateGame(ctx context.Context, game *domain.Game) error
	FindGame(ctx context.Context, gameID string) (*domain.Game, error)
	FindGameByName(ctx context.Context, name string) (*domain.Game, error)

	CreateContract(ctx context.Context, contract *domain.Contract) error
	FindContract(ctx context.Context, contractID string) (*domain.Contract, error)
	ListContracts(ctx context.Context, gameID string) ([]*domain.Contract, error)
}

// SessionStore is C6: per-session status, pot, players and outcomes.
type SessionStore interface {
	Database

	// Create inserts a new PENDING session as part of tx (used by
	// Execute's single transaction).
	Create(tx Tx, session *domain.GameSession)

	Find(ctx context.Context, sessionID string) (*domain.GameSession, error)

	// UpdateStatus transitions a session's status (and, for SETTLED,
	// per-player outcomes) as part of tx. The caller has already
	// validated the transition is legal.
	UpdateStatus(tx Tx, session *domain.GameSession)

	// FindExpirable returns sessions with status in {PENDING, ACTIVE} and
	// expiresAt < nowMillis, for C10's sweep.
	FindExpirable(ctx context.Context, nowMillis int64, limit int) ([]*domain.GameSession, error)

	// IdempotencyLookup/StoreIdempotency back the optional
	// Idempotency-Key handling on Execute (SPEC_FULL.md supplement).
	IdempotencyLookup(ctx context.Context, key string) (sessionID string, found bool, err error)
	StoreIdempotency(ctx context.Context, key, sessionID string) error
}

// LobbyStore is C8's persistence: lobbies and their membership.
type LobbyStore interface {
	// UserCurrentLobby returns the non-terminal lobby a user currently
	// belongs to, if any (§4.5's one-lobby invariant, §8 property 6).
	UserCurrentLobby(ctx context.Context, userID string) (*domain.Lobby, bool, error)

	// FindOrCreateWaiting atomically finds a WAITING lobby for
	// contractID with room for one more player, or creates a new one,
	// and adds userID to it, returning the resulting lobby.
	FindOrCreateWaiting(ctx context.Context, contractID string, maxPlayers int, userID string) (*domain.Lobby, error)

	FindLobby(ctx context.Context, lobbyID string) (*domain.Lobby, error)
	ListLobbies(ctx context.Context, contractID string) ([]*domain.Lobby, error)

	// RemovePlayer removes userID from lobbyID, returning the updated
	// lobby.
	RemovePlayer(ctx context.Context, lobbyID, userID string) (*domain.Lobby, error)

	// SetStatus transitions a lobby's status.
	SetStatus(ctx context.Context, lobbyID string, status domain.LobbyStatus) (*domain.Lobby, error)
}
