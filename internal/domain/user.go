// Package domain holds the entities of §3: User, LedgerEntry, Game,
// Contract, GameSession and Lobby, plus the invariants attached to them as
// doc comments. Stores (internal/store) read and write these types; the
// contract engine (internal/engine) and lobby state machine
// (internal/lobbysvc) are the only code permitted to mutate them outside
// of store-internal bookkeeping.
package domain

import (
	"regexp"

	"github.com/plutohub/hub/internal/amount"
)

var displayNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// ValidDisplayName reports whether name satisfies §3's User.displayName
// invariant (3-20 chars, [A-Za-z0-9_-]). Case-insensitive uniqueness is
// enforced by the store, not here.
func ValidDisplayName(name string) bool {
	return displayNamePattern.MatchString(name)
}

// User is the authoritative identity + balance record. Created on first
// successful authentication for a new ExternalAuthID; never deleted.
type User struct {
	UserID         string `json:"userId"`
	ExternalAuthID string `json:"externalAuthId"`
	DisplayName    string `json:"displayName"`

	Balance       amount.Amount `json:"balance"`
	LockedBalance amount.Amount `json:"lockedBalance"`

	CreatedAt int64 `json:"createdAt"` // unix millis
	UpdatedAt int64 `json:"updatedAt"`
}

// AvailableBalance is the derived spendable amount; never stored
// independently (§3).
func (u *User) AvailableBalance() amount.Amount {
	avail, err := amount.SubNonNegative(u.Balance, u.LockedBalance)
	if err != nil {
		// Invariant violation (locked > balance): the caller already
		// guarantees 0 <= locked <= balance on every write path, so this
		// only fires on a corrupted row. Surface zero rather than panic.
		return amount.Zero()
	}
	return avail
}

// CheckInvariants enforces §4.1's balance invariants: balance >= 0 (always
// true for amount.Amount), 0 <= locked <= balance.
func (u *User) CheckInvariants() error {
	if amount.GreaterThan(u.LockedBalance, u.Balance) {
		return errInvariant("locked balance exceeds total balance")
	}
	return nil
}

type invariantError string

func (e invariantError) Error() string { return string(e) }

func errInvariant(msg string) error { return invariantError(msg) }
