package domain

import "github.com/plutohub/hub/internal/amount"

// Game is an immutable-after-creation registration of a third-party game
// backend (§3). SigningKey is the shared secret the game backend keys its
// request MAC with (§6); ClientSecretDigest is a bcrypt hash of it, kept
// only so a developer re-registering can prove possession of the secret
// without it being echoed back in plaintext. The MAC verification path
// uses SigningKey directly — bcrypt's hash is one-way and cannot itself
// re-derive a usable HMAC key.
type Game struct {
	GameID             string `json:"gameId"`
	Name               string `json:"name"`
	SigningKey         string `json:"-"`
	ClientSecretDigest string `json:"-"`
	CallbackURL        string `json:"callbackUrl,omitempty"`
	IsActive           bool   `json:"isActive"`
	CreatedAt          int64  `json:"createdAt"`
}

// Contract is an immutable-after-creation economic rule template governing
// a class of matches for a Game (§3).
type Contract struct {
	ContractID     string        `json:"contractId"`
	GameID         string        `json:"gameId"`
	Name           string        `json:"name"`
	EntryFee       amount.Amount `json:"entryFee"`
	PlatformFeeBps int64         `json:"platformFeeBps"` // 0-10000; see SPEC_FULL open question #1
	MinPlayers     int           `json:"minPlayers"`
	MaxPlayers     int           `json:"maxPlayers"`
	TTLSeconds     int64         `json:"ttlSeconds"`
	IsActive       bool          `json:"isActive"`
	CreatedAt      int64         `json:"createdAt"`
}

// Validate enforces the structural invariants of §3: minPlayers >= 1,
// maxPlayers >= minPlayers, ttlSeconds > 0, fee bps in range.
func (c *Contract) Validate() error {
	if c.MinPlayers < 1 {
		return errInvariant("minPlayers must be >= 1")
	}
	if c.MaxPlayers < c.MinPlayers {
		return errInvariant("maxPlayers must be >= minPlayers")
	}
	if c.TTLSeconds <= 0 {
		return errInvariant("ttlSeconds must be > 0")
	}
	if c.PlatformFeeBps < 0 || c.PlatformFeeBps > 10000 {
		return errInvariant("platformFeeBps must be within [0, 10000]")
	}
	return nil
}
