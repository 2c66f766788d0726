package domain

import "github.com/plutohub/hub/internal/amount"

// SessionStatus is one of §3's closed GameSession status set.
type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionActive    SessionStatus = "ACTIVE"
	SessionSettled   SessionStatus = "SETTLED"
	SessionCancelled SessionStatus = "CANCELLED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// IsTerminal reports whether status is one of {SETTLED, CANCELLED, EXPIRED}
// (§3: "the session is frozen" at these states).
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionSettled, SessionCancelled, SessionExpired:
		return true
	default:
		return false
	}
}

// SessionPlayer is one player's stake and outcome within a GameSession.
type SessionPlayer struct {
	UserID       string        `json:"userId"`
	AmountLocked amount.Amount `json:"amountLocked"` // recorded at lock time, never re-derived
	IsWinner     bool          `json:"isWinner"`
	WinAmount    amount.Amount `json:"winAmount"`
}

// GameSession is the escrow record governing one contract execution
// (§3). Status is mutable until terminal; everything else is append-only
// once the session is created.
type GameSession struct {
	SessionID  string          `json:"sessionId"`
	ContractID string          `json:"contractId"`
	Status     SessionStatus   `json:"status"`
	TotalPot   amount.Amount   `json:"totalPot"`
	Players    []SessionPlayer `json:"players"`
	ExpiresAt  int64           `json:"expiresAt"` // unix millis
	CreatedAt  int64           `json:"createdAt"`
	SettledAt  int64           `json:"settledAt,omitempty"`
}

// Player looks up a session player by userId.
func (s *GameSession) Player(userID string) (*SessionPlayer, bool) {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// PlayerIDs returns the session's player ids in stored order.
func (s *GameSession) PlayerIDs() []string {
	ids := make([]string, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.UserID
	}
	return ids
}

// IsExpired reports whether nowMillis is past the session's expiry.
func (s *GameSession) IsExpired(nowMillis int64) bool {
	return nowMillis > s.ExpiresAt
}
