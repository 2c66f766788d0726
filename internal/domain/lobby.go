package domain

// LobbyStatus is one of §3's closed Lobby status set.
type LobbyStatus string

const (
	LobbyWaiting  LobbyStatus = "WAITING"
	LobbyStarting LobbyStatus = "STARTING"
	LobbyInGame   LobbyStatus = "IN_GAME"
	LobbyClosed   LobbyStatus = "CLOSED"
)

// IsTerminal reports whether the lobby can no longer admit or lose
// members through the normal Join/Leave path (§4.5's "non-terminal
// lobby" used by the one-lobby invariant, §8 property 6).
func (s LobbyStatus) IsTerminal() bool {
	return s == LobbyClosed
}

// LobbyPlayer is one member of a waiting room.
type LobbyPlayer struct {
	UserID   string `json:"userId"`
	JoinedAt int64  `json:"joinedAt"`
}

// Lobby is a per-contract waiting room (§3).
type Lobby struct {
	LobbyID    string        `json:"lobbyId"`
	ContractID string        `json:"contractId"`
	Status     LobbyStatus   `json:"status"`
	Players    []LobbyPlayer `json:"players"`
	CreatedAt  int64         `json:"createdAt"`
}

// Contains reports whether userID is already a member.
func (l *Lobby) Contains(userID string) bool {
	for _, p := range l.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
