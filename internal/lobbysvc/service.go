package lobbysvc

import (
	"context"
	"time"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/store"
)

// startingCountdownSeconds is the countdown broadcast with lobby_starting
// when a lobby fills (§4.5).
const startingCountdownSeconds = 5

// Service is C8: the lobby join/leave state machine. It broadcasts every
// transition through a Hub (C9) but never calls into the contract engine
// directly — the external game backend reacts to lobby_starting and
// drives Execute itself (§4.5: "keeps session creation authoritative in
// C7").
type Service struct {
	lobbies  store.LobbyStore
	catalog  store.CatalogStore
	balances store.BalanceStore
	hub      *Hub
	now      func() time.Time
}

func NewService(lobbies store.LobbyStore, catalog store.CatalogStore, balances store.BalanceStore, hub *Hub) *Service {
	return &Service{lobbies: lobbies, catalog: catalog, balances: balances, hub: hub, now: time.Now}
}

// Join is §4.5's Join(userId, contractId).
func (s *Service) Join(ctx context.Context, userID, contractID string) (*domain.Lobby, error) {
	if _, inLobby, err := s.lobbies.UserCurrentLobby(ctx, userID); err != nil {
		return nil, apperr.New(apperr.CodeInternalError, "failed to check current lobby")
	} else if inLobby {
		return nil, apperr.New(apperr.CodeAlreadyInLobby, "user is already in a lobby")
	}

	contract, err := s.catalog.FindContract(ctx, contractID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("contract")
		}
		return nil, apperr.New(apperr.CodeInternalError, "failed to load contract")
	}
	if !contract.IsActive {
		return nil, apperr.New(apperr.CodeGameNotActive, "contract is not active")
	}

	user, err := s.balances.FindByID(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.New(apperr.CodeInternalError, "failed to load user")
	}
	if amount.LessThan(user.AvailableBalance(), contract.EntryFee) {
		return nil, apperr.InsufficientFunds(contract.EntryFee.String(), user.AvailableBalance().String())
	}

	lobby, err := s.lobbies.FindOrCreateWaiting(ctx, contractID, contract.MaxPlayers, userID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternalError, "failed to join lobby")
	}

	s.hub.Broadcast(lobby.LobbyID, Event{
		Type:   EventPlayerJoined,
		Player: &Player{UserID: userID, JoinedAt: s.now().UnixMilli()},
	})

	if len(lobby.Players) >= contract.MaxPlayers {
		lobby, err = s.lobbies.SetStatus(ctx, lobby.LobbyID, domain.LobbyStarting)
		if err != nil {
			return nil, apperr.New(apperr.CodeInternalError, "failed to start lobby")
		}
		s.hub.Broadcast(lobby.LobbyID, Event{Type: EventLobbyStarting, Countdown: startingCountdownSeconds})
	}

	return lobby, nil
}

// Leave is §4.5's Leave(userId).
func (s *Service) Leave(ctx context.Context, userID string) (*domain.Lobby, error) {
	lobby, ok, err := s.lobbies.UserCurrentLobby(ctx, userID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternalError, "failed to check current lobby")
	}
	if !ok {
		return nil, apperr.NotFound("lobby")
	}

	updated, err := s.lobbies.RemovePlayer(ctx, lobby.LobbyID, userID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternalError, "failed to leave lobby")
	}
	s.hub.Broadcast(updated.LobbyID, Event{Type: EventPlayerLeft, PlayerID: userID})

	if len(updated.Players) == 0 {
		updated, err = s.lobbies.SetStatus(ctx, updated.LobbyID, domain.LobbyClosed)
		if err != nil {
			return nil, apperr.New(apperr.CodeInternalError, "failed to close lobby")
		}
		s.hub.Broadcast(updated.LobbyID, Event{Type: EventLobbyClosed, Reason: "empty"})
	}

	return updated, nil
}

// Status returns a lobby's current detail for the status-snapshot
// endpoint (§4.5: "recovery is via a status snapshot endpoint").
func (s *Service) Status(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	lobby, err := s.lobbies.FindLobby(ctx, lobbyID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("lobby")
		}
		return nil, apperr.New(apperr.CodeInternalError, "failed to load lobby")
	}
	return lobby, nil
}

// List returns the lobbies for a contract (or every contract when
// contractID is empty), for GET /lobbies.
func (s *Service) List(ctx context.Context, contractID string) ([]*domain.Lobby, error) {
	lobbies, err := s.lobbies.ListLobbies(ctx, contractID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternalError, "failed to list lobbies")
	}
	return lobbies, nil
}

// NotifyGameStarted lets the external game backend's Execute call
// announce the session id to subscribers still attached to the lobby's
// event stream, closing the loop §4.5 describes (lobby_starting is
// followed, once the game backend reacts, by game_started).
func (s *Service) NotifyGameStarted(lobbyID, sessionID string) {
	s.hub.Broadcast(lobbyID, Event{Type: EventGameStarted, SessionID: sessionID})
}

// MarkInGame transitions a lobby to IN_GAME and broadcasts game_started,
// called from the HTTP layer once the game backend's Execute call has
// actually created the session (§4.5's hand-off: STARTING -> IN_GAME is
// driven by the engine succeeding, not by the lobby service itself).
func (s *Service) MarkInGame(ctx context.Context, lobbyID, sessionID string) (*domain.Lobby, error) {
	lobby, err := s.lobbies.SetStatus(ctx, lobbyID, domain.LobbyInGame)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("lobby")
		}
		return nil, apperr.New(apperr.CodeInternalError, "failed to mark lobby in game")
	}
	s.NotifyGameStarted(lobbyID, sessionID)
	return lobby, nil
}
