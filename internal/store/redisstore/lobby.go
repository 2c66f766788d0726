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

func queueLobbyWrite(pipe redis.Pipeliner, lobby *domain.Lobby) {
	ctx := context.Background()
	data, _ := json.Marshal(lobby)
	pipe.Set(ctx, fmt.Sprintf(keyLobby, lobby.LobbyID), data, ttlLobby)

	if lobby.Status.IsTerminal() {
		pipe.SRem(ctx, fmt.Sprintf(keyLobbiesByContract, lobby.ContractID), lobby.LobbyID)
	} else {
		pipe.SAdd(ctx, fmt.Sprintf(keyLobbiesByContract, lobby.ContractID), lobby.LobbyID)
	}
}

func (s *Store) getLobby(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyLobby, lobbyID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get lobby: %w", err)
	}
	var lobby domain.Lobby
	if err := json.Unmarshal([]byte(data), &lobby); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal lobby: %w", err)
	}
	return &lobby, nil
}

func (s *Store) FindLobby(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	return s.getLobby(ctx, lobbyID)
}

func (s *Store) ListLobbies(ctx context.Context, contractID string) ([]*domain.Lobby, error) {
	ids, err := s.client.SMembers(ctx, fmt.Sprintf(keyLobbiesByContract, contractID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list lobbies: %w", err)
	}
	lobbies := make([]*domain.Lobby, 0, len(ids))
	for _, id := range ids {
		lobby, err := s.getLobby(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		lobbies = append(lobbies, lobby)
	}
	return lobbies, nil
}

// UserCurrentLobby returns the non-terminal lobby userID currently belongs
// to, enforcing the one-lobby-at-a-time invariant (§4.5, §8 property 6).
func (s *Store) UserCurrentLobby(ctx context.Context, userID string) (*domain.Lobby, bool, error) {
	lobbyID, err := s.client.Get(ctx, fmt.Sprintf(keyUserLobby, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: user current lobby: %w", err)
	}
	lobby, err := s.getLobby(ctx, lobbyID)
	if errors.Is(err, store.ErrNotFound) {
		// Stale index entry; clean it up and report "no lobby".
		s.client.Del(ctx, fmt.Sprintf(keyUserLobby, userID))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return lobby, true, nil
}

// FindOrCreateWaiting finds a WAITING lobby for contractID with room for
// one more player and adds userID to it, or creates a new one. The whole
// find-or-create-and-join step runs under a per-contract in-process lock
// (lobbyJoinLock) so two concurrent joiners in this process never both land
// in the same last open slot.
func (s *Store) FindOrCreateWaiting(ctx context.Context, contractID string, maxPlayers int, userID string) (*domain.Lobby, error) {
	release := s.lobbyJoinLock.AcquireSorted([]string{contractID})
	defer release()

	ids, err := s.client.SMembers(ctx, fmt.Sprintf(keyLobbiesByContract, contractID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: find waiting lobbies: %w", err)
	}

	for _, id := range ids {
		lobby, err := s.getLobby(ctx, id)
		if err != nil {
			continue
		}
		if lobby.Status == domain.LobbyWaiting && len(lobby.Players) < maxPlayers && !lobby.Contains(userID) {
			lobby.Players = append(lobby.Players, domain.LobbyPlayer{UserID: userID, JoinedAt: nowMillis()})
			pipe := s.client.TxPipeline()
			queueLobbyWrite(pipe, lobby)
			pipe.Set(ctx, fmt.Sprintf(keyUserLobby, userID), lobby.LobbyID, ttlLobby)
			if _, err := pipe.Exec(ctx); err != nil {
				return nil, fmt.Errorf("redisstore: join lobby: %w", err)
			}
			return lobby, nil
		}
	}

	lobby := &domain.Lobby{
		LobbyID:    s.ids.Generate().String(),
		ContractID: contractID,
		Status:     domain.LobbyWaiting,
		Players:    []domain.LobbyPlayer{{UserID: userID, JoinedAt: nowMillis()}},
		CreatedAt:  nowMillis(),
	}
	pipe := s.client.TxPipeline()
	queueLobbyWrite(pipe, lobby)
	pipe.Set(ctx, fmt.Sprintf(keyUserLobby, userID), lobby.LobbyID, ttlLobby)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redisstore: create lobby: %w", err)
	}
	return lobby, nil
}

func (s *Store) RemovePlayer(ctx context.Context, lobbyID, userID string) (*domain.Lobby, error) {
	lobby, err := s.getLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	remaining := lobby.Players[:0]
	for _, p := range lobby.Players {
		if p.UserID != userID {
			remaining = append(remaining, p)
		}
	}
	lobby.Players = remaining

	pipe := s.client.TxPipeline()
	queueLobbyWrite(pipe, lobby)
	pipe.Del(ctx, fmt.Sprintf(keyUserLobby, userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redisstore: remove player from lobby: %w", err)
	}
	return lobby, nil
}

func (s *Store) SetStatus(ctx context.Context, lobbyID string, status domain.LobbyStatus) (*domain.Lobby, error) {
	lobby, err := s.getLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	lobby.Status = status

	pipe := s.client.TxPipeline()
	queueLobbyWrite(pipe, lobby)
	if status.IsTerminal() {
		for _, p := range lobby.Players {
			pipe.Del(ctx, fmt.Sprintf(keyUserLobby, p.UserID))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redisstore: set lobby status: %w", err)
	}
	return lobby, nil
}
