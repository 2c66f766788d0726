// Package redisstore implements store.Database, store.LedgerStore,
// store.BalanceStore, store.CatalogStore, store.SessionStore and
// store.LobbyStore against Redis, grounded in the teacher service's
// services.RedisService: JSON string blobs for point lookups, sorted sets
// for ordered per-user indexes, MULTI/EXEC pipelines for atomic multi-key
// writes and WATCH for CompareAndUpdate. No Lua scripts are used.
package redisstore

import "time"

const (
	keyUser              = "pluto:user:%s"           // userId -> User JSON
	keyUserByExternalAuth = "pluto:user:by-auth:%s"   // externalAuthId -> userId
	keyUserByDisplayName  = "pluto:user:by-name:%s"   // lower(displayName) -> userId

	keyLedgerEntry    = "pluto:ledger:entry:%s"  // entryId -> LedgerEntry JSON
	keyLedgerByUser   = "pluto:ledger:user:%s"   // zset: score=createdAt, member=entryId
	keyLedgerBySession = "pluto:ledger:session:%s" // list of entryId, append order

	keyGame            = "pluto:game:%s"          // gameId -> Game JSON
	keyGameByName       = "pluto:game:by-name:%s" // name -> gameId
	keyContract         = "pluto:contract:%s"      // contractId -> Contract JSON
	keyContractsByGame  = "pluto:contracts:game:%s" // set of contractId

	keySession         = "pluto:session:%s"        // sessionId -> GameSession JSON
	keySessionsExpiry  = "pluto:sessions:expiry"    // zset: score=expiresAt, member=sessionId, only while PENDING/ACTIVE
	keyIdempotency     = "pluto:idempotency:%s"     // idempotencyKey -> sessionId

	keyLobby           = "pluto:lobby:%s"           // lobbyId -> Lobby JSON
	keyLobbiesByContract = "pluto:lobbies:contract:%s" // set of lobbyId, non-terminal only
	keyUserLobby        = "pluto:user:lobby:%s"     // userId -> lobbyId, only while non-terminal

	keyRateLimit = "pluto:ratelimit:%s:%s" // userId:action -> counter
)

const (
	ttlUser     = 0 // never expires
	ttlLedger   = 0
	ttlSession  = 30 * 24 * time.Hour
	ttlLobby    = 24 * time.Hour
	ttlIdemKey  = 24 * time.Hour
)
