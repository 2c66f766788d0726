// Package http assembles C7/C8/C9's gin HTTP surface (§6), grounded on the
// teacher's cmd/api/main.go router construction: a CORS middleware
// closure, route groups with per-group middleware, and thin handler
// structs that hold only the services they call.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/plutohub/hub/internal/engine"
	"github.com/plutohub/hub/internal/identity"
	"github.com/plutohub/hub/internal/lobbysvc"
	"github.com/plutohub/hub/internal/store"
)

// Deps bundles everything the router needs to wire its routes.
type Deps struct {
	Engine   *engine.Engine
	Lobby    *lobbysvc.Service
	Hub      *lobbysvc.Hub
	Balances store.BalanceStore
	Ledger   store.LedgerStore
	Catalog  store.CatalogStore
	Identity identity.Verifier
}

// NewRouter builds the gin.Engine serving every route in §6.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORS())

	account := NewAccountHandler(deps.Balances, deps.Ledger)
	contracts := NewContractHandler(deps.Engine, deps.Lobby)
	lobbies := NewLobbyHandler(deps.Lobby, deps.Hub)

	bearer := BearerAuth(deps.Identity, deps.Balances)
	gameAuth := GameAuth(deps.Catalog)

	v1 := router.Group("/v1")

	me := v1.Group("/me")
	me.Use(bearer)
	{
		me.GET("/balance", account.GetBalance)
		me.GET("/history", account.GetHistory)
	}

	contractRoutes := v1.Group("/contracts")
	contractRoutes.Use(gameAuth)
	{
		contractRoutes.POST("/execute", contracts.Execute)
		contractRoutes.POST("/settle", contracts.Settle)
		contractRoutes.POST("/cancel", contracts.Cancel)
	}

	v1.GET("/lobbies", lobbies.List)
	v1.GET("/lobbies/:id/status", lobbies.Status)
	v1.GET("/lobbies/:id/events", lobbies.Events)

	lobbyRoutes := v1.Group("/lobby")
	lobbyRoutes.Use(bearer)
	{
		lobbyRoutes.POST("/join", lobbies.Join)
		lobbyRoutes.POST("/leave", lobbies.Leave)
	}

	return router
}
