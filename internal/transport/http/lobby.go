package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/lobbysvc"
)

// LobbyHandler serves §6's public and Bearer-authenticated lobby routes.
type LobbyHandler struct {
	service *lobbysvc.Service
	hub     *lobbysvc.Hub
}

func NewLobbyHandler(service *lobbysvc.Service, hub *lobbysvc.Hub) *LobbyHandler {
	return &LobbyHandler{service: service, hub: hub}
}

func (h *LobbyHandler) List(c *gin.Context) {
	lobbies, err := h.service.List(c.Request.Context(), c.Query("contractId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lobbies})
}

func (h *LobbyHandler) Status(c *gin.Context) {
	lobby, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lobby)
}

type joinRequest struct {
	ContractID string `json:"contractId" binding:"required"`
}

func (h *LobbyHandler) Join(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondError(c, apperr.New(apperr.CodeUnauthorized, "user not authenticated"))
		return
	}

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation(err.Error(), nil))
		return
	}

	lobby, err := h.service.Join(c.Request.Context(), uid, req.ContractID)
	if err != nil {
		respondError(c, err)
		return
	}

	position := len(lobby.Players)
	c.JSON(http.StatusOK, gin.H{
		"lobbyId":    lobby.LobbyID,
		"contractId": lobby.ContractID,
		"status":     lobby.Status,
		"position":   position,
		"players":    lobby.Players,
		"isReady":    lobby.Status == domain.LobbyStarting,
	})
}

func (h *LobbyHandler) Leave(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondError(c, apperr.New(apperr.CodeUnauthorized, "user not authenticated"))
		return
	}

	lobby, err := h.service.Leave(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "lobbyId": lobby.LobbyID})
}

// Events is GET /lobbies/:id/events (§6): a Server-Sent Events stream of
// frames produced by the Hub, drained via http.Flusher until the client
// disconnects or the request context is cancelled.
func (h *LobbyHandler) Events(c *gin.Context) {
	lobbyID := c.Param("id")
	if _, err := h.service.Status(c.Request.Context(), lobbyID); err != nil {
		respondError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		respondError(c, apperr.New(apperr.CodeInternalError, "streaming unsupported"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	frames, unsubscribe := h.hub.Subscribe(lobbyID)
	defer unsubscribe()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, open := <-frames:
			if !open {
				return
			}
			if _, err := c.Writer.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
