package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/engine"
	"github.com/plutohub/hub/internal/lobbysvc"
)

// ContractHandler serves the Game-MAC-authenticated §6 routes that drive
// the contract engine: execute, settle, cancel.
type ContractHandler struct {
	engine *engine.Engine
	lobby  *lobbysvc.Service
}

func NewContractHandler(e *engine.Engine, lobby *lobbysvc.Service) *ContractHandler {
	return &ContractHandler{engine: e, lobby: lobby}
}

type executeRequest struct {
	ContractID string   `json:"contractId" binding:"required"`
	PlayerIDs  []string `json:"playerIds" binding:"required"`
	LobbyID    string   `json:"lobbyId,omitempty"`
}

func (h *ContractHandler) Execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation(err.Error(), nil))
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")

	result, err := h.engine.Execute(c.Request.Context(), req.ContractID, req.PlayerIDs, idempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}

	// The lobby hand-off (§4.5) is best-effort bookkeeping: the session is
	// already created and funds already locked by the time this runs, so a
	// failure here must not fail the response.
	if req.LobbyID != "" {
		h.lobby.MarkInGame(c.Request.Context(), req.LobbyID, result.SessionID)
	}

	players := make([]gin.H, len(result.Players))
	for i, p := range result.Players {
		players[i] = gin.H{"userId": p.UserID, "amountLocked": p.AmountLocked}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":    result.SessionID,
		"sessionToken": result.SessionToken,
		"players":      players,
		"totalPot":     result.TotalPot,
		"expiresAt":    result.ExpiresAt,
	})
}

type settleResultRequest struct {
	PlayerID  string         `json:"playerId" binding:"required"`
	IsWinner  bool           `json:"isWinner"`
	WinAmount *amount.Amount `json:"winAmount,omitempty"`
}

type settleRequest struct {
	SessionToken string                `json:"sessionToken" binding:"required"`
	Results      []settleResultRequest `json:"results" binding:"required"`
}

func (h *ContractHandler) Settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation(err.Error(), nil))
		return
	}

	results := make([]engine.SettleResult, len(req.Results))
	for i, r := range req.Results {
		results[i] = engine.SettleResult{PlayerID: r.PlayerID, IsWinner: r.IsWinner, WinAmount: r.WinAmount}
	}

	outcome, err := h.engine.Settle(c.Request.Context(), req.SessionToken, results)
	if err != nil {
		respondError(c, err)
		return
	}

	winners := make([]gin.H, len(outcome.Winners))
	for i, w := range outcome.Winners {
		winners[i] = gin.H{"userId": w.UserID, "winAmount": w.WinAmount}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":            outcome.SessionID,
		"winners":              winners,
		"platformFeeCollected": outcome.PlatformFeeCollected,
	})
}

type cancelRequest struct {
	SessionToken string `json:"sessionToken" binding:"required"`
	Reason       string `json:"reason,omitempty"`
}

func (h *ContractHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation(err.Error(), nil))
		return
	}

	outcome, err := h.engine.Cancel(c.Request.Context(), req.SessionToken, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":       outcome.SessionID,
		"refundedPlayers": outcome.RefundedPlayers,
	})
}
