package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/store"
)

// AccountHandler serves the Bearer-authenticated "me" routes of §6:
// GET /me/balance and GET /me/history.
type AccountHandler struct {
	balances store.BalanceStore
	ledger   store.LedgerStore
}

func NewAccountHandler(balances store.BalanceStore, ledger store.LedgerStore) *AccountHandler {
	return &AccountHandler{balances: balances, ledger: ledger}
}

func (h *AccountHandler) GetBalance(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondError(c, apperr.New(apperr.CodeUnauthorized, "user not authenticated"))
		return
	}

	user, err := h.balances.FindByID(c.Request.Context(), uid)
	if err != nil {
		if err == store.ErrNotFound {
			respondError(c, apperr.NotFound("user"))
		} else {
			respondError(c, apperr.New(apperr.CodeInternalError, "failed to load balance"))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":          user.Balance,
		"lockedBalance":    user.LockedBalance,
		"availableBalance": user.AvailableBalance(),
	})
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

func (h *AccountHandler) GetHistory(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondError(c, apperr.New(apperr.CodeUnauthorized, "user not authenticated"))
		return
	}

	limit := parseIntQuery(c, "limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, total, err := h.ledger.History(c.Request.Context(), uid, limit, offset)
	if err != nil {
		respondError(c, apperr.New(apperr.CodeInternalError, "failed to load history"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
		"hasMore": offset+len(entries) < total,
	})
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
