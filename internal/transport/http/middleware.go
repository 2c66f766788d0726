package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/identity"
	"github.com/plutohub/hub/internal/store"
)

const contextKeyUserID = "userId"
const contextKeyGameID = "gameId"

// respondError translates err into §6's error envelope, grounded on the
// teacher's handler style of a single c.JSON(status, gin.H{...}) call per
// outcome. An *apperr.Error is surfaced as-is; anything else is an
// infrastructure failure and becomes an opaque INTERNAL_ERROR.
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperr.Error); ok {
		c.JSON(appErr.Status(), gin.H{"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
		"code":    apperr.CodeInternalError,
		"message": "an internal error occurred",
	}})
}

// BearerAuth resolves the Authorization header through an identity
// Verifier, then resolves the resulting externalAuthId to an internal
// userId via store.BalanceStore, creating the user row on first
// successful authentication for a new externalAuthId (§3's lifecycle),
// mirroring the teacher's AuthMiddleware setting "user_id" on the gin
// context for downstream handlers to read with c.Get.
func BearerAuth(verifier identity.Verifier, balances store.BalanceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			respondError(c, apperr.New(apperr.CodeUnauthorized, "missing or malformed Authorization header"))
			c.Abort()
			return
		}

		externalAuthID, err := verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		user, err := balances.FindByExternalAuthID(c.Request.Context(), externalAuthID)
		if err != nil {
			if err != store.ErrNotFound {
				respondError(c, apperr.New(apperr.CodeInternalError, "failed to resolve user"))
				c.Abort()
				return
			}
			user, err = balances.CreateIfAbsent(c.Request.Context(), externalAuthID, externalAuthID)
			if err != nil {
				respondError(c, apperr.New(apperr.CodeInternalError, "failed to create user"))
				c.Abort()
				return
			}
		}

		c.Set(contextKeyUserID, user.UserID)
		c.Next()
	}
}

// GameAuth verifies the game-backend MAC of §6: a keyed SHA-256 HMAC over
// the literal request body, signed with the calling Game's SigningKey and
// carried in X-Game-Id/X-Pluto-Signature (lowercase hex). The comparison
// uses hmac.Equal, which runs in constant time, per §6's requirement.
// crypto/hmac is the standard library's own answer to this exact
// primitive — no pack example introduces a third-party MAC library, so
// there is nothing to prefer over it (see DESIGN.md).
func GameAuth(catalog store.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.GetHeader("X-Game-Id")
		sigHex := c.GetHeader("X-Pluto-Signature")
		if gameID == "" || sigHex == "" {
			respondError(c, apperr.New(apperr.CodeUnauthorized, "missing X-Game-Id or X-Pluto-Signature"))
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			respondError(c, apperr.New(apperr.CodeValidationError, "failed to read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(strings.NewReader(string(body)))

		game, err := catalog.FindGame(c.Request.Context(), gameID)
		if err != nil {
			if err == store.ErrNotFound {
				respondError(c, apperr.New(apperr.CodeInvalidSignature, "unknown game id"))
			} else {
				respondError(c, apperr.New(apperr.CodeInternalError, "failed to load game"))
			}
			c.Abort()
			return
		}
		if !game.IsActive {
			respondError(c, apperr.New(apperr.CodeGameNotActive, "game is not active"))
			c.Abort()
			return
		}

		sig, err := hex.DecodeString(sigHex)
		if err != nil {
			respondError(c, apperr.New(apperr.CodeInvalidSignature, "signature is not valid hex"))
			c.Abort()
			return
		}

		mac := hmac.New(sha256.New, []byte(game.SigningKey))
		mac.Write(body)
		expected := mac.Sum(nil)
		if !hmac.Equal(sig, expected) {
			respondError(c, apperr.New(apperr.CodeInvalidSignature, "signature verification failed"))
			c.Abort()
			return
		}

		c.Set(contextKeyGameID, game.GameID)
		c.Next()
	}
}

// CORS mirrors the teacher's permissive development CORS middleware in
// cmd/api/main.go.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Game-Id, X-Pluto-Signature, Idempotency-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) (string, bool) {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
