// Package tokens implements C4: the session-token codec. A token is a
// self-contained capability — "header.body.tag" — that the contract
// engine can verify without any session-store I/O (§4.4). It is built on
// golang-jwt/jwt/v5's HS256 implementation, which already gives us the
// header/body/tag shape, base64url encoding, and constant-time tag
// comparison (jwt.Parse's signature check) the spec calls for; we only
// need to define the claim set and a thin Mint/Verify surface on top.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plutohub/hub/internal/amount"
	"github.com/plutohub/hub/internal/apperr"
)

// SessionClaims is the token body of §4.4: sessionId, contractId,
// playerIds, totalPot (as a decimal string, never a JSON number), and
// expiresAt, carried alongside the standard registered claims (iat/exp).
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID  string   `json:"sessionId"`
	ContractID string   `json:"contractId"`
	PlayerIDs  []string `json:"playerIds"`
	TotalPot   string   `json:"totalPot"`
}

// Codec mints and verifies session tokens using a single process-wide
// HMAC secret (§4.4, §6's "process-wide secret").
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Mint builds a token carrying {sessionId, contractId, playerIds,
// totalPot, expiresAt, iat}. expiresAt is informational only — the
// session row remains the authoritative expiry (§4.4, Open Question 3).
func (c *Codec) Mint(sessionID, contractID string, playerIDs []string, totalPot amount.Amount, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID:  sessionID,
		ContractID: contractID,
		PlayerIDs:  playerIDs,
		TotalPot:   totalPot.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("tokens: sign: %w", err)
	}
	return signed, nil
}

// Verify returns the decoded body iff the tag verifies under constant-time
// comparison (jwt/v5's HMAC verifier does this internally); otherwise it
// returns INVALID_TOKEN. Expiry is NOT enforced here — the caller
// (internal/engine) checks the session row's own expiresAt per §4.4.
func (c *Codec) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.New(apperr.CodeInvalidToken, "session token failed verification")
	}
	return claims, nil
}
