// Package identity consumes the out-of-scope identity provider as a plain
// capability (§1: "verifies bearer tokens → opaque external subject
// identifier"). The core never implements login; it only needs something
// that turns a bearer token into an externalAuthId, so this package
// declares that capability as an interface and ships one HS256 JWT-backed
// implementation, grounded in the same golang-jwt/jwt/v5 verification
// style internal/tokens already uses for session tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plutohub/hub/internal/apperr"
)

// Verifier resolves a bearer token into the subject identifier an
// identity provider vouches for. Production deployments inject whatever
// SDK their real provider ships; JWTVerifier below is the reference
// implementation used when the provider itself issues HS256 JWTs.
type Verifier interface {
	Verify(ctx context.Context, bearerToken string) (externalAuthID string, err error)
}

// claims is the minimal shape expected of an identity-provider JWT: the
// subject is the opaque external auth id, everything else is registered
// claims.
type claims struct {
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 JWTs against a process-wide secret, issuer
// and audience (§6's "identity-provider credentials" configuration).
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, audience: audience}
}

func (v *JWTVerifier) Verify(ctx context.Context, bearerToken string) (string, error) {
	if bearerToken == "" {
		return "", apperr.New(apperr.CodeUnauthorized, "missing bearer token")
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	parser := jwt.NewParser(opts...)

	c := &claims{}
	token, err := parser.ParseWithClaims(bearerToken, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid || c.Subject == "" {
		return "", apperr.New(apperr.CodeInvalidToken, "bearer token failed verification")
	}
	return c.Subject, nil
}

// Issue mints a bearer token for externalAuthID. Exposed for tests and
// internal/seed's local bootstrapping — a stand-in for whatever login
// flow the real identity provider runs.
func (v *JWTVerifier) Issue(externalAuthID string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := &claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   externalAuthID,
		Issuer:    v.issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}}
	if v.audience != "" {
		c.Audience = jwt.ClaimStrings{v.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign: %w", err)
	}
	return signed, nil
}
