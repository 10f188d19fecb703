package cognito

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/invencare/go-auth"
)

// IDTokenClaims are the claims read from a user pool ID token.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
	Username string `json:"cognito:username"`
	Email    string `json:"email,omitempty"`
}

// TokenVerifier validates user pool ID tokens against the pool JWKS.
type TokenVerifier struct {
	jwks     *keyfunc.JWKS
	issuer   string
	clientID string
	now      func() time.Time
}

// NewTokenVerifier fetches the pool JWKS and keeps it fresh in the background
// until ctx is done.
func NewTokenVerifier(ctx context.Context, cfg Config, logger auth.Logger) (*TokenVerifier, error) {
	interval := cfg.JWKSRefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.jwksURL(), keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   interval,
		RefreshRateLimit:  time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			if logger != nil {
				logger.Warn("cognito jwks refresh failed: %v", err)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cognito: failed to fetch jwks: %w", err)
	}

	return NewTokenVerifierWithKeys(jwks, cfg.issuerURL(), cfg.ClientID), nil
}

// NewTokenVerifierWithKeys builds a verifier over a known key set.
func NewTokenVerifierWithKeys(jwks *keyfunc.JWKS, issuer, clientID string) *TokenVerifier {
	return &TokenVerifier{
		jwks:     jwks,
		issuer:   issuer,
		clientID: clientID,
		now:      time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (v *TokenVerifier) WithClock(now func() time.Time) *TokenVerifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Verify checks signature, issuer, audience, expiry and token use.
func (v *TokenVerifier) Verify(raw string) (*IDTokenClaims, error) {
	claims := &IDTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, normalizeVerificationError(err, errors.Is(err, jwt.ErrTokenExpired))
	}

	if claims.TokenUse != "id" {
		return nil, normalizeVerificationError(fmt.Errorf("unexpected token_use %q", claims.TokenUse), false)
	}

	return claims, nil
}

// Close stops the background refresh.
func (v *TokenVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// unverifiedClaims reads ID token claims without checking the signature. Only
// used to recover the username for a refresh SECRET_HASH and the expiry.
func unverifiedClaims(raw string) (*IDTokenClaims, error) {
	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
