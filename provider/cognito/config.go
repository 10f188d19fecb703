package cognito

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the user pool settings.
type Config struct {
	// Region is the AWS region of the user pool (e.g., "us-east-1").
	Region string

	// UserPoolID is the pool identifier (e.g., "us-east-1_AbCdEf123").
	UserPoolID string

	// ClientID is the app client the dashboard signs in through.
	ClientID string

	// ClientSecret is required when the app client has a secret; every call
	// then carries a SECRET_HASH.
	ClientSecret string

	// VerifyTokens checks ID token signatures against the pool JWKS.
	VerifyTokens bool

	// JWKSRefreshInterval is how often the JWKS is refreshed in the background.
	// Default: 1 hour.
	JWKSRefreshInterval time.Duration

	// Endpoint overrides the service endpoint (optional, local emulators).
	Endpoint string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(region, userPoolID, clientID string) Config {
	return Config{
		Region:              region,
		UserPoolID:          userPoolID,
		ClientID:            clientID,
		VerifyTokens:        true,
		JWKSRefreshInterval: time.Hour,
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("cognito: client id is required")
	}
	if c.VerifyTokens && strings.TrimSpace(c.UserPoolID) == "" {
		return fmt.Errorf("cognito: user pool id is required to verify tokens")
	}
	return nil
}

// region falls back to the prefix of the pool id.
func (c Config) region() string {
	if c.Region != "" {
		return c.Region
	}
	if i := strings.Index(c.UserPoolID, "_"); i > 0 {
		return c.UserPoolID[:i]
	}
	return ""
}

func (c Config) issuerURL() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.region(), c.UserPoolID)
}

func (c Config) jwksURL() string {
	return c.issuerURL() + "/.well-known/jwks.json"
}
