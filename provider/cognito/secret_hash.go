package cognito

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// SecretHash computes the SECRET_HASH parameter: base64(HMAC-SHA256(secret,
// username + clientID)).
func SecretHash(clientSecret, username, clientID string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *IdentityProvider) secretHash(username string) *string {
	if p.config.ClientSecret == "" {
		return nil
	}
	return aws.String(SecretHash(p.config.ClientSecret, username, p.config.ClientID))
}
