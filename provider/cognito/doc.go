// Package cognito implements auth.IdentityProvider on top of an Amazon Cognito
// user pool.
//
// The adapter is stateless: every call that acts on behalf of a user receives
// the token bundle owned by auth.SessionManager. ID tokens can optionally be
// verified against the user pool JWKS before they are trusted.
package cognito
