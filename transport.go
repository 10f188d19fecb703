package auth

import (
	"context"
	"net/http"
	"time"
)

// BearerSession is the part of SessionManager the REST transport needs.
type BearerSession interface {
	IDToken(ctx context.Context) string
	SignOut(ctx context.Context)
}

// BearerTransport authorizes backend requests with the session ID token. A
// 401 answer signs the session out, closes the response and fails the request
// with ErrUnauthorizedResponse.
type BearerTransport struct {
	Session BearerSession
	Base    http.RoundTripper
	Logger  Logger
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	out := req.Clone(ctx)
	if token := t.Session.IDToken(ctx); token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := t.base().RoundTrip(out)
	if err != nil {
		return res, err
	}

	if res.StatusCode == http.StatusUnauthorized {
		t.logger().Warn("backend answered 401 for %s %s, signing out", req.Method, req.URL.Path)
		res.Body.Close()
		t.Session.SignOut(context.WithoutCancel(ctx))
		return nil, ErrUnauthorizedResponse
	}

	return res, nil
}

func (t *BearerTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *BearerTransport) logger() Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return defLogger{}
}

// NewAuthenticatedClient returns an http.Client sending the session token.
func NewAuthenticatedClient(session BearerSession, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &BearerTransport{Session: session},
		Timeout:   timeout,
	}
}
