package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// CSRFHeader carries the token on unsafe requests.
const CSRFHeader = "X-CSRF-Token"

const csrfNonceLength = 16

var ErrCSRFMissing = goerrors.New("CSRF token missing", goerrors.CategoryAuthz).
	WithTextCode("CSRF_TOKEN_MISSING").
	WithCode(goerrors.CodeForbidden)

var ErrCSRFMismatch = goerrors.New("CSRF token mismatch", goerrors.CategoryAuthz).
	WithTextCode("CSRF_TOKEN_MISMATCH").
	WithCode(goerrors.CodeForbidden)

var ErrCSRFExpired = goerrors.New("CSRF token expired", goerrors.CategoryAuthz).
	WithTextCode("CSRF_TOKEN_EXPIRED").
	WithCode(goerrors.CodeForbidden)

var safeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}

// CSRF issues and checks stateless tokens bound to the browser session id:
// base64(timestamp:nonce:sid:hmac).
type CSRF struct {
	key        []byte
	cfg        Config
	expiration time.Duration
	now        func() time.Time
}

// NewCSRF returns nil when no secret is configured, which disables checks.
func NewCSRF(cfg Config) *CSRF {
	secret := strings.TrimSpace(cfg.GetCSRFSecret())
	if secret == "" {
		return nil
	}
	return &CSRF{
		key:        []byte(secret),
		cfg:        cfg,
		expiration: 12 * time.Hour,
		now:        time.Now,
	}
}

// Issue returns a token for sessionID.
func (c *CSRF) Issue(sessionID string) (string, error) {
	nonce := make([]byte, csrfNonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s:%s", c.now().UTC().Unix(), hex.EncodeToString(nonce), sessionID)
	token := payload + ":" + hex.EncodeToString(c.sign(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

// Verify checks token against sessionID.
func (c *CSRF) Verify(sessionID, token string) error {
	if token == "" {
		return ErrCSRFMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrCSRFMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return ErrCSRFMismatch
	}

	signature, err := hex.DecodeString(parts[3])
	if err != nil {
		return ErrCSRFMismatch
	}
	if !hmac.Equal(signature, c.sign(strings.Join(parts[:3], ":"))) {
		return ErrCSRFMismatch
	}
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(sessionID)) != 1 {
		return ErrCSRFMismatch
	}

	issued, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrCSRFMismatch
	}
	if c.now().UTC().After(time.Unix(issued, 0).Add(c.expiration)) {
		return ErrCSRFExpired
	}
	return nil
}

// Middleware rejects unsafe requests without a valid token for the session
// cookie.
func (c *CSRF) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if c == nil || slices.Contains(safeMethods, strings.ToUpper(ctx.Method())) {
				return next(ctx)
			}

			sid := ctx.Cookies(c.cfg.GetSessionCookie())
			if err := c.Verify(sid, ctx.Header(CSRFHeader)); err != nil {
				return writeError(ctx, err)
			}
			return next(ctx)
		}
	}
}

func (c *CSRF) sign(payload string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
