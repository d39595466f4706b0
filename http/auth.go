package http

import (
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/net/websocket"
)

const ErrTypeUnauthorized = "unauthorized"

// TokenVerifier checks HS256 signed bearer tokens. A verifier without a
// secret accepts every request.
type TokenVerifier struct {
	Secret []byte

	// When set, tokens must carry this issuer.
	Issuer string
}

func (v TokenVerifier) Enabled() bool {
	return len(v.Secret) != 0
}

// Verify parses the token and validates its signature, its expiration and
// its issuer.
func (v TokenVerifier) Verify(token string) (*jwt.RegisteredClaims, error) {
	if !v.Enabled() {
		return &jwt.RegisteredClaims{}, nil
	}

	if token == "" {
		return nil, errors.New("missing auth token").WithType(ErrTypeUnauthorized)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Newf("unexpected signing method %v", t.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			Wrap(err)
	}

	if v.Issuer != "" && !claims.VerifyIssuer(v.Issuer, true) {
		return nil, errors.New("unexpected auth token issuer").
			WithType(ErrTypeUnauthorized).
			WithTag("issuer", claims.Issuer)
	}
	return &claims, nil
}

// Sign returns a token for the given claims. Used by tooling and tests.
func (v TokenVerifier) Sign(claims jwt.RegisteredClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

// TokenFromRequest returns the bearer token of the Authorization header,
// falling back on the token query parameter for browser WebSocket clients.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// VerifyAuthToken returns a WebSocket handshake rejecting connections
// without a valid token.
func VerifyAuthToken(v TokenVerifier) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if _, err := v.Verify(TokenFromRequest(r)); err != nil {
			logs.WithClientID(r.Header.Get(httpcmn.HeaderPosemeshClientID)).Error(err)
			return err
		}
		return nil
	}
}

// VerifyAuthTokenHandler rejects requests without a valid token with a 401.
func VerifyAuthTokenHandler(v TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := v.Verify(TokenFromRequest(r)); err != nil {
			logs.WithClientID(r.Header.Get(httpcmn.HeaderPosemeshClientID)).Error(err)
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}
