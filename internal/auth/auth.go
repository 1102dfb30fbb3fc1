package auth

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Martin-Hayot/car-auction/configs"
	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwe"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"golang.org/x/crypto/hkdf"
)

// Users resolves the identity named by a token's claims.
type Users interface {
	GetUserByID(ctx context.Context, id string) (types.User, error)
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
}

// Authenticator turns a request into a known user. It accepts, in order, the
// encrypted session cookie written by the web front end, an
// "Authorization: Bearer" JWT and an access_token query parameter holding
// either form.
type Authenticator struct {
	secret     []byte
	cookieName string
	users      Users
}

func New(cfg configs.AuthConfig, users Users) *Authenticator {
	return &Authenticator{
		secret:     []byte(cfg.SecretKey),
		cookieName: cfg.CookieName,
		users:      users,
	}
}

// encryptionKey derives the session cookie key the same way Auth.js does:
// HKDF-SHA256 salted with the cookie name.
func (a *Authenticator) encryptionKey() ([]byte, error) {
	if len(a.secret) == 0 {
		return nil, errors.New(errors.ErrInternalServer, "auth secret not set")
	}

	info := fmt.Sprintf("Auth.js Generated Encryption Key (%s)", a.cookieName)
	kdf := hkdf.New(sha256.New, a.secret, []byte(a.cookieName), []byte(info))

	key := make([]byte, 64)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}
	return key, nil
}

// jweToJwt decrypts a session token and re-signs its claims so both token
// forms go through the same verification.
func (a *Authenticator) jweToJwt(encrypted string) ([]byte, error) {
	key, err := a.encryptionKey()
	if err != nil {
		return nil, err
	}

	decrypted, err := jwe.Decrypt([]byte(encrypted), jwe.WithKey(jwa.DIRECT(), key))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt JWE")
	}

	var payload map[string]any
	if err := json.Unmarshal(decrypted, &payload); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal decrypted payload")
	}

	token := jwt.New()
	for k, v := range payload {
		if err := token.Set(k, v); err != nil {
			return nil, errors.Wrap(err, "invalid claim "+k)
		}
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), a.secret))
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign JWT")
	}
	return signed, nil
}

// isEncrypted reports whether raw is a compact JWE (five segments) rather
// than a compact JWS (three).
func isEncrypted(raw string) bool {
	return strings.Count(raw, ".") == 4
}

func tokenFromRequest(r *http.Request, cookieName string) (string, bool) {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), true
	}
	if q := r.URL.Query().Get("access_token"); q != "" {
		return q, true
	}
	return "", false
}

// Verify checks a raw token and returns its claims.
func (a *Authenticator) Verify(raw string) (jwt.Token, error) {
	signed := []byte(raw)
	if isEncrypted(raw) {
		var err error
		if signed, err = a.jweToJwt(raw); err != nil {
			return nil, errors.WrapCode(errors.ErrInvalidToken, err, "invalid session token")
		}
	}

	token, err := jwt.Parse(signed,
		jwt.WithKey(jwa.HS256(), a.secret),
		jwt.WithValidate(true))
	if err != nil {
		return nil, errors.WrapCode(errors.ErrInvalidToken, err, "failed to validate token")
	}
	return token, nil
}

// Authenticate resolves the caller of r. The token must name a user by its
// email claim or, failing that, its subject.
func (a *Authenticator) Authenticate(r *http.Request) (types.User, error) {
	raw, ok := tokenFromRequest(r, a.cookieName)
	if !ok {
		return types.User{}, errors.New(errors.ErrInvalidToken, "missing session token")
	}

	token, err := a.Verify(raw)
	if err != nil {
		log.Debug("Rejected token", "err", err)
		return types.User{}, err
	}

	var email string
	if err := token.Get("email", &email); err == nil && email != "" {
		user, err := a.users.GetUserByEmail(r.Context(), email)
		if err != nil {
			return types.User{}, errors.WrapCode(errors.ErrInvalidToken, err, "unknown user")
		}
		return user, nil
	}

	if sub, ok := token.Subject(); ok && sub != "" {
		user, err := a.users.GetUserByID(r.Context(), sub)
		if err != nil {
			return types.User{}, errors.WrapCode(errors.ErrInvalidToken, err, "unknown user")
		}
		return user, nil
	}
	return types.User{}, errors.New(errors.ErrInvalidToken, "token names no user")
}
