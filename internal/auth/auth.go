// Package auth verifies bearer credentials presented by realtime and REST
// clients. Token issuance lives in a separate identity service.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devaloi/socialchat/internal/domain"
)

// Claims is the JWT payload issued by the identity service.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Verifier turns a credential into a user identity.
type Verifier interface {
	Verify(token string) (string, error)
}

// JWTVerifier validates HMAC-signed tokens.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates token and returns the user id it carries.
// All failures wrap domain.ErrAuth.
func (v *JWTVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing credential", domain.ErrAuth)
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", domain.ErrAuth)
		}
		return "", fmt.Errorf("%w: invalid token", domain.ErrAuth)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", domain.ErrAuth)
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: token carries no user id", domain.ErrAuth)
	}
	return userID, nil
}

// Sign issues a token for userID. Used by tests and the load generator.
func Sign(secret, userID string, claims jwt.RegisteredClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: userID, RegisteredClaims: claims})
	return tok.SignedString([]byte(secret))
}

// TokenFromRequest extracts the bearer credential from the Authorization
// header, falling back to the token query parameter for browser websockets.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
