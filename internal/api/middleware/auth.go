package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

var errAuthFormat = errors.New("invalid authorization header format")

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled   bool
	JWTSecret string
}

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Auth returns an authentication middleware. Browsers cannot set headers on
// a websocket handshake, so the token may also arrive as ?token=.
func Auth(cfg *AuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, err := tokenFromRequest(r)
			if err != nil {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}
			if tokenString == "" {
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			// Add claims to context
			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest reads "Authorization: Bearer|Token <t>" or the token
// query parameter, in that order.
func tokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || token == "" {
			return "", errAuthFormat
		}
		switch strings.ToLower(scheme) {
		case "bearer", "token":
			return strings.TrimSpace(token), nil
		default:
			return "", errAuthFormat
		}
	}
	return r.URL.Query().Get("token"), nil
}

// IssueToken signs an HS256 token for username valid for ttl.
func IssueToken(secret, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetUser retrieves user claims from context
func GetUser(ctx context.Context) *Claims {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}
