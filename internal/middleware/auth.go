package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	tokenKey
)

// Token identifies the bearer token of an authenticated request.
type Token struct {
	ID        string // jti
	ExpiresAt time.Time
}

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthMiddleware struct {
	jwtSecret []byte
	revoked   RevocationChecker
	log       *zap.Logger
}

func NewAuthMiddleware(secret []byte, revoked RevocationChecker, log *zap.Logger) *AuthMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthMiddleware{jwtSecret: secret, revoked: revoked, log: log}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			unauthorized(w, "missing token")
			return
		}
		token, err := jwt.Parse(strings.TrimPrefix(authz, "Bearer "), func(token *jwt.Token) (any, error) {
			return m.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			unauthorized(w, "invalid token")
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(w, "invalid claims")
			return
		}
		sub, ok := claims["sub"].(float64)
		if !ok || sub <= 0 {
			unauthorized(w, "invalid subject")
			return
		}
		jti, _ := claims["jti"].(string)
		if jti == "" {
			unauthorized(w, "invalid token id")
			return
		}
		if m.revoked != nil {
			revoked, err := m.revoked.IsTokenRevoked(r.Context(), jti)
			if err != nil {
				m.log.Error("auth: revocation check failed", zap.Error(err))
				writeJSONError(w, http.StatusInternalServerError, "server error")
				return
			}
			if revoked {
				unauthorized(w, "token revoked")
				return
			}
		}
		exp, _ := claims.GetExpirationTime()
		tok := Token{ID: jti}
		if exp != nil {
			tok.ExpiresAt = exp.Time
		}

		ctx := WithUserID(r.Context(), int(sub))
		ctx = context.WithValue(ctx, tokenKey, tok)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok && id > 0
}

func TokenFromContext(ctx context.Context) (Token, bool) {
	tok, ok := ctx.Value(tokenKey).(Token)
	return tok, ok
}

// WithToken is used by tests that bypass RequireAuth.
func WithToken(ctx context.Context, tok Token) context.Context {
	return context.WithValue(ctx, tokenKey, tok)
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSONError(w, http.StatusUnauthorized, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
