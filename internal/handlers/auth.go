package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"museflow/internal/middleware"
	"museflow/internal/models"
	"museflow/internal/store"
)

const minPasswordLength = 6

type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash, fullName string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id int) (models.User, error)
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
}

type AuthHandler struct {
	users     UserStore
	jwtSecret []byte
	ttl       time.Duration
	log       *zap.Logger
}

func NewAuthHandler(users UserStore, jwtSecret []byte, ttl time.Duration, log *zap.Logger) *AuthHandler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthHandler{users: users, jwtSecret: jwtSecret, ttl: ttl, log: orNop(log)}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type authResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decode(w, r, &c) {
		return
	}
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	c.FullName = strings.TrimSpace(c.FullName)
	if c.Email == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	if len(c.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not hash password")
		return
	}
	user, err := h.users.CreateUser(r.Context(), c.Email, string(hashed), c.FullName)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		respondError(w, h.log, err)
		return
	}
	h.respondToken(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decode(w, r, &c) {
		return
	}
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	if c.Email == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.users.UserByEmail(r.Context(), c.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, h.log, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(c.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.respondToken(w, http.StatusOK, user)
}

// Logout revokes the presented token until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tok, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.users.RevokeToken(r.Context(), tok.ID, tok.ExpiresAt); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// Session returns the user behind the presented token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.users.UserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) respondToken(w http.ResponseWriter, status int, user models.User) {
	token, exp, err := h.issueJWT(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, status, authResponse{Token: token, ExpiresAt: exp, User: user})
}

func (h *AuthHandler) issueJWT(userID int) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(h.ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": uuid.NewString(),
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
	return token, exp, err
}
