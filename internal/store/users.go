package store

import (
	"context"
	"fmt"
	"time"

	"museflow/internal/models"
)

const userColumns = `id, email, email_index, password_hash, full_name, created_at`

func (s *Store) CreateUser(ctx context.Context, email, passwordHash, fullName string) (models.User, error) {
	sealed, err := s.sealer.Seal(email)
	if err != nil {
		return models.User{}, fmt.Errorf("seal email: %w", err)
	}
	var u models.User
	err = s.db.QueryRowxContext(ctx,
		`INSERT INTO users (email, email_index, password_hash, full_name) VALUES ($1, $2, $3, $4) RETURNING `+userColumns,
		sealed, s.sealer.Index(email), passwordHash, fullName).StructScan(&u)
	if err != nil {
		return models.User{}, mapError(err, "create user")
	}
	u.Email = email
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email_index=$1`, s.sealer.Index(email)); err != nil {
		return models.User{}, mapError(err, "user by email")
	}
	return s.openUser(u)
}

func (s *Store) UserByID(ctx context.Context, id int) (models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id=$1`, id); err != nil {
		return models.User{}, mapError(err, "user by id")
	}
	return s.openUser(u)
}

func (s *Store) openUser(u models.User) (models.User, error) {
	email, err := s.sealer.Open(u.Email)
	if err != nil {
		return models.User{}, fmt.Errorf("open email: %w", err)
	}
	u.Email = email
	return u, nil
}

// RevokeToken stores a signed-out token id until it would have expired anyway.
func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < NOW()`); err != nil {
		return mapError(err, "prune revoked tokens")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2) ON CONFLICT (jti) DO NOTHING`, jti, expiresAt)
	return mapError(err, "revoke token")
}

func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowxContext(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, mapError(err, "check revoked token")
	}
	return revoked, nil
}
