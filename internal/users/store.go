// Package users is the minimal account layer behind /auth/login.
package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Authenticate checks the password against the stored bcrypt hash and
// returns the user's role.
func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	var hash, role string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash, role FROM users WHERE id=$1`, username).
		Scan(&hash, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return role, nil
}

// Create inserts a user with a freshly hashed password.
func (s *Store) Create(ctx context.Context, username, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (id,password_hash,role,created_at) VALUES ($1,$2,$3,$4)`,
		username, string(hash), role, time.Now().Unix())
	return err
}

// EnsureAdmin seeds the configured admin account if it does not exist yet.
// The hash comes straight from config, so a restart never rotates it.
func (s *Store) EnsureAdmin(ctx context.Context, username, passHash string) error {
	if username == "" || passHash == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id,password_hash,role,created_at)
		VALUES ($1,$2,'admin',$3) ON CONFLICT (id) DO NOTHING`,
		username, passHash, time.Now().Unix())
	return err
}
