package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const adminCookieName = "admin_session"

var (
	errNoAdminSession     = errors.New("no valid admin session")
	errInvalidCredentials = errors.New("invalid credentials")
)

// AdminInfo identifies an authenticated admin.
type AdminInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AdminStore handles admin accounts and their cookie sessions, backed
// by the admins and admin_sessions tables.
type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

// Authenticate checks the password against the stored bcrypt hash.
// Unknown emails and wrong passwords both yield errInvalidCredentials.
func (s *AdminStore) Authenticate(ctx context.Context, email, password string) (AdminInfo, error) {
	var info AdminInfo
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM admins WHERE email = ?`, email,
	).Scan(&info.ID, &info.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return AdminInfo{}, errInvalidCredentials
	}
	if err != nil {
		return AdminInfo{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return AdminInfo{}, errInvalidCredentials
	}
	return info, nil
}

// CreateSession opens a new cookie session for the admin and returns
// its ID. The row's primary key default mints the random session ID.
func (s *AdminStore) CreateSession(ctx context.Context, adminID string) (string, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO admin_sessions (admin_id) VALUES (?) RETURNING id`, adminID,
	).Scan(&sessionID)
	if err != nil {
		return "", fmt.Errorf("creating admin session: %w", err)
	}
	return sessionID, nil
}

// DeleteSession removes a cookie session; unknown IDs are not an error.
func (s *AdminStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE id = ?`, sessionID)
	return err
}

// FromSession resolves a session cookie value to its admin.
func (s *AdminStore) FromSession(ctx context.Context, sessionID string) (AdminInfo, error) {
	var info AdminInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.email
		FROM admin_sessions s
		JOIN admins a ON a.id = s.admin_id
		WHERE s.id = ?
	`, sessionID).Scan(&info.ID, &info.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return AdminInfo{}, errNoAdminSession
	}
	return info, err
}

// SeedIfEmpty creates the initial admin account when none exists.
// Returns whether a new account was created.
func (s *AdminStore) SeedIfEmpty(ctx context.Context, email, password string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hashing admin password: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO admins (email, password_hash) VALUES (?, ?)`,
		email, string(hash),
	)
	if err != nil {
		return false, fmt.Errorf("seeding admin: %w", err)
	}
	return true, nil
}
