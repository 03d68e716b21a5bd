package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/member-portal/pkg/types"
)

// CreateProfile inserts a profile, assigning its ID and creation time.
// Emails are compared case-insensitively; a taken email yields ErrDuplicate.
func (s *Store) CreateProfile(ctx context.Context, p *types.Profile) error {
	p.ID = newID()
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.CreatedAt = s.timestamp()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Email, p.FullName, p.PasswordHash, formatTime(p.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("profile %s: %w", p.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// ProfileByEmail looks a profile up by email.
func (s *Store) ProfileByEmail(ctx context.Context, email string) (*types.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, password_hash, created_at
		FROM profiles WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email)))
	return scanProfile(row)
}

// ProfileByID looks a profile up by ID.
func (s *Store) ProfileByID(ctx context.Context, id string) (*types.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, password_hash, created_at
		FROM profiles WHERE id = ?
	`, id)
	return scanProfile(row)
}

// ListProfiles returns every profile, newest first.
func (s *Store) ListProfiles(ctx context.Context) ([]*types.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, full_name, password_hash, created_at
		FROM profiles ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*types.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateProfile changes a profile's display name.
func (s *Store) UpdateProfile(ctx context.Context, id, fullName string) error {
	err := expectOne(s.db.ExecContext(ctx, `
		UPDATE profiles SET full_name = ? WHERE id = ?
	`, fullName, id))
	if err != nil {
		return fmt.Errorf("updating profile %s: %w", id, err)
	}
	return nil
}

func scanProfile(row scanner) (*types.Profile, error) {
	var p types.Profile
	var created string
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning profile: %w", err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetRole assigns a role to a user, replacing any previous role.
func (s *Store) SetRole(ctx context.Context, userID string, role types.Role) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET role = excluded.role
	`, userID, string(role))
	if err != nil {
		return fmt.Errorf("setting role for %s: %w", userID, err)
	}
	return nil
}

// RoleFor returns the user's role, or ErrNotFound when none is assigned.
func (s *Store) RoleFor(ctx context.Context, userID string) (types.Role, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM user_roles WHERE user_id = ?
	`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying role for %s: %w", userID, err)
	}
	return types.Role(role), nil
}

// CountAdmins returns how many users hold the admin role.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_roles WHERE role = ?
	`, string(types.RoleAdmin)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return n, nil
}
