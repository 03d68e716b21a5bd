package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/member-portal/pkg/types"
)

// CreateApplication stores a new application with status pending.
func (s *Store) CreateApplication(ctx context.Context, a *types.MembershipApplication) error {
	a.ID = newID()
	a.Status = types.StatusPending
	a.CreatedAt = s.timestamp()

	var years sql.NullInt64
	if a.ExperienceYears != nil {
		years = sql.NullInt64{Int64: int64(*a.ExperienceYears), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO membership_applications (
			id, user_id, membership_type, full_name, email, phone, profession,
			organization, experience_years, motivation, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, nullString(a.UserID), a.Tier, a.FullName, a.Email, nullString(a.Phone),
		a.Profession, nullString(a.Organization), years, a.Motivation,
		string(a.Status), formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting application: %w", err)
	}
	return nil
}

// ListApplications returns applications newest first. An empty status
// returns all of them.
func (s *Store) ListApplications(ctx context.Context, status types.ApplicationStatus) ([]*types.MembershipApplication, error) {
	query := `
		SELECT id, user_id, membership_type, full_name, email, phone, profession,
			organization, experience_years, motivation, status, created_at
		FROM membership_applications`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying applications: %w", err)
	}
	defer rows.Close()

	var apps []*types.MembershipApplication
	for rows.Next() {
		var (
			a                  types.MembershipApplication
			userID, phone, org sql.NullString
			years              sql.NullInt64
			appStatus, created string
		)
		if err := rows.Scan(&a.ID, &userID, &a.Tier, &a.FullName, &a.Email, &phone,
			&a.Profession, &org, &years, &a.Motivation, &appStatus, &created); err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}
		a.UserID = userID.String
		a.Phone = phone.String
		a.Organization = org.String
		if years.Valid {
			y := int(years.Int64)
			a.ExperienceYears = &y
		}
		a.Status = types.ApplicationStatus(appStatus)
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		apps = append(apps, &a)
	}
	return apps, rows.Err()
}

// SetApplicationStatus records a review decision.
func (s *Store) SetApplicationStatus(ctx context.Context, id string, status types.ApplicationStatus) error {
	err := expectOne(s.db.ExecContext(ctx, `
		UPDATE membership_applications SET status = ? WHERE id = ?
	`, string(status), id))
	if err != nil {
		return fmt.Errorf("updating application %s: %w", id, err)
	}
	return nil
}
