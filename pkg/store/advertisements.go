package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/member-portal/pkg/types"
)

// CreateAdvertisement stores a new advertisement.
func (s *Store) CreateAdvertisement(ctx context.Context, ad *types.Advertisement) error {
	ad.ID = newID()
	ad.CreatedAt = s.timestamp()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO advertisements (id, title, content, image_url, is_active, priority, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ad.ID, ad.Title, ad.Content, nullString(ad.ImageURL), ad.Active, ad.Priority,
		nullString(ad.CreatedBy), formatTime(ad.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting advertisement: %w", err)
	}
	return nil
}

// UpdateAdvertisement overwrites the editable fields of ad.
func (s *Store) UpdateAdvertisement(ctx context.Context, ad *types.Advertisement) error {
	err := expectOne(s.db.ExecContext(ctx, `
		UPDATE advertisements
		SET title = ?, content = ?, image_url = ?, is_active = ?, priority = ?
		WHERE id = ?
	`, ad.Title, ad.Content, nullString(ad.ImageURL), ad.Active, ad.Priority, ad.ID))
	if err != nil {
		return fmt.Errorf("updating advertisement %s: %w", ad.ID, err)
	}
	return nil
}

// ToggleAdvertisement flips whether an advertisement is published and
// returns the new state.
func (s *Store) ToggleAdvertisement(ctx context.Context, id string) (bool, error) {
	err := expectOne(s.db.ExecContext(ctx, `
		UPDATE advertisements SET is_active = 1 - is_active WHERE id = ?
	`, id))
	if err != nil {
		return false, fmt.Errorf("toggling advertisement %s: %w", id, err)
	}

	var active bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT is_active FROM advertisements WHERE id = ?
	`, id).Scan(&active); err != nil {
		return false, fmt.Errorf("reading advertisement %s: %w", id, err)
	}
	return active, nil
}

// DeleteAdvertisement removes an advertisement.
func (s *Store) DeleteAdvertisement(ctx context.Context, id string) error {
	err := expectOne(s.db.ExecContext(ctx, `DELETE FROM advertisements WHERE id = ?`, id))
	if err != nil {
		return fmt.Errorf("deleting advertisement %s: %w", id, err)
	}
	return nil
}

// ListAdvertisements returns advertisements by descending priority, newest
// first within a priority.
func (s *Store) ListAdvertisements(ctx context.Context, activeOnly bool) ([]*types.Advertisement, error) {
	query := `
		SELECT id, title, content, image_url, is_active, priority, created_by, created_at
		FROM advertisements`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY priority DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying advertisements: %w", err)
	}
	defer rows.Close()

	var ads []*types.Advertisement
	for rows.Next() {
		var (
			ad                  types.Advertisement
			imageURL, createdBy sql.NullString
			created             string
		)
		if err := rows.Scan(&ad.ID, &ad.Title, &ad.Content, &imageURL, &ad.Active,
			&ad.Priority, &createdBy, &created); err != nil {
			return nil, fmt.Errorf("scanning advertisement: %w", err)
		}
		ad.ImageURL = imageURL.String
		ad.CreatedBy = createdBy.String
		if ad.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		ads = append(ads, &ad)
	}
	return ads, rows.Err()
}
