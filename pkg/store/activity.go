package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/member-portal/pkg/types"
)

// DefaultActivityLimit bounds activity queries that pass no limit.
const DefaultActivityLimit = 100

// LogActivity appends an entry to the activity log.
func (s *Store) LogActivity(ctx context.Context, entry *types.ActivityLog) error {
	entry.ID = newID()
	entry.CreatedAt = s.timestamp()

	var metadata sql.NullString
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, nullString(entry.UserID), entry.Action, nullString(entry.Description),
		metadata, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}
	return nil
}

// ActivityFilter narrows an activity query. Zero fields match everything.
type ActivityFilter struct {
	Action string
	UserID string
	Limit  int
}

// ListActivity returns matching entries, newest first.
func (s *Store) ListActivity(ctx context.Context, filter ActivityFilter) ([]*types.ActivityLog, error) {
	query := `
		SELECT id, user_id, action, description, metadata, created_at
		FROM activity_logs WHERE 1 = 1`
	var args []any
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	var entries []*types.ActivityLog
	for rows.Next() {
		var (
			e                             types.ActivityLog
			userID, description, metadata sql.NullString
			created                       string
		)
		if err := rows.Scan(&e.ID, &userID, &e.Action, &description, &metadata, &created); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		e.UserID = userID.String
		e.Description = description.String
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for %s: %w", e.ID, err)
			}
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
