package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/member-portal/pkg/types"
)

// CreateContactMessage stores a contact form submission as unread.
func (s *Store) CreateContactMessage(ctx context.Context, m *types.ContactMessage) error {
	m.ID = newID()
	m.Read = false
	m.CreatedAt = s.timestamp()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, phone, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, m.ID, m.Name, m.Email, nullString(m.Phone), m.Message, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting contact message: %w", err)
	}
	return nil
}

// ListContactMessages returns messages newest first.
func (s *Store) ListContactMessages(ctx context.Context, unreadOnly bool) ([]*types.ContactMessage, error) {
	query := `SELECT id, name, email, phone, message, is_read, created_at FROM contact_messages`
	if unreadOnly {
		query += ` WHERE is_read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying contact messages: %w", err)
	}
	defer rows.Close()

	var msgs []*types.ContactMessage
	for rows.Next() {
		var (
			m       types.ContactMessage
			phone   sql.NullString
			created string
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &phone, &m.Message, &m.Read, &created); err != nil {
			return nil, fmt.Errorf("scanning contact message: %w", err)
		}
		m.Phone = phone.String
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// MarkMessageRead flags a contact message as read.
func (s *Store) MarkMessageRead(ctx context.Context, id string) error {
	err := expectOne(s.db.ExecContext(ctx, `
		UPDATE contact_messages SET is_read = 1 WHERE id = ?
	`, id))
	if err != nil {
		return fmt.Errorf("marking message %s read: %w", id, err)
	}
	return nil
}
