package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
)

func (s *Store) CreateContact(ctx context.Context, c *models.Contact) error {
	c.Status = models.ContactNew
	c.CreatedAt = time.Now().UTC()
	id, err := s.insert(ctx, `
		INSERT INTO contacts (name, email, phone, subject, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Email, c.Phone, c.Subject, c.Message, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	c.ID = id
	return nil
}

func (s *Store) GetContact(ctx context.Context, id int64) (*models.Contact, error) {
	var c models.Contact
	err := s.queryRow(ctx, `SELECT id, name, email, phone, subject, message, status, created_at FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Subject, &c.Message, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}

	rows, err := s.query(ctx, `
		SELECT id, contact_id, admin_id, admin_name, message, created_at
		FROM contact_replies WHERE contact_id = ? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var r models.ContactReply
		if err := rows.Scan(&r.ID, &r.ContactID, &r.AdminID, &r.AdminName, &r.Message, &r.CreatedAt); err != nil {
			return nil, err
		}
		c.Replies = append(c.Replies, r)
	}
	return &c, rows.Err()
}

func (s *Store) ListContacts(ctx context.Context, status models.ContactStatus, limit, offset int) ([]*models.Contact, int, error) {
	clause, params := "", []any{}
	if status != "" {
		clause = " WHERE status = ?"
		params = append(params, status)
	}

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM contacts`+clause, params...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.query(ctx, `SELECT id, name, email, phone, subject, message, status, created_at FROM contacts`+clause+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(params, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	contacts := []*models.Contact{}
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Subject, &c.Message, &c.Status, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, &c)
	}
	return contacts, total, rows.Err()
}

func (s *Store) SetContactStatus(ctx context.Context, id int64, status models.ContactStatus) error {
	res, err := s.exec(ctx, `UPDATE contacts SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// AddContactReply stores the reply and marks the thread replied.
func (s *Store) AddContactReply(ctx context.Context, r *models.ContactReply) error {
	return s.WithTx(ctx, func(tx *Store) error {
		r.CreatedAt = time.Now().UTC()
		id, err := tx.insert(ctx, `
			INSERT INTO contact_replies (contact_id, admin_id, admin_name, message, created_at)
			VALUES (?, ?, ?, ?, ?)`, r.ContactID, r.AdminID, r.AdminName, r.Message, r.CreatedAt)
		if err != nil {
			return err
		}
		r.ID = id
		return tx.SetContactStatus(ctx, r.ContactID, models.ContactReplied)
	})
}

func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}
