package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
)

const userColumns = `id, email, password_hash, role, is_verified, name, phone, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsVerified, &u.Name, &u.Phone, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts u. When it is the first row in the table the user is
// promoted to superadmin; everyone after that starts as a plain user. The
// count and the insert share a transaction. On Postgres the users table is
// locked for that transaction so two first signups cannot both see zero rows;
// SQLite's single connection already serialises them.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.WithTx(ctx, func(tx *Store) error {
		return tx.createUser(ctx, u)
	})
}

func (s *Store) createUser(ctx context.Context, u *models.User) error {
	if s.Driver == "postgres" {
		if _, err := s.exec(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("failed to lock users: %w", err)
		}
	}

	var count int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count == 0 {
		u.Role = models.RoleSuperAdmin
	} else if u.Role == "" {
		u.Role = models.RoleUser
	}

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = time.Now().UTC()
	id, err := s.insert(ctx, `
		INSERT INTO users (email, password_hash, role, is_verified, name, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.PasswordHash, u.Role, u.IsVerified, u.Name, u.Phone, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.ID = id
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (s *Store) SetUserVerified(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `UPDATE users SET is_verified = TRUE WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) SetUserPassword(ctx context.Context, id int64, hash string) error {
	res, err := s.exec(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) SetUserRole(ctx context.Context, id int64, role models.Role) error {
	res, err := s.exec(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	return affected(res)
}
