package store

import (
	"context"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
)

// CreateOTP stores a fresh code and invalidates any earlier unused code for
// the same purpose.
func (s *Store) CreateOTP(ctx context.Context, otp *models.OTPCode) error {
	now := time.Now().UTC()
	if _, err := s.exec(ctx, `UPDATE otp_codes SET used_at = ? WHERE user_id = ? AND purpose = ? AND used_at IS NULL`,
		now, otp.UserID, otp.Purpose); err != nil {
		return err
	}
	id, err := s.insert(ctx, `INSERT INTO otp_codes (user_id, code, purpose, expires_at) VALUES (?, ?, ?, ?)`,
		otp.UserID, otp.Code, otp.Purpose, otp.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	otp.ID = id
	return nil
}

// ConsumeOTP marks the matching unexpired, unused code as used. It returns
// ErrNotFound when no such code exists.
func (s *Store) ConsumeOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, code string) error {
	now := time.Now().UTC()
	res, err := s.exec(ctx, `
		UPDATE otp_codes SET used_at = ?
		WHERE user_id = ? AND purpose = ? AND code = ? AND used_at IS NULL AND expires_at > ?`,
		now, userID, purpose, code, now)
	if err != nil {
		return err
	}
	return affected(res)
}
