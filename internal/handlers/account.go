package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/auth"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/mpesa"
	"github.com/mauricegift/jewell-haven-sub000/internal/notify"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
)

// AuthHandler covers sign-up, OTP verification, login and password reset.
type AuthHandler struct {
	*Config
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// sendOTP stores a fresh code for u and sends it by SMS and email. Send
// failures are only reported back; the stored code stays valid.
func (h *AuthHandler) sendOTP(ctx context.Context, u *models.User, purpose models.OTPPurpose) ([]notify.Result, error) {
	code, err := auth.GenerateOTP()
	if err != nil {
		return nil, err
	}
	err = h.Store.CreateOTP(ctx, &models.OTPCode{
		UserID:    u.ID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(auth.OTPTTL),
	})
	if err != nil {
		return nil, err
	}

	results := h.Notifier.SendOTP(ctx, notify.OTPMessage{
		Name:             u.Name,
		Phone:            u.Phone,
		Email:            u.Email,
		Code:             code,
		Purpose:          purpose,
		ExpiresInMinutes: int(auth.OTPTTL / time.Minute),
	})
	for _, res := range results {
		if !res.Sent {
			slog.Warn("OTP delivery failed", "userId", u.ID, "channel", res.Channel, "error", res.Error)
		}
	}
	return results, nil
}

func (h *AuthHandler) issue(w http.ResponseWriter, status int, message string, u *models.User) error {
	token, expires, err := h.Tokens.Issue(u)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, status, message, authResponse{Token: token, ExpiresAt: expires, User: u})
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) error {
	var payload signupRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	phone, err := mpesa.NormalizePhone(payload.Phone)
	if err != nil {
		return servererrors.BadRequest("phone must be a valid Kenyan mobile number", nil)
	}
	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		return err
	}

	user := &models.User{
		Email:        payload.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(payload.Name),
		Phone:        phone,
	}
	err = h.Store.WithTx(r.Context(), func(tx *store.Store) error {
		if _, err := tx.GetUserByEmail(r.Context(), payload.Email); err == nil {
			return servererrors.Conflict(servererrors.ErrEmailTaken)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.CreateUser(r.Context(), user)
	})
	if errors.Is(err, store.ErrDuplicate) {
		return servererrors.Conflict(servererrors.ErrEmailTaken)
	}
	if err != nil {
		return err
	}
	slog.Info("User signed up", "userId", user.ID, "role", user.Role)

	results, err := h.sendOTP(r.Context(), user, models.OTPVerify)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusCreated, "account created, check your phone or email for the verification code", map[string]any{
		"user":          user,
		"notifications": results,
	})
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request) error {
	var payload verifyRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	user, err := h.Store.GetUserByEmail(r.Context(), payload.Email)
	if errors.Is(err, store.ErrNotFound) {
		return servererrors.BadRequest(servererrors.ErrInvalidOTP.Error(), nil)
	}
	if err != nil {
		return err
	}

	if err := h.Store.ConsumeOTP(r.Context(), user.ID, models.OTPVerify, payload.Code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return servererrors.BadRequest(servererrors.ErrInvalidOTP.Error(), nil)
		}
		return err
	}
	if err := h.Store.SetUserVerified(r.Context(), user.ID); err != nil {
		return err
	}
	user.IsVerified = true
	return h.issue(w, http.StatusOK, "account verified", user)
}

// resendOTP answers the same way whether or not the account exists.
func (h *AuthHandler) resendOTP(w http.ResponseWriter, r *http.Request) error {
	var payload emailRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	user, err := h.Store.GetUserByEmail(r.Context(), payload.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		slog.Info("Verification code requested for unknown email")
	case err != nil:
		return err
	case user.IsVerified:
		slog.Info("Verification code requested for verified account", "userId", user.ID)
	default:
		if _, err := h.sendOTP(r.Context(), user, models.OTPVerify); err != nil {
			return err
		}
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "if the account exists, a new code has been sent", nil)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) error {
	var payload loginRequest
	if err := decode(r, &payload); err != nil {
		return err
	}

	user, err := h.Store.GetUserByEmail(r.Context(), payload.Email)
	if errors.Is(err, store.ErrNotFound) {
		return servererrors.Unauthorized(servererrors.ErrInvalidCredentials)
	}
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, payload.Password) {
		slog.Info("Failed login attempt", "userId", user.ID)
		return servererrors.Unauthorized(servererrors.ErrInvalidCredentials)
	}

	if !user.IsVerified {
		results, err := h.sendOTP(r.Context(), user, models.OTPVerify)
		if err != nil {
			return err
		}
		return servererrors.New(http.StatusForbidden, servererrors.ErrAccountNotVerified.Error(), map[string]any{
			"notifications": results,
		})
	}

	slog.Info("Login successful", "userId", user.ID)
	return h.issue(w, http.StatusOK, "login successful", user)
}

// forgotPassword answers the same way whether or not the account exists.
func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) error {
	var payload emailRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	user, err := h.Store.GetUserByEmail(r.Context(), payload.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		slog.Info("Password reset requested for unknown email")
	case err != nil:
		return err
	default:
		if _, err := h.sendOTP(r.Context(), user, models.OTPReset); err != nil {
			return err
		}
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "if the account exists, a reset code has been sent", nil)
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) error {
	var payload resetPasswordRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	user, err := h.Store.GetUserByEmail(r.Context(), payload.Email)
	if errors.Is(err, store.ErrNotFound) {
		return servererrors.BadRequest(servererrors.ErrInvalidOTP.Error(), nil)
	}
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		return err
	}

	err = h.Store.WithTx(r.Context(), func(tx *store.Store) error {
		if err := tx.ConsumeOTP(r.Context(), user.ID, models.OTPReset, payload.Code); err != nil {
			return err
		}
		if err := tx.SetUserPassword(r.Context(), user.ID, hash); err != nil {
			return err
		}
		// the code proved control of the account's contact details
		return tx.SetUserVerified(r.Context(), user.ID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return servererrors.BadRequest(servererrors.ErrInvalidOTP.Error(), nil)
	}
	if err != nil {
		return err
	}
	slog.Info("Password reset", "userId", user.ID)
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "password updated, you can now log in", nil)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) error {
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", currentUser(r))
}
