package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mauricegift/jewell-haven-sub000/internal/auth"
	"github.com/mauricegift/jewell-haven-sub000/internal/checkout"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
)

type contextKey struct{}

var userKey = contextKey{}

// Authenticator resolves the bearer token to a user. The user is reloaded on
// every request so role changes and deletions take effect immediately.
type Authenticator struct {
	Tokens *auth.TokenManager
	Store  *store.Store
}

func (a *Authenticator) userFromRequest(r *http.Request) (*models.User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, servererrors.Unauthorized(servererrors.ErrNoAccessToken)
	}

	claims, err := a.Tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, servererrors.Unauthorized(auth.ErrInvalidToken)
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, servererrors.Unauthorized(auth.ErrInvalidToken)
	}

	user, err := a.Store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, servererrors.Unauthorized(servererrors.ErrUnauthorized)
	}
	return user, err
}

// Authenticate requires a valid bearer token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return handle(func(w http.ResponseWriter, r *http.Request) error {
		user, err := a.userFromRequest(r)
		if err != nil {
			return err
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		return nil
	})
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return handle(func(w http.ResponseWriter, r *http.Request) error {
		user := currentUser(r)
		if user == nil {
			return servererrors.Unauthorized(servererrors.ErrUnauthorized)
		}
		if !user.Role.IsAdmin() {
			return servererrors.Forbidden(servererrors.ErrForbidden)
		}
		next.ServeHTTP(w, r)
		return nil
	})
}

func RequireSuperAdmin(next http.Handler) http.Handler {
	return handle(func(w http.ResponseWriter, r *http.Request) error {
		user := currentUser(r)
		if user == nil {
			return servererrors.Unauthorized(servererrors.ErrUnauthorized)
		}
		if user.Role != models.RoleSuperAdmin {
			return servererrors.Forbidden(servererrors.ErrForbidden)
		}
		next.ServeHTTP(w, r)
		return nil
	})
}

func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

func actorOf(r *http.Request) checkout.Actor {
	u := currentUser(r)
	if u == nil {
		return checkout.Actor{}
	}
	return checkout.Actor{UserID: u.ID, Role: u.Role}
}
