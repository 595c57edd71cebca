package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
)

var (
	errSelfRoleChange = errors.New("you cannot change your own role")
	errSelfDelete     = errors.New("you cannot delete your own account")
	errUserHasOrders  = errors.New("user has orders and cannot be deleted")
)

// AdminHandler serves the back-office: dashboard, orders, products and users.
type AdminHandler struct {
	*Config
}

type roleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=user admin superadmin"`
}

func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.Store.GetDashboardStats(r.Context())
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", stats)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) error {
	page, limit, err := pageParams(r.URL.Query(), 20)
	if err != nil {
		return err
	}
	users, total, err := h.Store.ListUsers(r.Context(), limit, (page-1)*limit)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", map[string]any{
		"users":      users,
		"pagination": newPagination(page, limit, total),
	})
}

func (h *AdminHandler) updateUserRole(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var payload roleRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	actor := currentUser(r)
	if id == actor.ID {
		return servererrors.BadRequest(errSelfRoleChange.Error(), nil)
	}

	if err := h.Store.SetUserRole(r.Context(), id, payload.Role); err != nil {
		return err
	}
	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		return err
	}
	slog.Info("User role changed", "userId", id, "role", payload.Role, "by", actor.ID)
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "role updated", user)
}

// deleteUser removes a customer account. Only a superadmin may remove
// another admin, and accounts with order history are kept.
func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	actor := currentUser(r)
	if id == actor.ID {
		return servererrors.BadRequest(errSelfDelete.Error(), nil)
	}

	target, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		return err
	}
	if target.Role.IsAdmin() && actor.Role != models.RoleSuperAdmin {
		return servererrors.Forbidden(servererrors.ErrForbidden)
	}

	err = h.Store.DeleteUser(r.Context(), id)
	if errors.Is(err, store.ErrInUse) {
		return servererrors.Conflict(errUserHasOrders)
	}
	if err != nil {
		return err
	}
	slog.Info("User deleted", "userId", id, "by", actor.ID)
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "user deleted", nil)
}
