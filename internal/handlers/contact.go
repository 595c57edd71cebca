package handlers

import (
	"net/http"
	"strings"

	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
)

// ContactHandler serves the public contact form and the admin inbox.
type ContactHandler struct {
	*Config
}

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"max=20"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

type contactStatusRequest struct {
	Status models.ContactStatus `json:"status" validate:"required,oneof=new read replied archived"`
}

type contactReplyRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
}

func (h *ContactHandler) create(w http.ResponseWriter, r *http.Request) error {
	var payload contactRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	c := &models.Contact{
		Name:    strings.TrimSpace(payload.Name),
		Email:   strings.TrimSpace(payload.Email),
		Phone:   strings.TrimSpace(payload.Phone),
		Subject: strings.TrimSpace(payload.Subject),
		Message: strings.TrimSpace(payload.Message),
	}
	if err := h.Store.CreateContact(r.Context(), c); err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusCreated, "thank you, we will get back to you soon", c)
}

func (h *ContactHandler) list(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	page, limit, err := pageParams(q, 20)
	if err != nil {
		return err
	}
	status := models.ContactStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		return servererrors.BadRequest("invalid contact status", nil)
	}

	contacts, total, err := h.Store.ListContacts(r.Context(), status, limit, (page-1)*limit)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", map[string]any{
		"contacts":   contacts,
		"pagination": newPagination(page, limit, total),
	})
}

func (h *ContactHandler) updateStatus(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var payload contactStatusRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	if err := h.Store.SetContactStatus(r.Context(), id, payload.Status); err != nil {
		return err
	}
	c, err := h.Store.GetContact(r.Context(), id)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "status updated", c)
}

// reply stores the reply under the admin's name and emails it. An email
// failure is reported but the reply is kept.
func (h *ContactHandler) reply(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var payload contactReplyRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	c, err := h.Store.GetContact(r.Context(), id)
	if err != nil {
		return err
	}

	admin := currentUser(r)
	adminName := admin.Name
	if adminName == "" {
		adminName = admin.Email
	}
	reply := &models.ContactReply{
		ContactID: c.ID,
		AdminID:   admin.ID,
		AdminName: adminName,
		Message:   strings.TrimSpace(payload.Message),
	}
	if err := h.Store.AddContactReply(r.Context(), reply); err != nil {
		return err
	}
	c.Status = models.ContactReplied
	c.Replies = append(c.Replies, *reply)

	result := h.Notifier.ContactReply(r.Context(), c, reply)
	message := "reply sent"
	if !result.Sent {
		message = "reply saved but the email could not be sent"
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, message, map[string]any{
		"contact":      c,
		"notification": result,
	})
}

func (h *ContactHandler) delete(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := h.Store.DeleteContact(r.Context(), id); err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "message deleted", nil)
}
