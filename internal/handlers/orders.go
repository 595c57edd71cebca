package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mauricegift/jewell-haven-sub000/internal/checkout"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/invoice"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
)

type OrderHandler struct {
	*Config
}

func (h *OrderHandler) create(w http.ResponseWriter, r *http.Request) error {
	var payload checkout.CreateOrderInput
	if err := decode(r, &payload); err != nil {
		return err
	}
	user := currentUser(r)
	payload.UserID = user.ID
	if payload.Delivery.Email == "" {
		payload.Delivery.Email = user.Email
	}

	order, err := h.Checkout.CreateOrder(r.Context(), payload)
	if err != nil {
		return err
	}

	// the order now holds what the cart held
	if err := h.Store.ClearCart(r.Context(), user.ID); err != nil {
		slog.Warn("Failed to clear cart after checkout", "userId", user.ID, "error", err)
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusCreated, "order placed", order)
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	page, limit, err := pageParams(q, 20)
	if err != nil {
		return err
	}
	f := store.OrderFilter{
		UserID: currentUser(r).ID,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if v := q.Get("status"); v != "" {
		f.Status = models.OrderStatus(v)
		if !f.Status.Valid() {
			return servererrors.BadRequest(checkout.ErrInvalidStatus.Error(), nil)
		}
	}

	orders, total, err := h.Store.ListOrders(r.Context(), f)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", map[string]any{
		"orders":     orders,
		"pagination": newPagination(page, limit, total),
	})
}

func (h *OrderHandler) get(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	order, err := h.Checkout.GetOrder(r.Context(), actorOf(r), id)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", order)
}

func (h *OrderHandler) cancel(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	order, err := h.Checkout.CancelOrder(r.Context(), actorOf(r), id)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "order cancelled", order)
}

func (h *OrderHandler) invoice(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && format != invoice.FormatPDF && format != invoice.FormatText {
		return servererrors.BadRequest("format must be pdf or text", nil)
	}

	order, err := h.Checkout.GetOrder(r.Context(), actorOf(r), id)
	if err != nil {
		return err
	}
	doc, err := h.Invoices.Render(order, format)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(doc.Data)
	return err
}
