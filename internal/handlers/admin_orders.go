package handlers

import (
	"net/http"

	"github.com/mauricegift/jewell-haven-sub000/internal/checkout"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
)

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

type paymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus" validate:"required"`
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	page, limit, err := pageParams(q, 20)
	if err != nil {
		return err
	}
	f := store.OrderFilter{
		Status:        models.OrderStatus(q.Get("status")),
		PaymentStatus: models.PaymentStatus(q.Get("paymentStatus")),
		Limit:         limit,
		Offset:        (page - 1) * limit,
	}
	if f.Status != "" && !f.Status.Valid() {
		return servererrors.BadRequest(checkout.ErrInvalidStatus.Error(), nil)
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return servererrors.BadRequest(checkout.ErrInvalidPayStatus.Error(), nil)
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

func (h *AdminHandler) getOrder(w http.ResponseWriter, r *http.Request) error {
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

func (h *AdminHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var payload orderStatusRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	order, err := h.Checkout.UpdateStatus(r.Context(), id, payload.Status)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "order status updated", order)
}

func (h *AdminHandler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var payload paymentStatusRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	order, err := h.Checkout.UpdatePaymentStatus(r.Context(), id, payload.PaymentStatus)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "payment status updated", order)
}

func (h *AdminHandler) deleteOrder(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := h.Store.DeleteOrder(r.Context(), id); err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "order deleted", nil)
}
