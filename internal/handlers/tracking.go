package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
	"github.com/shopspring/decimal"
)

// trackingView is what anyone holding an order number may see. Delivery
// contact details stay private.
type trackingView struct {
	OrderNumber   string               `json:"orderNumber"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	ItemCount     int                  `json:"itemCount"`
	Total         decimal.Decimal      `json:"total"`
	DeliveryCity  string               `json:"deliveryCity"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

func (h *OrderHandler) track(w http.ResponseWriter, r *http.Request) error {
	number := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	if number == "" {
		return servererrors.BadRequest("order number is required", nil)
	}

	order, err := h.Store.GetOrderByNumber(r.Context(), number)
	if errors.Is(err, store.ErrNotFound) {
		return servererrors.NotFound(servererrors.ErrOrderNotFound)
	}
	if err != nil {
		return err
	}

	count := 0
	for _, it := range order.Items {
		count += it.Quantity
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", trackingView{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		ItemCount:     count,
		Total:         order.Total,
		DeliveryCity:  order.DeliveryCity,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	})
}
