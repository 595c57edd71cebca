package handlers

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/mpesa"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	*Config
}

type stkPushRequest struct {
	OrderID     int64           `json:"orderId" validate:"required,gt=0"`
	PhoneNumber string          `json:"phoneNumber" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

type verifyPaymentRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId" validate:"required"`
}

func (h *PaymentHandler) stkPush(w http.ResponseWriter, r *http.Request) error {
	var payload stkPushRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	phone, err := mpesa.NormalizePhone(payload.PhoneNumber)
	if err != nil {
		return servererrors.BadRequest("phoneNumber must be a valid Safaricom number", nil)
	}

	res, err := h.Checkout.InitiatePayment(r.Context(), actorOf(r), payload.OrderID, phone, payload.Amount)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "payment request sent to your phone", res)
}

// verify relays the gateway's answer verbatim after applying it to the
// matching order.
func (h *PaymentHandler) verify(w http.ResponseWriter, r *http.Request) error {
	var payload verifyPaymentRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	res, err := h.Checkout.VerifyPayment(r.Context(), payload.CheckoutRequestID)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(res.Raw)
	return err
}

// callback receives the gateway's webhook. It acknowledges anything it
// could parse, including callbacks for unknown checkouts, so the gateway
// stops retrying.
func (h *PaymentHandler) callback(w http.ResponseWriter, r *http.Request) error {
	if token := h.App.Mpesa.CallbackToken; token != "" {
		given := r.URL.Query().Get("token")
		if given == "" {
			given = r.Header.Get("X-Callback-Token")
		}
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			slog.Warn("Rejected M-Pesa callback with bad token", "ip", clientIP(r))
			return servererrors.Unauthorized(servererrors.ErrUnauthorized)
		}
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return servererrors.BadRequest(servererrors.ErrInvalidRequestPayload.Error(), nil)
	}
	cb, err := mpesa.ParseCallback(raw)
	if err != nil {
		return servererrors.BadRequest(err.Error(), nil)
	}

	slog.Info("M-Pesa callback received", "checkoutRequestId", cb.CheckoutRequestID,
		"resultCode", cb.ResultCode, "receipt", cb.ReceiptNumber)
	if err := h.Checkout.HandleCallback(r.Context(), cb); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		slog.Warn("M-Pesa callback for unknown checkout", "checkoutRequestId", cb.CheckoutRequestID)
	}
	return handlerutils.WriteJSON(w, http.StatusOK, map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"})
}
