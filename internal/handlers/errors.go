package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/mauricegift/jewell-haven-sub000/internal/checkout"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/mpesa"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
	"github.com/mauricegift/jewell-haven-sub000/internal/validate"
)

// handle turns an APIHandler into an http.HandlerFunc. Every error a handler
// returns is written here as a JSON error body.
func handle(h handlerutils.APIHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		serverError := toServerError(err)
		if serverError.StatusCode >= http.StatusInternalServerError && serverError.StatusCode != http.StatusBadGateway {
			slog.Error("Request failed", "method", r.Method, "path", r.URL.Path,
				"requestId", middleware.GetReqID(r.Context()), "error", err)
		} else {
			slog.Debug("Request rejected", "method", r.Method, "path", r.URL.Path,
				"status", serverError.StatusCode, "error", err)
		}
		handlerutils.WriteErrorJSON(w, serverError.StatusCode, serverError.Message, serverError.Errors)
	}
}

func toServerError(err error) *servererrors.ServerError {
	var serverError *servererrors.ServerError
	if errors.As(err, &serverError) {
		return serverError
	}

	var verrs validate.Errors
	if errors.As(err, &verrs) {
		return servererrors.BadRequest(verrs.Error(), []validate.FieldError(verrs))
	}

	var gatewayErr *mpesa.GatewayError
	if errors.As(err, &gatewayErr) {
		return servererrors.BadGateway(gatewayErr.Message, nil)
	}

	switch {
	case errors.Is(err, mpesa.ErrInvalidPhone):
		return servererrors.BadRequest(err.Error(), nil)
	case errors.Is(err, mpesa.ErrNotConfigured):
		return servererrors.BadGateway(err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		return servererrors.NotFound(servererrors.ErrNotFound)
	case errors.Is(err, store.ErrDuplicate):
		return servererrors.Conflict(err)
	case errors.Is(err, store.ErrInUse):
		return servererrors.Conflict(store.ErrInUse)
	case errors.Is(err, checkout.ErrForbidden):
		return servererrors.Forbidden(servererrors.ErrForbidden)
	case errors.Is(err, checkout.ErrNoItems):
		return servererrors.BadRequest(servererrors.ErrNoOrderItems.Error(), nil)
	case errors.Is(err, checkout.ErrAlreadyPaid):
		return servererrors.Conflict(servererrors.ErrOrderAlreadyPaid)
	case errors.Is(err, checkout.ErrNotMpesa):
		return servererrors.BadRequest(servererrors.ErrNotMpesaOrder.Error(), nil)
	case errors.Is(err, checkout.ErrNotCancellable):
		return servererrors.Conflict(servererrors.ErrOrderNotCancellable)
	case errors.Is(err, checkout.ErrInvalidStatus), errors.Is(err, checkout.ErrInvalidPayStatus):
		return servererrors.BadRequest(err.Error(), nil)
	}

	return servererrors.New(http.StatusInternalServerError, err.Error(), nil)
}

// decode parses and validates a JSON body.
func decode(r *http.Request, payload any) error {
	if err := handlerutils.ParseJSON(r, payload); err != nil {
		return servererrors.BadRequest(servererrors.ErrInvalidRequestPayload.Error(), err.Error())
	}
	return validate.StructFields(payload)
}
