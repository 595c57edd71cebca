package servererrors

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidRequestPayload = errors.New("invalid request payload")
	ErrValidationFailed      = errors.New("validation failed")
	ErrURLQueryParams        = errors.New("invalid url query parameters")
	ErrInvalidID             = errors.New("invalid id")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNoAccessToken         = errors.New("missing bearer token")
	ErrForbidden             = errors.New("you do not have access to this resource")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrAccountNotVerified    = errors.New("account not verified, a new code has been sent")
	ErrInvalidOTP            = errors.New("invalid or expired code")
	ErrEmailTaken            = errors.New("an account with this email already exists")
	ErrNotFound              = errors.New("resource not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrNoOrderItems          = errors.New("order has no available products")
	ErrOrderAlreadyPaid      = errors.New("order is already paid")
	ErrNotMpesaOrder         = errors.New("order is not an M-Pesa order")
	ErrOrderNotCancellable   = errors.New("order can no longer be cancelled")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrTooManyRequests       = errors.New("too many requests, please try again later")
	ErrForbiddenOrigin       = errors.New("request origin not allowed")
	ErrInternal              = errors.New("something went wrong")
)

// ServerError is an error that carries the HTTP status it should be
// reported with. Errors holds optional field-level details.
type ServerError struct {
	StatusCode int
	Message    string
	Errors     any
}

func New(statusCode int, message string, errs any) *ServerError {
	return &ServerError{
		StatusCode: statusCode,
		Message:    message,
		Errors:     errs,
	}
}

func (e *ServerError) Error() string {
	return e.Message
}

func BadRequest(message string, errs any) *ServerError {
	return New(http.StatusBadRequest, message, errs)
}

func Unauthorized(err error) *ServerError {
	return New(http.StatusUnauthorized, err.Error(), nil)
}

func Forbidden(err error) *ServerError {
	return New(http.StatusForbidden, err.Error(), nil)
}

func NotFound(err error) *ServerError {
	return New(http.StatusNotFound, err.Error(), nil)
}

func Conflict(err error) *ServerError {
	return New(http.StatusConflict, err.Error(), nil)
}

// BadGateway reports a failure of an upstream service, keeping its message.
func BadGateway(message string, details any) *ServerError {
	if message == "" {
		message = ErrGatewayUnavailable.Error()
	}
	return New(http.StatusBadGateway, message, details)
}
