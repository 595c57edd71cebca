// Package mpesa talks to the M-Pesa STK push aggregator.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/config"
	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured = errors.New("mpesa gateway is not configured")
	ErrInvalidPhone  = errors.New("invalid phone number")
)

// GatewayError is returned when the aggregator answers but refuses the
// request. Message is the gateway's own wording.
// A zero StatusCode means the gateway could not be reached at all and Err
// holds the transport error.
type GatewayError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mpesa gateway error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("mpesa gateway error (%d): %s", e.StatusCode, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type Client struct {
	baseURL     string
	apiKey      string
	callbackURL string
	http        *http.Client
	log         *slog.Logger
}

func NewClient(cfg config.MpesaConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		callbackURL: cfg.CallbackURL,
		http:        &http.Client{Timeout: timeout},
		log:         slog.With("component", "mpesa"),
	}
}

type STKPushRequest struct {
	PhoneNumber      string `json:"phoneNumber"`
	Amount           int64  `json:"amount"`
	AccountReference string `json:"accountReference"`
	TransactionDesc  string `json:"transactionDesc"`
	CallbackURL      string `json:"callbackUrl,omitempty"`
}

type STKPushResult struct {
	CheckoutRequestID string          `json:"checkoutRequestId"`
	MerchantRequestID string          `json:"merchantRequestId,omitempty"`
	CustomerMessage   string          `json:"customerMessage,omitempty"`
	Raw               json.RawMessage `json:"-"`
}

// STKPush asks the gateway to prompt the customer's phone for payment.
// phone is normalised and amount rounded up to whole shillings first.
func (c *Client) STKPush(ctx context.Context, phone string, amount decimal.Decimal, reference, description string) (*STKPushResult, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	req := STKPushRequest{
		PhoneNumber:      normalized,
		Amount:           WholeAmount(amount),
		AccountReference: reference,
		TransactionDesc:  description,
		CallbackURL:      c.callbackURL,
	}

	raw, err := c.post(ctx, "/stkpush", req)
	if err != nil {
		return nil, err
	}

	var body struct {
		Success           *bool  `json:"success"`
		Message           string `json:"message"`
		Error             string `json:"error"`
		CheckoutRequestID string `json:"CheckoutRequestID"`
		MerchantRequestID string `json:"MerchantRequestID"`
		CustomerMessage   string `json:"CustomerMessage"`
		Data              *struct {
			CheckoutRequestID string `json:"CheckoutRequestID"`
			MerchantRequestID string `json:"MerchantRequestID"`
			CustomerMessage   string `json:"CustomerMessage"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to decode stk push response: %w", err)
	}

	res := &STKPushResult{
		CheckoutRequestID: body.CheckoutRequestID,
		MerchantRequestID: body.MerchantRequestID,
		CustomerMessage:   body.CustomerMessage,
		Raw:               raw,
	}
	if body.Data != nil && res.CheckoutRequestID == "" {
		res.CheckoutRequestID = body.Data.CheckoutRequestID
		res.MerchantRequestID = body.Data.MerchantRequestID
		res.CustomerMessage = body.Data.CustomerMessage
	}

	if (body.Success != nil && !*body.Success) || res.CheckoutRequestID == "" {
		msg := firstNonEmpty(body.Message, body.Error, "stk push was not accepted")
		return nil, &GatewayError{StatusCode: http.StatusOK, Message: msg}
	}

	c.log.Info("STK push accepted", "reference", reference, "checkoutRequestId", res.CheckoutRequestID)
	return res, nil
}

// VerifyResult is the decoded view of a verify response. Raw is the
// gateway's body exactly as received.
type VerifyResult struct {
	Success       bool
	Status        string
	ReceiptNumber string
	ResultDesc    string
	Raw           json.RawMessage
}

// Paid reports whether the gateway confirmed a completed payment with a
// receipt number.
func (v *VerifyResult) Paid() bool {
	if !v.Success || v.ReceiptNumber == "" {
		return false
	}
	s := strings.ToLower(v.Status)
	return s == "completed" || s == "success"
}

// Failed reports whether the gateway gave a terminal non-payment outcome.
func (v *VerifyResult) Failed() bool {
	switch strings.ToLower(v.Status) {
	case "failed", "cancelled", "canceled":
		return true
	}
	return false
}

// Verify queries the status of a checkout request.
func (c *Client) Verify(ctx context.Context, checkoutRequestID string) (*VerifyResult, error) {
	raw, err := c.post(ctx, "/verify", map[string]string{"checkoutRequestId": checkoutRequestID})
	if err != nil {
		return nil, err
	}
	return ParseVerify(raw)
}

// ParseVerify decodes a verify body. Fields are read either at the top
// level or under "data", whichever carries them.
func ParseVerify(raw []byte) (*VerifyResult, error) {
	type fields struct {
		Success            *bool  `json:"success"`
		Status             string `json:"status"`
		MpesaReceiptNumber string `json:"MpesaReceiptNumber"`
		ResultDesc         string `json:"ResultDesc"`
		Message            string `json:"message"`
	}
	var body struct {
		fields
		Data *fields `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	res := &VerifyResult{
		Status:        body.Status,
		ReceiptNumber: body.MpesaReceiptNumber,
		ResultDesc:    firstNonEmpty(body.ResultDesc, body.Message),
		Raw:           json.RawMessage(raw),
	}
	if body.Success != nil {
		res.Success = *body.Success
	}
	if d := body.Data; d != nil {
		if d.Success != nil && body.Success == nil {
			res.Success = *d.Success
		}
		res.Status = firstNonEmpty(res.Status, d.Status)
		res.ReceiptNumber = firstNonEmpty(res.ReceiptNumber, d.MpesaReceiptNumber)
		res.ResultDesc = firstNonEmpty(res.ResultDesc, d.ResultDesc, d.Message)
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("Gateway request failed", "path", path, "error", err)
		return nil, &GatewayError{Message: "payment gateway unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read mpesa response: %w", err)
	}
	c.log.Debug("Gateway response", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return nil, &GatewayError{
			StatusCode: resp.StatusCode,
			Message:    firstNonEmpty(e.Message, e.Error, http.StatusText(resp.StatusCode)),
		}
	}
	return raw, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
