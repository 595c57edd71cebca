package mpesa

import (
	"encoding/json"
	"fmt"
)

// Callback is the result the gateway posts back once the customer has
// answered (or ignored) the STK prompt.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Amount            float64
	PhoneNumber       string
}

// Paid reports a successful payment carrying a receipt.
func (c *Callback) Paid() bool {
	return c.ResultCode == 0 && c.ReceiptNumber != ""
}

type callbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

type stkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []callbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// ParseCallback decodes the Daraja Body.stkCallback envelope.
func ParseCallback(raw []byte) (*Callback, error) {
	var env struct {
		Body struct {
			STKCallback *stkCallback `json:"stkCallback"`
		} `json:"Body"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode callback: %w", err)
	}
	cb := env.Body.STKCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("callback is missing Body.stkCallback.CheckoutRequestID")
	}

	out := &Callback{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	if cb.CallbackMetadata == nil {
		return out, nil
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			_ = json.Unmarshal(item.Value, &out.ReceiptNumber)
		case "Amount":
			_ = json.Unmarshal(item.Value, &out.Amount)
		case "PhoneNumber":
			var n json.Number
			if err := json.Unmarshal(item.Value, &n); err == nil {
				out.PhoneNumber = n.String()
			} else {
				_ = json.Unmarshal(item.Value, &out.PhoneNumber)
			}
		}
	}
	return out, nil
}
