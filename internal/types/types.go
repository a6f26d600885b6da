package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SessionID is the opaque token that correlates chat turns for one client.
type SessionID string

// ChatRequest is the body of POST /api/chatbot/simple/.
type ChatRequest struct {
	RestaurantID int       `json:"restaurant_id"`
	SessionID    SessionID `json:"session_id"`
	Message      string    `json:"message"`
}

// ChatResponse is what the chatbot endpoint returns for one turn.
type ChatResponse struct {
	Reply     *string           `json:"reply,omitempty"`
	SessionID SessionID         `json:"session_id,omitempty"`
	Order     *OrderSnapshot    `json:"order,omitempty"`
	Payment   *PaymentDirective `json:"payment,omitempty"`
}

// OrderSnapshot is the server-authoritative cart. A nil snapshot means no
// active cart.
type OrderSnapshot struct {
	ID       int         `json:"id,omitempty"`
	Status   string      `json:"status,omitempty"`
	Items    []OrderItem `json:"items"`
	Subtotal Decimal     `json:"subtotal,omitempty"`
	Tax      Decimal     `json:"tax,omitempty"`
	Total    Decimal     `json:"total"`
}

type OrderItem struct {
	ID         int     `json:"id,omitempty"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	UnitPrice  Decimal `json:"unit_price,omitempty"`
	TotalPrice Decimal `json:"total_price"`
}

// PaymentDirective instructs the client to collect a payment. Amount is in
// minor currency units (paise for INR).
type PaymentDirective struct {
	Key      string `json:"key"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"order_id"`
}

// PaymentProof is what the payment provider hands back after a successful
// collection. It doubles as the verify endpoint body.
type PaymentProof struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

type VerifyResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// PopularItem is one entry of GET /api/chatbot/popular-items/.
type PopularItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type PopularItemsResponse struct {
	Items []PopularItem `json:"items"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Decimal carries a server-formatted money amount verbatim. The backend
// serializes amounts as strings ("120.00") but plain JSON numbers are
// accepted too. No arithmetic is ever done on it.
type Decimal string

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Decimal(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decimal: %w", err)
	}
	*d = Decimal(n.String())
	return nil
}

func (d Decimal) String() string { return string(d) }
