package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/shopspring/decimal"
)

const SignatureHeader = "x-paystack-signature"

// Webhook event names
const (
	EventChargeSuccess    = "charge.success"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

// VerifySignature checks the hex HMAC-SHA512 of body under secret against signature.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature Paystack would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func ParseEvent(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "malformed webhook payload", err)
	}
	if e.Event == "" {
		return nil, apperr.Validation("webhook event is missing")
	}
	return &e, nil
}

func (e *Event) Charge() (*Charge, error) {
	var c Charge
	if err := json.Unmarshal(e.Data, &c); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "malformed charge data", err)
	}
	if c.Reference == "" {
		return nil, apperr.Validation("charge reference is missing")
	}
	return &c, nil
}

func (e *Event) Transfer() (*Transfer, error) {
	var t Transfer
	if err := json.Unmarshal(e.Data, &t); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "malformed transfer data", err)
	}
	if t.Reference == "" {
		return nil, apperr.Validation("transfer reference is missing")
	}
	return &t, nil
}

// Charge is the transaction object shared by verify responses and charge events.
type Charge struct {
	ID        int64    `json:"id"`
	Status    string   `json:"status"`
	Reference string   `json:"reference"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
	Channel   string   `json:"channel"`
	PaidAt    string   `json:"paid_at"`
	Customer  Customer `json:"customer"`
	Metadata  Metadata `json:"metadata"`
}

type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (c Customer) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (c *Charge) Succeeded() bool {
	return c.Status == "success"
}

func (c *Charge) AmountMajor() decimal.Decimal {
	return FromMinorUnits(c.Amount)
}

func (c *Charge) Verification() *Verification {
	v := &Verification{
		Reference:     c.Reference,
		Status:        c.Status,
		Paid:          c.Succeeded(),
		Amount:        c.AmountMajor(),
		Currency:      strings.ToUpper(c.Currency),
		Channel:       c.Channel,
		CustomerEmail: c.Customer.Email,
		CustomerName:  c.Customer.Name(),
		Metadata:      c.Metadata,
	}
	if t, err := time.Parse(time.RFC3339, c.PaidAt); err == nil {
		v.PaidAt = &t
	}
	return v
}

type Transfer struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
}

// Metadata is what we attach to a charge to route it back to our records.
// Paystack echoes it as an object, a JSON-encoded string, or "" when absent.
type Metadata struct {
	Purpose       string `json:"purpose,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	type plain Metadata
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*m = Metadata{}
			return nil
		}
		b = []byte(s)
	}
	if string(b) == "null" {
		*m = Metadata{}
		return nil
	}

	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		// unknown shapes are treated as no metadata
		*m = Metadata{}
		return nil
	}
	*m = Metadata(p)
	return nil
}
