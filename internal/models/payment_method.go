package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment method kinds
const (
	PaymentMethodPaybill     = "mobile_money_paybill"
	PaymentMethodTill        = "mobile_money_till"
	PaymentMethodPhone       = "mobile_money_phone"
	PaymentMethodBankAccount = "bank_account"
)

func IsValidPaymentMethodKind(k string) bool {
	switch k {
	case PaymentMethodPaybill, PaymentMethodTill, PaymentMethodPhone, PaymentMethodBankAccount:
		return true
	}
	return false
}

// PaymentMethod is a seller's payout destination.
type PaymentMethod struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Country       string    `json:"country"`
	Kind          string    `json:"kind"`
	Label         string    `json:"label"`
	Provider      *string   `json:"provider,omitempty"`
	AccountName   *string   `json:"account_name,omitempty"`
	AccountNumber *string   `json:"account_number,omitempty"`
	BankCode      *string   `json:"bank_code,omitempty"`
	PhoneNumber   *string   `json:"phone_number,omitempty"`
	PaybillNumber *string   `json:"paybill_number,omitempty"`
	TillNumber    *string   `json:"till_number,omitempty"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
}

// MissingField returns the name of the first destination field the kind requires
// but which is empty, or "" if the method is complete.
func (p *PaymentMethod) MissingField() string {
	empty := func(s *string) bool { return s == nil || *s == "" }
	switch p.Kind {
	case PaymentMethodPaybill:
		if empty(p.PaybillNumber) {
			return "paybill_number"
		}
		if empty(p.AccountNumber) {
			return "account_number"
		}
	case PaymentMethodTill:
		if empty(p.TillNumber) {
			return "till_number"
		}
	case PaymentMethodPhone:
		if empty(p.PhoneNumber) {
			return "phone_number"
		}
	case PaymentMethodBankAccount:
		if empty(p.AccountNumber) {
			return "account_number"
		}
		if empty(p.BankCode) {
			return "bank_code"
		}
	}
	return ""
}
