package domain

import (
	"github.com/shopspring/decimal"
)

// PaymentStatus статус платежа у провайдера
type PaymentStatus string

const (
	PaymentStatusApproved   PaymentStatus = "approved"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusInProcess  PaymentStatus = "in_process"
	PaymentStatusRejected   PaymentStatus = "rejected"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusChargeback PaymentStatus = "charged_back"
	PaymentStatusUnknown    PaymentStatus = "unknown"
)

// ParsePaymentStatus normalizes the provider's status string.
func ParsePaymentStatus(s string) PaymentStatus {
	switch st := PaymentStatus(s); st {
	case PaymentStatusApproved, PaymentStatusPending, PaymentStatusInProcess, PaymentStatusRejected,
		PaymentStatusCancelled, PaymentStatusRefunded, PaymentStatusChargeback:
		return st
	default:
		return PaymentStatusUnknown
	}
}

// PaymentIntentRequest is what the issuer asks the provider to create.
type PaymentIntentRequest struct {
	ItemID           string
	Title            string
	Quantity         int
	UnitPrice        decimal.Decimal
	Currency         string
	CorrelationToken string
	NotificationURL  string
	Metadata         map[string]string
}

// PaymentIntent is the provider's answer: its intent id and where to send the user.
type PaymentIntent struct {
	ID          string
	RedirectURL string
}

// ProviderPayment is a payment as resolved from the provider, normalized
// from whatever response shape the provider used.
type ProviderPayment struct {
	ID               string
	Status           PaymentStatus
	CorrelationToken string
	// IntentRef is the provider intent id the payment belongs to, when the provider exposes it.
	IntentRef string
	// OrderRef is the merchant order grouping the payment, when present.
	OrderRef string
}

// Approved reports whether the payment reached the provider's approved terminal state.
func (p *ProviderPayment) Approved() bool {
	return p.Status == PaymentStatusApproved
}

// ProviderOrder is a merchant order with the payments it references.
type ProviderOrder struct {
	ID               string
	IntentRef        string
	CorrelationToken string
	PaymentIDs       []string
}
