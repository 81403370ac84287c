// Package adapter defines the boundary to the remote payment processor.
// Implementations handle all provider-specific API calls, including request
// signing, retries and error mapping, and normalize raw provider responses
// into the Charge, ChargePermission and Refund types below.
package adapter

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Charge states reported by the provider in StatusDetails.State.
const (
	StateAuthorizationInitiated = "AuthorizationInitiated"
	StateAuthorized             = "Authorized"
	StateCaptureInitiated       = "CaptureInitiated"
	StateCaptured               = "Captured"
	StateCanceled               = "Canceled"
	StateDeclined               = "Declined"
)

// Price is an amount in a given currency. Amounts arrive as decimal strings.
type Price struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// StatusReason is one entry of StatusDetails.Reasons.
type StatusReason struct {
	ReasonCode        string `json:"reasonCode"`
	ReasonDescription string `json:"reasonDescription"`
}

// StatusDetails is the status block common to every provider object.
type StatusDetails struct {
	State                string         `json:"state"`
	ReasonCode           string         `json:"reasonCode,omitempty"`
	ReasonDescription    string         `json:"reasonDescription,omitempty"`
	Reasons              []StatusReason `json:"reasons,omitempty"`
	LastUpdatedTimestamp string         `json:"lastUpdatedTimestamp,omitempty"`
}

// ReasonCodes returns the codes of all Reasons followed by the top-level
// ReasonCode, if one is set.
func (s StatusDetails) ReasonCodes() []string {
	codes := make([]string, 0, len(s.Reasons)+1)
	for _, r := range s.Reasons {
		codes = append(codes, r.ReasonCode)
	}
	if s.ReasonCode != "" {
		codes = append(codes, s.ReasonCode)
	}
	return codes
}

// Charge is an attempt to collect payment for an order.
type Charge struct {
	ChargeID            string        `json:"chargeId"`
	ChargePermissionID  string        `json:"chargePermissionId"`
	ChargeAmount        Price         `json:"chargeAmount"`
	CaptureAmount       Price         `json:"captureAmount"`
	RefundedAmount      Price         `json:"refundedAmount"`
	StatusDetails       StatusDetails `json:"statusDetails"`
	CreationTimestamp   string        `json:"creationTimestamp,omitempty"`
	ExpirationTimestamp string        `json:"expirationTimestamp,omitempty"`
}

// ChargePermission is the buyer's authorization to be charged.
type ChargePermission struct {
	ChargePermissionID string        `json:"chargePermissionId"`
	ChargeAmountLimit  Price         `json:"chargeAmountLimit"`
	StatusDetails      StatusDetails `json:"statusDetails"`
}

// Refund is money returned to the buyer against a captured charge.
type Refund struct {
	RefundID      string        `json:"refundId"`
	ChargeID      string        `json:"chargeId"`
	RefundAmount  Price         `json:"refundAmount"`
	StatusDetails StatusDetails `json:"statusDetails"`
}

// APIError is returned for provider replies outside the 2xx range.
type APIError struct {
	HTTPStatus int    `json:"-"`
	ReasonCode string `json:"reasonCode"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment api: HTTP %d %s: %s", e.HTTPStatus, e.ReasonCode, e.Message)
}

// PaymentAPI is implemented by each payment processor adapter.
type PaymentAPI interface {
	// CancelCharge closes the authorization behind a charge.
	CancelCharge(ctx context.Context, chargeID string) (*Charge, error)
	// CaptureCharge captures the full authorized amount of a charge.
	CaptureCharge(ctx context.Context, chargeID string) (*Charge, error)
	// RefundCharge refunds the full captured amount of a charge.
	RefundCharge(ctx context.Context, chargeID string) (*Refund, error)
	GetCharge(ctx context.Context, chargeID string) (*Charge, error)
	GetChargePermission(ctx context.Context, chargePermissionID string) (*ChargePermission, error)

	// GetName returns the name of the provider (e.g., "amazon_pay").
	GetName() string
}
