// Package store models the host platform's order records as this service
// sees them: an order with ordered metadata, notes and attached refunds.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata keys written and read by the service.
const (
	MetaAPIVersion         = "amazon_payment_advanced_version"
	MetaChargePermissionID = "amazon_charge_permission_id"
	MetaChargeID           = "amazon_charge_id"
	MetaChargeStatus       = "amazon_charge_status"
	MetaRefundID           = "amazon_refund_id"
)

// Order statuses the service moves orders into.
const (
	StatusPending    = "pending"
	StatusOnHold     = "on-hold"
	StatusProcessing = "processing"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

var (
	// ErrNotFound is returned when an order or refund does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidRefundAmount is returned by CreateRefund for amounts that are
	// not positive or exceed what is left to refund on the order.
	ErrInvalidRefundAmount = errors.New("store: invalid refund amount")
)

// MetaEntry is one key/value pair of an order's metadata.
type MetaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Meta is an ordered, multi-valued metadata list.
type Meta []MetaEntry

// Get returns the first value stored under key, or "".
func (m Meta) Get(key string) string {
	for _, e := range m {
		if e.Key == key {
			return e.Value
		}
	}
	return ""
}

// All returns every value stored under key in insertion order.
func (m Meta) All(key string) []string {
	var out []string
	for _, e := range m {
		if e.Key == key {
			out = append(out, e.Value)
		}
	}
	return out
}

// Add appends a value without touching existing entries for key.
func (m *Meta) Add(key, value string) {
	*m = append(*m, MetaEntry{Key: key, Value: value})
}

// Update replaces the first entry for key, or appends one.
func (m *Meta) Update(key, value string) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	m.Add(key, value)
}

// Note is an order note visible to the operator.
type Note struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is the host platform's order record.
type Order struct {
	ID            int64           `json:"id"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	Total         decimal.Decimal `json:"total"`
	Meta          Meta            `json:"meta"`
	Notes         []Note          `json:"notes"`
}

// GetMeta returns the first metadata value for key.
func (o *Order) GetMeta(key string) string { return o.Meta.Get(key) }

// AddMeta appends a metadata value.
func (o *Order) AddMeta(key, value string) { o.Meta.Add(key, value) }

// UpdateMeta replaces or appends a metadata value.
func (o *Order) UpdateMeta(key, value string) { o.Meta.Update(key, value) }

// AddNote appends an order note.
func (o *Order) AddNote(content string, at time.Time) {
	o.Notes = append(o.Notes, Note{Content: content, CreatedAt: at})
}

// Refund is a local refund record attached to an order.
type Refund struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason,omitempty"`
	RefundedPayment bool            `json:"refunded_payment"`
	Meta            Meta            `json:"meta"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RefundRequest is the input of Repository.CreateRefund.
type RefundRequest struct {
	OrderID int64
	Amount  decimal.Decimal
	Reason  string
}

// Repository is the order store consumed by the service.
type Repository interface {
	GetOrder(ctx context.Context, id int64) (*Order, error)
	SaveOrder(ctx context.Context, order *Order) error
	// CreateRefund validates and persists a new refund for an order. Refunds
	// are indexed by OrderID; the order record itself is not rewritten.
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	SaveRefund(ctx context.Context, refund *Refund) error
	ListRefunds(ctx context.Context, orderID int64) ([]*Refund, error)
}

// RemainingRefundable returns order total minus the given refunds.
func RemainingRefundable(order *Order, refunds []*Refund) decimal.Decimal {
	remaining := order.Total
	for _, r := range refunds {
		remaining = remaining.Sub(r.Amount)
	}
	return remaining
}

// ValidateRefund checks a refund request against an order's existing refunds.
func ValidateRefund(order *Order, refunds []*Refund, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidRefundAmount
	}
	if amount.GreaterThan(RemainingRefundable(order, refunds)) {
		return ErrInvalidRefundAmount
	}
	return nil
}
