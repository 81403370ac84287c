package mock

import (
	"context"
	"sync"

	"github.com/yourorg/amazonpay-order-admin/internal/adapter"
)

// Call is one recorded invocation of the MockAdapter.
type Call struct {
	Operation string
	ID        string
}

// MockAdapter is a mock implementation of the PaymentAPI interface for testing.
// Each operation calls its Func field when set; otherwise it returns a
// plausible default so the adapter can back a demo server.
type MockAdapter struct {
	Name string

	CancelChargeFunc        func(ctx context.Context, chargeID string) (*adapter.Charge, error)
	CaptureChargeFunc       func(ctx context.Context, chargeID string) (*adapter.Charge, error)
	RefundChargeFunc        func(ctx context.Context, chargeID string) (*adapter.Refund, error)
	GetChargeFunc           func(ctx context.Context, chargeID string) (*adapter.Charge, error)
	GetChargePermissionFunc func(ctx context.Context, id string) (*adapter.ChargePermission, error)

	mu    sync.Mutex
	calls []Call
}

// NewMockAdapter creates a new MockAdapter.
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{Name: name}
}

func (m *MockAdapter) record(op, id string) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Operation: op, ID: id})
	m.mu.Unlock()
}

// Calls returns a copy of the recorded calls in order.
func (m *MockAdapter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CancelCharge implements the PaymentAPI interface.
func (m *MockAdapter) CancelCharge(ctx context.Context, chargeID string) (*adapter.Charge, error) {
	m.record("CancelCharge", chargeID)
	if m.CancelChargeFunc != nil {
		return m.CancelChargeFunc(ctx, chargeID)
	}
	return &adapter.Charge{ChargeID: chargeID, StatusDetails: adapter.StatusDetails{State: adapter.StateCanceled}}, nil
}

// CaptureCharge implements the PaymentAPI interface.
func (m *MockAdapter) CaptureCharge(ctx context.Context, chargeID string) (*adapter.Charge, error) {
	m.record("CaptureCharge", chargeID)
	if m.CaptureChargeFunc != nil {
		return m.CaptureChargeFunc(ctx, chargeID)
	}
	return &adapter.Charge{ChargeID: chargeID, StatusDetails: adapter.StatusDetails{State: adapter.StateCaptured}}, nil
}

// RefundCharge implements the PaymentAPI interface.
func (m *MockAdapter) RefundCharge(ctx context.Context, chargeID string) (*adapter.Refund, error) {
	m.record("RefundCharge", chargeID)
	if m.RefundChargeFunc != nil {
		return m.RefundChargeFunc(ctx, chargeID)
	}
	return &adapter.Refund{
		RefundID:      chargeID + "-R001",
		ChargeID:      chargeID,
		StatusDetails: adapter.StatusDetails{State: "RefundInitiated"},
	}, nil
}

// GetCharge implements the PaymentAPI interface.
func (m *MockAdapter) GetCharge(ctx context.Context, chargeID string) (*adapter.Charge, error) {
	m.record("GetCharge", chargeID)
	if m.GetChargeFunc != nil {
		return m.GetChargeFunc(ctx, chargeID)
	}
	return &adapter.Charge{ChargeID: chargeID, StatusDetails: adapter.StatusDetails{State: adapter.StateAuthorized}}, nil
}

// GetChargePermission implements the PaymentAPI interface.
func (m *MockAdapter) GetChargePermission(ctx context.Context, id string) (*adapter.ChargePermission, error) {
	m.record("GetChargePermission", id)
	if m.GetChargePermissionFunc != nil {
		return m.GetChargePermissionFunc(ctx, id)
	}
	return &adapter.ChargePermission{ChargePermissionID: id, StatusDetails: adapter.StatusDetails{State: "Chargeable"}}, nil
}

// GetName implements the PaymentAPI interface.
func (m *MockAdapter) GetName() string {
	return m.Name
}
