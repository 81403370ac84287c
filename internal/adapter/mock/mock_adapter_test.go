package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/amazonpay-order-admin/internal/adapter"
)

var _ adapter.PaymentAPI = (*MockAdapter)(nil)

func TestNewMockAdapter(t *testing.T) {
	m := NewMockAdapter("test_mock")
	require.NotNil(t, m)
	assert.Equal(t, "test_mock", m.GetName())
	assert.Empty(t, m.Calls())
}

func TestMockAdapter_DefaultBehavior(t *testing.T) {
	m := NewMockAdapter("default_mock")
	ctx := context.Background()

	charge, err := m.CaptureCharge(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, adapter.StateCaptured, charge.StatusDetails.State)

	charge, err = m.CancelCharge(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, adapter.StateCanceled, charge.StatusDetails.State)

	refund, err := m.RefundCharge(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "C1", refund.ChargeID)

	perm, err := m.GetChargePermission(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "P1", perm.ChargePermissionID)

	assert.Equal(t, []Call{
		{Operation: "CaptureCharge", ID: "C1"},
		{Operation: "CancelCharge", ID: "C1"},
		{Operation: "RefundCharge", ID: "C1"},
		{Operation: "GetChargePermission", ID: "P1"},
	}, m.Calls())
}

func TestMockAdapter_CustomFunc(t *testing.T) {
	m := NewMockAdapter("custom_mock")
	wantErr := errors.New("provider unavailable")
	m.GetChargeFunc = func(ctx context.Context, chargeID string) (*adapter.Charge, error) {
		return nil, wantErr
	}

	_, err := m.GetCharge(context.Background(), "C9")
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, []Call{{Operation: "GetCharge", ID: "C9"}}, m.Calls())
}
