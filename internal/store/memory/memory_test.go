package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/amazonpay-order-admin/internal/store"
)

func seed(t *testing.T, s *Store) *store.Order {
	t.Helper()
	order := &store.Order{
		ID:            42,
		PaymentMethod: "amazon_payments_advanced",
		Status:        store.StatusOnHold,
		Currency:      "USD",
		Total:         decimal.RequireFromString("10.00"),
	}
	order.AddMeta(store.MetaChargeID, "C1")
	require.NoError(t, s.SaveOrder(context.Background(), order))
	return order
}

func TestStore_OrderRoundTrip(t *testing.T) {
	s := New()
	seed(t, s)

	got, err := s.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "C1", got.GetMeta(store.MetaChargeID))
	assert.True(t, got.Total.Equal(decimal.RequireFromString("10")))

	// Mutating the returned copy must not leak into the store.
	got.UpdateMeta(store.MetaChargeID, "C2")
	again, err := s.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "C1", again.GetMeta(store.MetaChargeID))
}

func TestStore_GetOrder_NotFound(t *testing.T) {
	_, err := New().GetOrder(context.Background(), 7)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_CreateRefund(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s)

	r1, err := s.CreateRefund(ctx, store.RefundRequest{OrderID: 42, Amount: decimal.RequireFromString("7.50")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), r1.ID)
	assert.Equal(t, int64(42), r1.OrderID)

	_, err = s.CreateRefund(ctx, store.RefundRequest{OrderID: 42, Amount: decimal.RequireFromString("3.00")})
	assert.ErrorIs(t, err, store.ErrInvalidRefundAmount, "only 2.50 is left to refund")

	_, err = s.CreateRefund(ctx, store.RefundRequest{OrderID: 42, Amount: decimal.Zero})
	assert.ErrorIs(t, err, store.ErrInvalidRefundAmount)

	_, err = s.CreateRefund(ctx, store.RefundRequest{OrderID: 9, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, store.ErrNotFound)

	r2, err := s.CreateRefund(ctx, store.RefundRequest{OrderID: 42, Amount: decimal.RequireFromString("2.50")})
	require.NoError(t, err)

	refunds, err := s.ListRefunds(ctx, 42)
	require.NoError(t, err)
	require.Len(t, refunds, 2)
	assert.Equal(t, r1.ID, refunds[0].ID)
	assert.Equal(t, r2.ID, refunds[1].ID)
}

func TestStore_SaveRefund(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s)

	refund, err := s.CreateRefund(ctx, store.RefundRequest{OrderID: 42, Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	refund.RefundedPayment = true
	refund.Meta.Update(store.MetaRefundID, "R1")
	require.NoError(t, s.SaveRefund(ctx, refund))

	refunds, err := s.ListRefunds(ctx, 42)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].RefundedPayment)
	assert.Equal(t, "R1", refunds[0].Meta.Get(store.MetaRefundID))

	err = s.SaveRefund(ctx, &store.Refund{ID: 99, OrderID: 42})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
