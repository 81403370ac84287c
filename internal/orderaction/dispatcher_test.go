package orderaction_test

import (
	go_std_context "context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yourorg/amazonpay-order-admin/internal/adapter"
	adaptermock "github.com/yourorg/amazonpay-order-admin/internal/adapter/mock"
	"github.com/yourorg/amazonpay-order-admin/internal/context"
	"github.com/yourorg/amazonpay-order-admin/internal/orderaction"
	"github.com/yourorg/amazonpay-order-admin/internal/store"
	"github.com/yourorg/amazonpay-order-admin/internal/store/memory"
)

func sampleCount(t *testing.T, obs prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := obs.(prometheus.Metric)
	require.True(t, ok, "observer should be a metric")
	var m dto.Metric
	require.NoError(t, metric.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

type fixture struct {
	api        *adaptermock.MockAdapter
	orders     *memory.Store
	dispatcher *orderaction.Dispatcher
	logs       *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	svc := context.NewService(context.Settings{Debug: true}, zap.New(core), nil)
	api := adaptermock.NewMockAdapter("amazon_pay")
	orders := memory.New()
	return &fixture{
		api:        api,
		orders:     orders,
		dispatcher: orderaction.NewDispatcher(svc, api, orders),
		logs:       logs,
	}
}

func (f *fixture) seedOrder(t *testing.T, total string) *store.Order {
	t.Helper()
	order := &store.Order{
		ID:            100,
		PaymentMethod: context.PaymentMethodAmazonPay,
		Status:        store.StatusOnHold,
		Currency:      "USD",
		Total:         decimal.RequireFromString(total),
	}
	order.AddMeta(store.MetaAPIVersion, "2.0.3")
	order.AddMeta(store.MetaChargePermissionID, "P1")
	order.AddMeta(store.MetaChargeID, "C1")
	order.AddMeta(store.MetaChargeStatus, adapter.StateAuthorized)
	require.NoError(t, f.orders.SaveOrder(go_std_context.Background(), order))
	loaded, err := f.orders.GetOrder(go_std_context.Background(), order.ID)
	require.NoError(t, err)
	return loaded
}

func (f *fixture) reload(t *testing.T, id int64) *store.Order {
	t.Helper()
	order, err := f.orders.GetOrder(go_std_context.Background(), id)
	require.NoError(t, err)
	return order
}

func refundR1(_ go_std_context.Context, chargeID string) (*adapter.Refund, error) {
	r := &adapter.Refund{RefundID: "R1", ChargeID: "C1", StatusDetails: adapter.StatusDetails{State: "RefundInitiated"}}
	r.RefundAmount.Amount = decimal.RequireFromString("7.50")
	r.RefundAmount.CurrencyCode = "USD"
	return r, nil
}

func TestNewDispatcher_PanicsOnNilDeps(t *testing.T) {
	svc := context.NewService(context.Settings{}, nil, nil)
	assert.Panics(t, func() { orderaction.NewDispatcher(nil, adaptermock.NewMockAdapter("x"), memory.New()) })
	assert.Panics(t, func() { orderaction.NewDispatcher(svc, nil, memory.New()) })
	assert.Panics(t, func() { orderaction.NewDispatcher(svc, adaptermock.NewMockAdapter("x"), nil) })
}

func TestDispatch_LegacyVersionIsNoop(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")

	for _, version := range []string{"v1", "", "2.0.0"} {
		for _, action := range []string{"capture", "close_authorization", "refund"} {
			require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", action, version))
		}
	}

	assert.Empty(t, f.api.Calls(), "no remote call for non-v2 orders")
	assert.Equal(t, order, f.reload(t, order.ID), "order must not be mutated")
	refunds, err := f.orders.ListRefunds(go_std_context.Background(), order.ID)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

func TestDispatch_VersionTagIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")

	require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "capture", "V2"))
	assert.Equal(t, []adaptermock.Call{{Operation: "CaptureCharge", ID: "C1"}}, f.api.Calls())
}

func TestDispatch_Capture(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")

	before := testutil.ToFloat64(orderaction.GetOrderActionsTotal().WithLabelValues("capture", "ok"))
	observed := sampleCount(t, orderaction.GetOrderActionDuration().WithLabelValues("capture"))
	require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "capture", "v2"))
	assert.Equal(t, before+1, testutil.ToFloat64(orderaction.GetOrderActionsTotal().WithLabelValues("capture", "ok")))
	assert.Equal(t, observed+1, sampleCount(t, orderaction.GetOrderActionDuration().WithLabelValues("capture")))

	assert.Equal(t, []adaptermock.Call{{Operation: "CaptureCharge", ID: "C1"}}, f.api.Calls())
	saved := f.reload(t, order.ID)
	assert.Equal(t, adapter.StateCaptured, saved.GetMeta(store.MetaChargeStatus))
	assert.Equal(t, store.StatusProcessing, saved.Status)
	require.Len(t, saved.Notes, 1)
	assert.Contains(t, saved.Notes[0].Content, "Captured")

	logged := f.logs.FilterMessage(`Info: Trying to perform "capture" for order #100`).All()
	require.Len(t, logged, 1)
	assert.Equal(t, "Dispatcher.Dispatch", logged[0].ContextMap()["context"])
}

func TestDispatch_CloseAuthorization(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")
	f.api.CancelChargeFunc = func(_ go_std_context.Context, chargeID string) (*adapter.Charge, error) {
		return &adapter.Charge{ChargeID: chargeID, StatusDetails: adapter.StatusDetails{
			State:      adapter.StateCanceled,
			ReasonCode: "MerchantCanceled",
		}}, nil
	}

	require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "close_authorization", "v2"))

	assert.Equal(t, []adaptermock.Call{{Operation: "CancelCharge", ID: "C1"}}, f.api.Calls())
	saved := f.reload(t, order.ID)
	assert.Equal(t, adapter.StateCanceled, saved.GetMeta(store.MetaChargeStatus))
	assert.Equal(t, store.StatusCancelled, saved.Status)
	require.Len(t, saved.Notes, 1)
	assert.Contains(t, saved.Notes[0].Content, "Canceled (MerchantCanceled)")
}

func TestDispatch_Refund(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")
	f.api.RefundChargeFunc = refundR1
	f.api.GetChargeFunc = func(_ go_std_context.Context, chargeID string) (*adapter.Charge, error) {
		return &adapter.Charge{ChargeID: chargeID, StatusDetails: adapter.StatusDetails{State: adapter.StateCaptured}}, nil
	}

	require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "refund", "v2"))

	assert.Equal(t, []adaptermock.Call{
		{Operation: "RefundCharge", ID: "C1"},
		{Operation: "GetCharge", ID: "C1"},
	}, f.api.Calls())

	saved := f.reload(t, order.ID)
	assert.Equal(t, []string{"R1"}, saved.Meta.All(store.MetaRefundID))
	assert.Equal(t, adapter.StateCaptured, saved.GetMeta(store.MetaChargeStatus))

	refunds, err := f.orders.ListRefunds(go_std_context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(decimal.RequireFromString("7.50")))
	assert.True(t, refunds[0].RefundedPayment)
	assert.Equal(t, "R1", refunds[0].Meta.Get(store.MetaRefundID))
}

func TestDispatch_RefundRecordFailureAborts(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "5.00") // less than the 7.50 refunded remotely
	f.api.RefundChargeFunc = refundR1

	before := testutil.ToFloat64(orderaction.GetOrderActionsTotal().WithLabelValues("refund", "refund_record_failed"))
	require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "refund", "v2"))
	assert.Equal(t, before+1, testutil.ToFloat64(orderaction.GetOrderActionsTotal().WithLabelValues("refund", "refund_record_failed")))

	assert.Equal(t, []adaptermock.Call{{Operation: "RefundCharge", ID: "C1"}}, f.api.Calls(), "no status refresh after abort")
	saved := f.reload(t, order.ID)
	assert.Equal(t, "R1", saved.GetMeta(store.MetaRefundID), "remote refund id is kept")
	assert.Equal(t, adapter.StateAuthorized, saved.GetMeta(store.MetaChargeStatus))

	refunds, err := f.orders.ListRefunds(go_std_context.Background(), order.ID)
	require.NoError(t, err)
	assert.Empty(t, refunds)
	assert.Equal(t, 1, f.logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestDispatch_UnknownActionIsNoop(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")

	before := testutil.ToFloat64(orderaction.GetOrderActionsTotal().WithLabelValues("unknown", "unknown_action"))
	require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "void-everything", "v2"))
	require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "void-everything-else", "v2"))
	assert.Equal(t, before+2, testutil.ToFloat64(orderaction.GetOrderActionsTotal().WithLabelValues("unknown", "unknown_action")))

	assert.Empty(t, f.api.Calls())
	assert.Equal(t, order, f.reload(t, order.ID))
}

func TestDispatch_UnknownActionsShareOneSeries(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")

	require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "warm-up", "v2"))
	series := testutil.CollectAndCount(orderaction.GetOrderActionsTotal())
	for _, action := range []string{"a1", "a2", "a3"} {
		require.NoError(t, f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", action, "v2"))
	}
	assert.Equal(t, series, testutil.CollectAndCount(orderaction.GetOrderActionsTotal()))
}

func TestDispatch_NilOrder(t *testing.T) {
	f := newFixture(t)

	err := f.dispatcher.Dispatch(go_std_context.Background(), nil, "C1", "capture", "v2")
	assert.Error(t, err)
	assert.Empty(t, f.api.Calls())
}

func TestDispatch_RemoteErrorPropagates(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")
	remote := &adapter.APIError{HTTPStatus: 422, ReasonCode: "TransactionAmountExceeded", Message: "no"}
	f.api.CaptureChargeFunc = func(go_std_context.Context, string) (*adapter.Charge, error) { return nil, remote }

	err := f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "capture", "v2")
	require.Error(t, err)
	var apiErr *adapter.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "TransactionAmountExceeded", apiErr.ReasonCode)
	assert.Equal(t, order, f.reload(t, order.ID), "failed capture leaves the order untouched")
}

func TestDispatch_RefundRemoteErrorPropagates(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")
	f.api.RefundChargeFunc = func(go_std_context.Context, string) (*adapter.Refund, error) {
		return nil, errors.New("connection reset")
	}

	err := f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "refund", "v2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refund charge C1")
	assert.Empty(t, f.reload(t, order.ID).GetMeta(store.MetaRefundID))
}

func TestDispatch_RefundStatusRefreshErrorPropagates(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "10.00")
	f.api.RefundChargeFunc = refundR1
	f.api.GetChargeFunc = func(go_std_context.Context, string) (*adapter.Charge, error) {
		return nil, errors.New("timeout")
	}

	err := f.dispatcher.Dispatch(go_std_context.Background(), order, "C1", "refund", "v2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get charge C1")

	refunds, listErr := f.orders.ListRefunds(go_std_context.Background(), order.ID)
	require.NoError(t, listErr)
	assert.Len(t, refunds, 1, "local refund is already recorded")
}
