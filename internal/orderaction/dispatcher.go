// Package orderaction executes operator actions on an order's Amazon Pay
// charge and records the outcome on the order.
package orderaction

import (
	stdcontext "context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/yourorg/amazonpay-order-admin/internal/adapter"
	"github.com/yourorg/amazonpay-order-admin/internal/context"
	"github.com/yourorg/amazonpay-order-admin/internal/policy"
	"github.com/yourorg/amazonpay-order-admin/internal/store"
)

// Dispatcher maps action names onto remote payment operations.
type Dispatcher struct {
	svc      *context.Service
	api      adapter.PaymentAPI
	orders   store.Repository
	recorder *StatusRecorder
}

// NewDispatcher creates a Dispatcher. All dependencies are required.
func NewDispatcher(svc *context.Service, api adapter.PaymentAPI, orders store.Repository) *Dispatcher {
	if svc == nil {
		panic("orderaction: Service cannot be nil")
	}
	if api == nil {
		panic("orderaction: PaymentAPI cannot be nil")
	}
	if orders == nil {
		panic("orderaction: Repository cannot be nil")
	}
	return &Dispatcher{
		svc:      svc,
		api:      api,
		orders:   orders,
		recorder: NewStatusRecorder(svc, orders),
	}
}

// Dispatch performs action against chargeID for order. Orders whose
// apiVersion is not the handled version, and unknown actions, are ignored.
// Errors from the payment API and the order store are returned unchanged in
// meaning, wrapped with the failing step.
//
// Legality of the action for the charge's current state is not checked here;
// the payment API is the authority and rejects illegal transitions.
func (d *Dispatcher) Dispatch(ctx stdcontext.Context, order *store.Order, chargeID, action, apiVersion string) (err error) {
	if order == nil {
		return errors.New("orderaction: no order to act on")
	}

	ctx, span := d.svc.Tracer.Start(ctx, "Dispatcher.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.action", action),
		attribute.Int64("order.id", order.ID),
		attribute.String("amazonpay.charge_id", chargeID),
	)

	if !d.svc.IsCurrentVersion(apiVersion) {
		orderActionsTotal.WithLabelValues(actionLabel(action), outcomeSkipped).Inc()
		return nil
	}

	ctx = context.NewTraceContext(ctx).Context()
	d.svc.Log(ctx, "Dispatcher.Dispatch", fmt.Sprintf("Info: Trying to perform %q for order #%d", action, order.ID))

	start := time.Now()
	outcome := outcomeOK
	defer func() {
		if err != nil {
			outcome = outcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		label := actionLabel(action)
		orderActionsTotal.WithLabelValues(label, outcome).Inc()
		orderActionDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	switch action {
	case policy.ActionCloseAuthorization:
		charge, err := d.api.CancelCharge(ctx, chargeID)
		if err != nil {
			return fmt.Errorf("orderaction: cancel charge %s: %w", chargeID, err)
		}
		_, err = d.recorder.Record(ctx, order, charge)
		return err

	case policy.ActionCapture:
		charge, err := d.api.CaptureCharge(ctx, chargeID)
		if err != nil {
			return fmt.Errorf("orderaction: capture charge %s: %w", chargeID, err)
		}
		_, err = d.recorder.Record(ctx, order, charge)
		return err

	case policy.ActionRefund:
		recorded, err := d.refund(ctx, order, chargeID)
		if err == nil && !recorded {
			outcome = outcomeRefundRecordFailed
		}
		return err

	default:
		outcome = outcomeUnknownAction
		return nil
	}
}

// refund issues a full remote refund and mirrors it locally. It reports
// whether the local refund record was created; when it was not, the remote
// refund stands and nothing further happens.
func (d *Dispatcher) refund(ctx stdcontext.Context, order *store.Order, chargeID string) (bool, error) {
	refund, err := d.api.RefundCharge(ctx, chargeID)
	if err != nil {
		return false, fmt.Errorf("orderaction: refund charge %s: %w", chargeID, err)
	}

	order.AddMeta(store.MetaRefundID, refund.RefundID)
	if err := d.orders.SaveOrder(ctx, order); err != nil {
		return false, fmt.Errorf("orderaction: save order %d: %w", order.ID, err)
	}

	local, err := d.orders.CreateRefund(ctx, store.RefundRequest{
		OrderID: order.ID,
		Amount:  refund.RefundAmount.Amount,
	})
	if err != nil {
		d.svc.LoggerFor(ctx).Warn("local refund record not created; remote refund left in place",
			zap.Int64("order_id", order.ID),
			zap.String("refund_id", refund.RefundID),
			zap.String("amount", refund.RefundAmount.Amount.String()),
			zap.Error(err),
		)
		return false, nil
	}

	local.Meta.Update(store.MetaRefundID, refund.RefundID)
	local.RefundedPayment = true
	if err := d.orders.SaveRefund(ctx, local); err != nil {
		return true, fmt.Errorf("orderaction: save refund %d: %w", local.ID, err)
	}

	charge, err := d.api.GetCharge(ctx, refund.ChargeID)
	if err != nil {
		return true, fmt.Errorf("orderaction: get charge %s: %w", refund.ChargeID, err)
	}
	_, err = d.recorder.Record(ctx, order, charge)
	return true, err
}
