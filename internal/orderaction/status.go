package orderaction

import (
	stdcontext "context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/amazonpay-order-admin/internal/adapter"
	"github.com/yourorg/amazonpay-order-admin/internal/context"
	"github.com/yourorg/amazonpay-order-admin/internal/store"
)

// StatusLabel formats a state and its reason codes for display, e.g.
// "Declined (InvalidPaymentMethod)". Without codes the bare state is returned.
func StatusLabel(state string, reasonCodes []string) string {
	if len(reasonCodes) == 0 {
		return state
	}
	return fmt.Sprintf("%s (%s)", state, strings.Join(reasonCodes, ", "))
}

// Label is StatusLabel applied to a provider status block.
func Label(details adapter.StatusDetails) string {
	return StatusLabel(details.State, details.ReasonCodes())
}

// orderStatusFor maps a charge state onto the order status it implies. States
// without a mapping leave the order status alone.
func orderStatusFor(state string) (string, bool) {
	switch state {
	case adapter.StateAuthorizationInitiated, adapter.StateAuthorized:
		return store.StatusOnHold, true
	case adapter.StateCaptured:
		return store.StatusProcessing, true
	case adapter.StateDeclined:
		return store.StatusFailed, true
	case adapter.StateCanceled:
		return store.StatusCancelled, true
	}
	return "", false
}

// StatusRecorder writes a charge's status onto its order.
type StatusRecorder struct {
	svc    *context.Service
	orders store.Repository
	now    func() time.Time
}

// NewStatusRecorder creates a StatusRecorder.
func NewStatusRecorder(svc *context.Service, orders store.Repository) *StatusRecorder {
	return &StatusRecorder{svc: svc, orders: orders, now: time.Now}
}

// Record stores charge's state on order when it differs from the last
// recorded one: the charge status and id metadata are updated, a note with
// the display label is added, the order status follows the charge and the
// order is saved. It returns the charge state either way.
func (r *StatusRecorder) Record(ctx stdcontext.Context, order *store.Order, charge *adapter.Charge) (string, error) {
	if charge == nil {
		return "", fmt.Errorf("orderaction: record status for order %d: nil charge", order.ID)
	}
	state := charge.StatusDetails.State
	previous := order.GetMeta(store.MetaChargeStatus)
	if state == previous {
		return state, nil
	}

	order.UpdateMeta(store.MetaChargeStatus, state)
	order.UpdateMeta(store.MetaChargeID, charge.ChargeID)
	order.AddNote(fmt.Sprintf("Charge %s status is now %s.", charge.ChargeID, Label(charge.StatusDetails)), r.now())
	if status, ok := orderStatusFor(state); ok {
		order.Status = status
	}

	if err := r.orders.SaveOrder(ctx, order); err != nil {
		return state, fmt.Errorf("orderaction: save order %d: %w", order.ID, err)
	}
	r.svc.Log(ctx, "StatusRecorder.Record", "charge status changed",
		zap.Int64("order_id", order.ID),
		zap.String("charge_id", charge.ChargeID),
		zap.String("from", previous),
		zap.String("to", state),
	)
	return state, nil
}
