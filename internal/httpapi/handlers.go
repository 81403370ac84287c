package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/amazonpay-order-admin/internal/orderaction"
	"github.com/yourorg/amazonpay-order-admin/internal/statusbox"
	"github.com/yourorg/amazonpay-order-admin/internal/store"
)

// Request parameters shared by both dispatch transports.
const (
	paramNonce    = "security"
	paramOrderID  = "order_id"
	paramChargeID = "amazon_id"
	paramAction   = "amazon_action"
)

// actionRequest is a sanitized dispatch signal.
type actionRequest struct {
	OrderID  int64
	ChargeID string
	Action   string
	Nonce    string
}

// ajaxOrderAction is the asynchronous dispatch transport. A successful
// dispatch replies 200 with an empty body.
func (h *handlers) ajaxOrderAction(c *gin.Context) {
	req := actionRequest{
		OrderID:  Absint(c.PostForm(paramOrderID)),
		ChargeID: Clean(c.PostForm(paramChargeID)),
		Action:   SanitizeTitle(c.PostForm(paramAction)),
		Nonce:    c.PostForm(paramNonce),
	}
	if !h.checkNonce(c, req) {
		return
	}
	order, ok := h.loadOrder(c, req.OrderID)
	if !ok {
		return
	}
	if !h.dispatch(c, order, req) {
		return
	}
	c.Status(http.StatusOK)
}

// orderPage is the order admin page. With amazon_action present, even empty,
// it dispatches and redirects back without the action parameters; otherwise
// it renders the status box.
func (h *handlers) orderPage(c *gin.Context) {
	rawAction, present := c.GetQuery(paramAction)
	if !present {
		h.renderBox(c, false)
		return
	}

	req := actionRequest{
		OrderID:  Absint(c.Param("id")),
		ChargeID: Clean(c.Query(paramChargeID)),
		Action:   SanitizeTitle(rawAction),
		Nonce:    c.Query(paramNonce),
	}
	if !h.checkNonce(c, req) {
		return
	}
	order, ok := h.loadOrder(c, req.OrderID)
	if !ok {
		return
	}
	if !h.dispatch(c, order, req) {
		return
	}
	c.Redirect(http.StatusFound, stripActionParams(c.Request.URL))
}

func (h *handlers) statusBox(c *gin.Context) {
	h.renderBox(c, c.Query("format") == "json")
}

func (h *handlers) renderBox(c *gin.Context, asJSON bool) {
	order, ok := h.loadOrder(c, Absint(c.Param("id")))
	if !ok {
		return
	}
	baseURL := fmt.Sprintf("/admin/orders/%d", order.ID)
	view, err := h.Renderer.Render(c.Request.Context(), order, orderaction.VersionForOrder(order), baseURL)
	if err != nil {
		h.fail(c, "render status box", err)
		return
	}
	if view == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if asJSON {
		c.JSON(http.StatusOK, view)
		return
	}
	c.HTML(http.StatusOK, statusbox.TemplateName, view)
}

// orderPayload is the REST view of an order.
type orderPayload struct {
	*store.Order
	Refunds         []*store.Refund  `json:"refunds"`
	AmazonReference *amazonReference `json:"amazon_reference,omitempty"`
}

type amazonReference struct {
	ChargePermissionID string   `json:"amazon_charge_permission_id"`
	ChargeID           string   `json:"amazon_charge_id"`
	ChargeStatus       string   `json:"amazon_charge_status"`
	RefundIDs          []string `json:"amazon_refund_ids"`
}

func (h *handlers) restOrder(c *gin.Context) {
	order, ok := h.loadOrder(c, Absint(c.Param("id")))
	if !ok {
		return
	}
	refunds, err := h.Orders.ListRefunds(c.Request.Context(), order.ID)
	if err != nil {
		h.fail(c, "list refunds", err)
		return
	}
	if refunds == nil {
		refunds = []*store.Refund{}
	}

	payload := orderPayload{Order: order, Refunds: refunds}
	if order.PaymentMethod == h.Service.Settings.PaymentMethod {
		ids := order.Meta.All(store.MetaRefundID)
		if ids == nil {
			ids = []string{}
		}
		payload.AmazonReference = &amazonReference{
			ChargePermissionID: order.GetMeta(store.MetaChargePermissionID),
			ChargeID:           order.GetMeta(store.MetaChargeID),
			ChargeStatus:       order.GetMeta(store.MetaChargeStatus),
			RefundIDs:          ids,
		}
	}
	c.JSON(http.StatusOK, payload)
}

// checkNonce aborts with 403 and body -1 when the nonce does not verify.
func (h *handlers) checkNonce(c *gin.Context, req actionRequest) bool {
	if err := h.Nonces.Verify(req.Nonce, req.OrderID); err != nil {
		h.Service.LoggerFor(c.Request.Context()).Warn("order action rejected",
			zap.Int64("order_id", req.OrderID), zap.String("action", req.Action), zap.Error(err))
		c.String(http.StatusForbidden, "-1")
		c.Abort()
		return false
	}
	return true
}

func (h *handlers) loadOrder(c *gin.Context, id int64) (*store.Order, bool) {
	order, err := h.Orders.GetOrder(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("order %d not found", id)})
		return nil, false
	}
	if err != nil {
		h.fail(c, "load order", err)
		return nil, false
	}
	return order, true
}

func (h *handlers) dispatch(c *gin.Context, order *store.Order, req actionRequest) bool {
	err := h.Dispatcher.Dispatch(c.Request.Context(), order, req.ChargeID, req.Action, orderaction.VersionForOrder(order))
	if err != nil {
		h.fail(c, "dispatch "+req.Action, err)
		return false
	}
	return true
}

func (h *handlers) fail(c *gin.Context, what string, err error) {
	_ = c.Error(err)
	h.Service.LoggerFor(c.Request.Context()).Error(what+" failed", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// stripActionParams returns u as a relative URL without the dispatch
// parameters.
func stripActionParams(u *url.URL) string {
	q := u.Query()
	q.Del(paramAction)
	q.Del(paramChargeID)
	q.Del(paramNonce)
	out := url.URL{Path: u.Path, RawQuery: q.Encode()}
	return out.String()
}
