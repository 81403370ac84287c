// Package statusbox builds the Amazon Pay panel shown on an admin order page:
// the live charge permission and charge status plus one button per action the
// policy offers.
package statusbox

import (
	stdcontext "context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/yourorg/amazonpay-order-admin/internal/adapter"
	"github.com/yourorg/amazonpay-order-admin/internal/context"
	"github.com/yourorg/amazonpay-order-admin/internal/orderaction"
	"github.com/yourorg/amazonpay-order-admin/internal/policy"
	"github.com/yourorg/amazonpay-order-admin/internal/store"
)

// TemplateName is the name of the HTML template the View renders with.
const TemplateName = "status_box.html"

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Template returns the parsed panel templates, for loading into gin.
func Template() *template.Template { return tmpl }

// buttonLabels are the operator-facing captions of each action.
var buttonLabels = map[string]string{
	policy.ActionCapture:            "Capture funds",
	policy.ActionCloseAuthorization: "Close Authorization",
	policy.ActionRefund:             "Make a refund?",
}

// Button is one offered order action.
type Button struct {
	Action string `json:"action"`
	Label  string `json:"label"`
	URL    string `json:"url"`
}

// View is the rendered state of the panel.
type View struct {
	OrderID               int64    `json:"order_id"`
	ChargePermissionID    string   `json:"charge_permission_id,omitempty"`
	ChargePermissionState string   `json:"charge_permission_state,omitempty"`
	ChargePermissionLabel string   `json:"charge_permission_label,omitempty"`
	ChargeID              string   `json:"charge_id,omitempty"`
	ChargeState           string   `json:"charge_state,omitempty"`
	ChargeLabel           string   `json:"charge_label,omitempty"`
	Buttons               []Button `json:"buttons"`
}

// WriteHTML renders v as HTML.
func (v *View) WriteHTML(w io.Writer) error {
	return tmpl.ExecuteTemplate(w, TemplateName, v)
}

// NonceIssuer issues the security token carried by action URLs.
type NonceIssuer interface {
	Issue(orderID int64) (string, error)
}

// Renderer builds Views. Remote state is fetched on every call.
type Renderer struct {
	svc    *context.Service
	api    adapter.PaymentAPI
	policy *policy.ActionPolicy
	nonces NonceIssuer
}

// NewRenderer creates a Renderer.
func NewRenderer(svc *context.Service, api adapter.PaymentAPI, p *policy.ActionPolicy, nonces NonceIssuer) *Renderer {
	return &Renderer{svc: svc, api: api, policy: p, nonces: nonces}
}

// Render returns the panel for order, or nil when the order is not an
// Amazon Pay order on the handled API version. baseURL is the page the
// action buttons link back to; its existing query is preserved.
func (r *Renderer) Render(ctx stdcontext.Context, order *store.Order, version, baseURL string) (*View, error) {
	if order == nil || !r.svc.IsCurrentVersion(version) || order.PaymentMethod != r.svc.Settings.PaymentMethod {
		return nil, nil
	}

	view := &View{OrderID: order.ID, Buttons: []Button{}}

	if id := order.GetMeta(store.MetaChargePermissionID); id != "" {
		cp, err := r.api.GetChargePermission(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("statusbox: get charge permission %s: %w", id, err)
		}
		view.ChargePermissionID = id
		view.ChargePermissionState = cp.StatusDetails.State
		view.ChargePermissionLabel = orderaction.Label(cp.StatusDetails)
	}

	chargeID := order.GetMeta(store.MetaChargeID)
	if chargeID == "" {
		return view, nil
	}
	charge, err := r.api.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("statusbox: get charge %s: %w", chargeID, err)
	}
	view.ChargeID = chargeID
	view.ChargeState = charge.StatusDetails.State
	view.ChargeLabel = orderaction.Label(charge.StatusDetails)

	actions, err := r.policy.Available(charge)
	if err != nil {
		return nil, fmt.Errorf("statusbox: %w", err)
	}
	for _, action := range actions {
		link, err := r.actionURL(baseURL, order.ID, chargeID, action)
		if err != nil {
			return nil, err
		}
		view.Buttons = append(view.Buttons, Button{Action: action, Label: labelFor(action), URL: link})
	}
	return view, nil
}

func labelFor(action string) string {
	if label, ok := buttonLabels[action]; ok {
		return label
	}
	return strings.ReplaceAll(action, "_", " ")
}

func (r *Renderer) actionURL(baseURL string, orderID int64, chargeID, action string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("statusbox: parse base url: %w", err)
	}
	nonce, err := r.nonces.Issue(orderID)
	if err != nil {
		return "", fmt.Errorf("statusbox: %w", err)
	}
	q := u.Query()
	q.Set("amazon_action", action)
	q.Set("amazon_id", chargeID)
	q.Set("security", nonce)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
