// Package httpapi exposes the admin transports for order actions, the status
// box and the REST order view over gin.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yourorg/amazonpay-order-admin/internal/context"
	"github.com/yourorg/amazonpay-order-admin/internal/orderaction"
	"github.com/yourorg/amazonpay-order-admin/internal/statusbox"
	"github.com/yourorg/amazonpay-order-admin/internal/store"
)

// DefaultServiceName names the otelgin server spans.
const DefaultServiceName = "amazonpay-order-admin"

// NonceVerifier checks an admin nonce for an order.
type NonceVerifier interface {
	Verify(token string, orderID int64) error
}

// Deps are the collaborators of the router. All fields except ServiceName
// are required.
type Deps struct {
	Service     *context.Service
	Orders      store.Repository
	Dispatcher  *orderaction.Dispatcher
	Renderer    *statusbox.Renderer
	Nonces      NonceVerifier
	ServiceName string
}

type handlers struct {
	Deps
}

// NewRouter builds the gin engine serving every admin and API route.
func NewRouter(d Deps) *gin.Engine {
	if d.Service == nil || d.Orders == nil || d.Dispatcher == nil || d.Renderer == nil || d.Nonces == nil {
		panic("httpapi: NewRouter requires Service, Orders, Dispatcher, Renderer and Nonces")
	}
	if d.ServiceName == "" {
		d.ServiceName = DefaultServiceName
	}
	h := &handlers{Deps: d}
	logger := d.Service.Logger

	r := gin.New()
	r.Use(recovery(logger), otelgin.Middleware(d.ServiceName), metricsMiddleware(), requestLogger(logger))
	r.SetHTMLTemplate(statusbox.Template())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin")
	{
		admin.POST("/ajax/amazon_order_action", h.ajaxOrderAction)
		admin.GET("/orders/:id", h.orderPage)
		admin.GET("/orders/:id/amazon-pay", h.statusBox)
	}

	r.GET("/api/orders/:id", h.restOrder)
	return r
}
