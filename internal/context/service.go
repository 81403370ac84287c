// Package context holds the per-request trace context and the service context
// that is passed explicitly to every component instead of a global plugin
// instance.
package context

import (
	stdcontext "context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// APIVersionV2 is the integration version handled by this service.
	APIVersionV2 = "v2"
	// APIVersionV1 marks legacy orders, which are left to a separate path.
	APIVersionV1 = "v1"

	// PaymentMethodAmazonPay is the payment-method tag of Amazon Pay orders.
	PaymentMethodAmazonPay = "amazon_payments_advanced"
)

// Settings are the gateway settings components read at request time.
type Settings struct {
	CurrentAPIVersion string // version tag orders must carry to be handled
	PaymentMethod     string // payment-method tag of orders handled here
	Debug             bool   // enables the operational log lines
}

// Service bundles settings, logging and tracing for injection.
type Service struct {
	Settings Settings
	Logger   *zap.Logger
	Tracer   trace.Tracer
}

// NewService creates a Service, filling unset fields with defaults.
func NewService(settings Settings, logger *zap.Logger, tracer trace.Tracer) *Service {
	if settings.CurrentAPIVersion == "" {
		settings.CurrentAPIVersion = APIVersionV2
	}
	if settings.PaymentMethod == "" {
		settings.PaymentMethod = PaymentMethodAmazonPay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = otel.Tracer("amazonpay-order-admin")
	}
	return &Service{Settings: settings, Logger: logger, Tracer: tracer}
}

// IsCurrentVersion reports whether version matches the handled API version,
// ignoring case.
func (s *Service) IsCurrentVersion(version string) bool {
	return strings.EqualFold(version, s.Settings.CurrentAPIVersion)
}

// LoggerFor returns the service logger annotated with the request trace ID.
func (s *Service) LoggerFor(ctx stdcontext.Context) *zap.Logger {
	if id := TraceIDFromContext(ctx); id != "" {
		return s.Logger.With(zap.String("trace_id", id))
	}
	return s.Logger
}

// Log writes an operational message tagged with where it came from. Nothing
// is written unless debug logging is enabled in the settings.
func (s *Service) Log(ctx stdcontext.Context, where, message string, fields ...zap.Field) {
	if !s.Settings.Debug {
		return
	}
	s.LoggerFor(ctx).Info(message, append(fields, zap.String("context", where))...)
}
