package main

import (
	stdcontext "context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/yourorg/amazonpay-order-admin/internal/adapter"
	"github.com/yourorg/amazonpay-order-admin/internal/adapter/amazonpay"
	adaptermock "github.com/yourorg/amazonpay-order-admin/internal/adapter/mock"
	"github.com/yourorg/amazonpay-order-admin/internal/config"
	"github.com/yourorg/amazonpay-order-admin/internal/context"
	"github.com/yourorg/amazonpay-order-admin/internal/httpapi"
	"github.com/yourorg/amazonpay-order-admin/internal/logging"
	"github.com/yourorg/amazonpay-order-admin/internal/orderaction"
	"github.com/yourorg/amazonpay-order-admin/internal/policy"
	"github.com/yourorg/amazonpay-order-admin/internal/security"
	"github.com/yourorg/amazonpay-order-admin/internal/statusbox"
	"github.com/yourorg/amazonpay-order-admin/internal/store"
	boltstore "github.com/yourorg/amazonpay-order-admin/internal/store/bolt"
	"github.com/yourorg/amazonpay-order-admin/internal/store/memory"
)

// demoOrderID is the order seeded into the memory store.
const demoOrderID = 1

// application owns everything the server needs and what must be closed on
// shutdown.
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	router  *gin.Engine
	closers []func() error
}

func newApplication(cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	if cfg.Tracing.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		app.closers = append(app.closers, func() error { return tp.Shutdown(stdcontext.Background()) })
	}

	orders, err := app.openStore()
	if err != nil {
		app.Close()
		return nil, err
	}
	api, err := app.paymentAPI()
	if err != nil {
		app.Close()
		return nil, err
	}

	actionPolicy, err := policy.NewActionPolicy(cfg.Policy.Rules)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build action policy: %w", err)
	}
	nonces, err := security.NewNonceManager(security.NonceConfig{
		Secret: cfg.Security.NonceSecret,
		TTL:    cfg.Security.NonceTTL,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	svc := context.NewService(context.Settings{Debug: cfg.Log.Debug}, logger, otel.Tracer(cfg.Tracing.ServiceName))
	app.router = httpapi.NewRouter(httpapi.Deps{
		Service:     svc,
		Orders:      orders,
		Dispatcher:  orderaction.NewDispatcher(svc, api, orders),
		Renderer:    statusbox.NewRenderer(svc, api, actionPolicy, nonces),
		Nonces:      nonces,
		ServiceName: cfg.Tracing.ServiceName,
	})
	return app, nil
}

func (a *application) openStore() (store.Repository, error) {
	switch a.cfg.Store.Driver {
	case "bolt":
		s, err := boltstore.Open(a.cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		s := memory.New()
		if err := seedDemoOrder(s); err != nil {
			return nil, err
		}
		a.logger.Info("memory store seeded", zap.Int64("order_id", demoOrderID))
		return s, nil
	}
}

func (a *application) paymentAPI() (adapter.PaymentAPI, error) {
	if a.cfg.Payment.Driver == "mock" {
		a.logger.Warn("using mock payment API")
		return adaptermock.NewMockAdapter("amazon_pay"), nil
	}
	ap := a.cfg.AmazonPay
	signer, err := amazonpay.LoadSigner(ap.PublicKeyID, ap.Region, ap.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	return amazonpay.NewClient(amazonpay.Config{
		PublicKeyID:   ap.PublicKeyID,
		Region:        ap.Region,
		Sandbox:       ap.Sandbox,
		BaseURL:       ap.BaseURL,
		Timeout:       ap.Timeout,
		RetryAttempts: ap.RetryAttempts,
		RetryDelay:    ap.RetryDelay,
	}, signer, a.logger)
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func seedDemoOrder(s *memory.Store) error {
	order := &store.Order{
		ID:            demoOrderID,
		PaymentMethod: context.PaymentMethodAmazonPay,
		Status:        store.StatusOnHold,
		Currency:      "USD",
		Total:         decimal.RequireFromString("10.00"),
	}
	order.AddMeta(store.MetaAPIVersion, "2.0.0")
	order.AddMeta(store.MetaChargePermissionID, "S01-0000000-0000000")
	order.AddMeta(store.MetaChargeID, "S01-0000000-0000000-C000001")
	order.AddMeta(store.MetaChargeStatus, adapter.StateAuthorized)
	return s.SaveOrder(stdcontext.Background(), order)
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Debug: cfg.Log.Debug})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)
	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting server", zap.String("address", cfg.Server.Address),
			zap.String("payment_driver", cfg.Payment.Driver), zap.String("store_driver", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}
