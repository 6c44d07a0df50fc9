package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/brewpay/brewbot/internal/ai"
	"github.com/brewpay/brewbot/internal/catalog"
	"github.com/brewpay/brewbot/internal/chat"
	"github.com/brewpay/brewbot/internal/config"
	"github.com/brewpay/brewbot/internal/conversation"
	"github.com/brewpay/brewbot/internal/gateway"
	"github.com/brewpay/brewbot/internal/notify"
	"github.com/brewpay/brewbot/internal/orders"
	"github.com/brewpay/brewbot/internal/payments"
	"github.com/brewpay/brewbot/internal/server"
	"github.com/brewpay/brewbot/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := telemetry.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "brewbot", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("brewbot", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database connection", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	items := catalog.NewRepository(db)
	if err := items.Seed(ctx, catalog.DefaultItems()); err != nil {
		logger.Error("failed to seed catalog", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   cfg.OutboundTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	gatewayClient := gateway.NewClient(gateway.Options{
		APIURL:     cfg.GatewayAPIURL,
		PaymentURL: cfg.GatewayURL,
		Secret:     cfg.GatewaySecret,
		Receiver:   cfg.GatewayReceiver,
		NotifyURL:  cfg.NotifyURL,
		Brand:      cfg.MerchantBrand,
		Redirect:   cfg.RedirectURL,
	}, httpClient)

	sender := chat.NewTelegram(cfg.TelegramAPIURL, cfg.TelegramToken, httpClient)

	stop := make(chan struct{})
	defer close(stop)

	bridge := ai.NewBridge(cfg.AIBaseURL, cfg.AIKey, cfg.AIModel, cfg.HistoryLimit, cfg.SessionTTL, httpClient, logger)
	bridge.StartSweeper(time.Minute, stop)

	dispatcher := notify.NewDispatcher(sender, logger)
	orderStore := orders.NewRepository(db)
	orchestrator := payments.NewOrchestrator(orderStore, items, gatewayClient, dispatcher, logger)

	engine := conversation.NewEngine(sender, bridge, items, orchestrator, cfg.CustomizeMode, cfg.PhotoAssetsDir, cfg.SessionTTL, logger)
	engine.StartSweeper(time.Minute, stop)

	handler := server.NewHandler(orchestrator, engine, logger)
	mux := server.NewMux(handler, metricsHandler)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "brewbot",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting brewbot service", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
