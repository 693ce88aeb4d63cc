package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "energy-billing/internal/api/http"
	"energy-billing/internal/audit"
	"energy-billing/internal/auth"
	billinghttp "energy-billing/internal/billing/interfaces/http"
	billingkafka "energy-billing/internal/billing/interfaces/kafka"
	"energy-billing/internal/config"
	energyhttp "energy-billing/internal/energy/interfaces/http"
	"energy-billing/internal/observability/logging"
	"energy-billing/internal/observability/metrics"
	tariffhttp "energy-billing/internal/tariff/interfaces/http"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the billing event consumer",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if serveAddr != "" {
		cfg.HTTPAddr = serveAddr
	}
	if err := cfg.RequireServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.Init(a.db, logger)

	handler, err := a.routes(cfg)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Kafka.Enabled() {
		consumer, err := a.consumer(cfg.Kafka)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			defer func() { _ = consumer.Close() }()
			return consumer.Run(gctx)
		})
	}
	return g.Wait()
}

func (a *app) routes(cfg config.Config) (http.Handler, error) {
	checker := auth.NewCompanyChecker(a.companies)
	auditLogger := auditSink{repo: a.audit, zap: audit.NewZapLogger(a.logger)}

	energyHandler, err := energyhttp.NewHandler(a.energy, checker, a.logger)
	if err != nil {
		return nil, err
	}
	tariffHandler, err := tariffhttp.NewHandler(a.rates, a.imports, checker, auditLogger, a.logger)
	if err != nil {
		return nil, err
	}
	billingHandler, err := billinghttp.NewHandler(billinghttp.Services{
		Usage:         a.usage,
		Subscriptions: a.subscriptions,
		Payments:      a.payments,
		Summary:       a.summary,
		Facts:         a.billingStore.Facts(),
	}, checker, auditLogger, a.logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", apihttp.Health)
	mux.Handle("/metrics", promhttp.Handler())
	energyHandler.Register(mux)
	tariffHandler.Register(mux)
	billingHandler.Register(mux)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMW := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, a.logger)
	return logging.Middleware(authMW.Wrap(mux), a.logger), nil
}

func (a *app) consumer(cfg config.KafkaConfig) (*billingkafka.Consumer, error) {
	dispatcher, err := billingkafka.NewDispatcher(a.usage, a.subscriptions, a.logger)
	if err != nil {
		return nil, err
	}
	return billingkafka.NewConsumer(billingkafka.Config{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	}, dispatcher, a.logger)
}

// auditSink persists entries and mirrors them to the process log.
type auditSink struct {
	repo audit.Logger
	zap  audit.Logger
}

func (s auditSink) Log(ctx context.Context, entry audit.Entry) error {
	_ = s.zap.Log(ctx, entry)
	return s.repo.Log(ctx, entry)
}
