package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/MrEthical07/otpAuth/httpapi"
	"github.com/MrEthical07/otpAuth/internal/config"
	"github.com/MrEthical07/otpAuth/internal/logging"
	"github.com/MrEthical07/otpAuth/metrics/export/otel"
	"github.com/MrEthical07/otpAuth/metrics/export/prometheus"
	"github.com/MrEthical07/otpAuth/notify"
	"github.com/MrEthical07/otpAuth/otp"
	"github.com/MrEthical07/otpAuth/store/memory"
	"github.com/MrEthical07/otpAuth/store/postgres"
	"github.com/MrEthical07/otpAuth/supervisor"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const shutdownTimeout = 10 * time.Second

type app struct {
	cfg    config.Config
	logger logging.Logger

	engine     *otpAuth.Engine
	supervisor *supervisor.Supervisor
	handler    http.Handler

	closers []func() error
}

func newApp(cfg config.Config, out io.Writer) (*app, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	sl := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})).
		With("app", cfg.AppName, "env", cfg.AppEnv)
	logger := logging.NewSlogLogger(sl)

	a := &app{cfg: cfg, logger: logger}

	var (
		store      otpAuth.AccountStore
		connectors []supervisor.Connector
	)
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := postgres.New(postgres.Config{DSN: cfg.DbDsn, AutoMigrate: cfg.AutoMigrate})
		if err != nil {
			return nil, fmt.Errorf("store init error: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		store = pg
		connectors = append(connectors, pg)
	default:
		mem := memory.New()
		store = mem
		connectors = append(connectors, mem)
	}

	var cache otp.Cache
	if cfg.Cache == config.CacheRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		rc, err := otp.NewRedisCache(client, "otpauth:otp", otp.Config{Digits: cfg.OtpDigits, TTL: cfg.OtpTTL})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("otp cache init error: %w", err)
		}
		cache = rc
		connectors = append(connectors, rc)
	}

	sup, err := supervisor.New(supervisor.All(connectors...), supervisor.Config{
		Name:           "storage",
		AttemptTimeout: cfg.AttemptTimeout,
		HealthInterval: cfg.HealthInterval,
		Backoff:        supervisor.ExponentialBackoff{Base: cfg.BackoffBase, Max: cfg.BackoffMax},
		Logger:         logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.supervisor = sup

	var notifier otpAuth.Notifier
	switch cfg.Notifier {
	case config.NotifierSMTP:
		smtp, err := notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SmtpHost,
			Port:     cfg.SmtpPort,
			Username: cfg.SmtpUser,
			Password: cfg.SmtpPass,
			From:     cfg.SmtpFrom,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		notifier = smtp
	default:
		notifier = notify.NewLog(logger)
	}

	ecfg := otpAuth.DefaultConfig()
	ecfg.JWT.Secret = []byte(cfg.JwtSecret)
	ecfg.JWT.TTL = cfg.JwtTTL
	ecfg.JWT.Issuer = cfg.JwtIssuer
	ecfg.OTP.Digits = cfg.OtpDigits
	ecfg.OTP.TTL = cfg.OtpTTL
	ecfg.Notification.AppName = cfg.AppName
	ecfg.Store.OperationTimeout = cfg.AttemptTimeout
	ecfg.Audit.Enabled = cfg.AuditEnabled

	builder := otpAuth.New().
		WithConfig(ecfg).
		WithAccountStore(store).
		WithNotifier(notifier).
		WithReadiness(sup).
		WithLogger(sl).
		WithMetricsEnabled(cfg.MetricsEnabled).
		WithLatencyHistograms(cfg.MetricsEnabled)
	if cache != nil {
		builder = builder.WithOTPCache(cache)
	}
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(otpAuth.NewJSONWriterSink(out))
	}
	engine, err := builder.Build()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("engine init error: %w", err)
	}
	a.engine = engine

	api := httpapi.New(engine, httpapi.Options{
		CookieSecure: cfg.CookieSecure,
		Readiness:    sup,
		Logger:       logger,
	})
	mux := http.NewServeMux()
	mux.Handle("/", api.Routes())
	if cfg.MetricsEnabled {
		metrics, err := a.metricsHandler(sup)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("metrics init error: %w", err)
		}
		mux.Handle("GET /metrics", metrics)
	}
	a.handler = mux

	return a, nil
}

// metricsHandler serves Prometheus text, or with METRICS_EXPORTER=otel the
// OpenTelemetry collection of the same instruments as JSON.
func (a *app) metricsHandler(sup *supervisor.Supervisor) (http.Handler, error) {
	if a.cfg.MetricsExporter != config.ExporterOTel {
		return prometheus.NewPrometheusExporter(a.engine).WithReadiness(sup).Handler(), nil
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	a.closers = append(a.closers, func() error {
		return provider.Shutdown(context.Background())
	})
	exporter, err := otel.NewOTelExporter(provider.Meter("otpauth-server"), a.engine, otel.Options{Readiness: sup})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, exporter.Close)
	return otel.Handler(reader), nil
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// releases the engine and backends.
func (a *app) Run(ctx context.Context) error {
	defer a.close()

	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return err
	}
	return a.serve(ctx, ln)
}

func (a *app) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		if err := a.supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error(ctx, "supervisor stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Serve(ln)
	}()
	a.logger.Info(ctx, "listening", "addr", ln.Addr().String(), "store", a.cfg.Store, "otp_cache", a.cfg.Cache)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn(shutdownCtx, "http shutdown", "error", err)
	}
	cancel()
	<-supDone
	a.logger.Info(shutdownCtx, "stopped")
	return runErr
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
		a.engine = nil
	}
	var errs []string
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err.Error())
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		a.logger.Warn(context.Background(), "close backends", "errors", strings.Join(errs, "; "))
	}
}
