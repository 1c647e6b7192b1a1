package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ledgerbridge "github.com/goliatone/go-ledgerbridge"
	ledgerprometheus "github.com/goliatone/go-ledgerbridge/adapters/prometheus"
	"github.com/goliatone/go-ledgerbridge/adapters/viperconfig"
	"github.com/goliatone/go-ledgerbridge/adapters/zaplog"
	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/email"
	"github.com/goliatone/go-ledgerbridge/gateway"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerbridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("LEDGERBRIDGE_CONFIG"), "optional YAML config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	rateLimit := flag.Float64("rate-limit", 0, "gateway requests per second, 0 disables limiting")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zaplog.NewProduction(*logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	loggers := zaplog.NewProvider(logger)
	metrics := ledgerprometheus.NewRecorder()

	configProvider := core.NewCfgxConfigProvider(viperconfig.NewLoader(*configPath))
	cfg, err := core.ResolveConfig(ctx, core.Config{}, configProvider, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	backing, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backing.Close()
	logger.Info("token store ready", "kind", backing.kind)

	zohoProtocol, err := ledgerbridge.ZohoProtocol(cfg, nil)
	if err != nil {
		return err
	}
	xeroProtocol, err := ledgerbridge.XeroProtocol(cfg, nil)
	if err != nil {
		return err
	}

	managerOpts := []core.Option{
		core.WithLoggerProvider(loggers),
		core.WithMetricsRecorder(metrics),
		core.WithConfigProvider(configProvider),
		core.WithTokenStore(backing.store),
		core.WithProtocol(zohoProtocol),
		core.WithProtocol(xeroProtocol),
	}
	if backing.locker != nil {
		managerOpts = append(managerOpts, core.WithRefreshLocker(backing.locker))
	}
	credentials, err := core.NewCredentialManager(cfg, managerOpts...)
	if err != nil {
		return err
	}

	zohoAdapter, err := ledgerbridge.ZohoAdapter(credentials, nil)
	if err != nil {
		return err
	}
	xeroAdapter, err := ledgerbridge.XeroAdapter(credentials, nil)
	if err != nil {
		return err
	}
	serviceOpts := []ledgerbridge.ServiceOption{
		ledgerbridge.WithAdapter(zohoAdapter),
		ledgerbridge.WithAdapter(xeroAdapter),
	}
	if strings.TrimSpace(cfg.Resend.APIKey) != "" {
		sender, err := email.NewResendSender(email.ResendConfig{
			APIKey:   cfg.Resend.APIKey,
			From:     cfg.Resend.From,
			Timeout:  cfg.RequestTimeout,
			Observer: credentials.Observer(),
		})
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, ledgerbridge.WithEmailSender(sender))
	} else {
		logger.Warn("resend api key not set, send_email is disabled")
	}
	service, err := ledgerbridge.NewService(credentials, serviceOpts...)
	if err != nil {
		return err
	}

	serverOpts := []gateway.ServerOption{
		gateway.WithObserver(core.NewObserver(loggers.GetLogger("ledgerbridge.gateway"), metrics)),
		gateway.WithMetricsHandler(metrics.Handler()),
		gateway.WithRequestTimeout(cfg.RequestTimeout),
	}
	if *rateLimit > 0 {
		serverOpts = append(serverOpts, gateway.WithRateLimit(*rateLimit, int(*rateLimit)+1))
	}
	server, err := gateway.NewServer(cfg.HTTP.Addr, service, serverOpts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.HTTP.Addr)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
