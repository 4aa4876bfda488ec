package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olekid/signer-agent/internal/agent"
	agentapi "github.com/olekid/signer-agent/internal/api"
	"github.com/olekid/signer-agent/internal/app/delegation"
	"github.com/olekid/signer-agent/internal/app/stub"
	"github.com/olekid/signer-agent/internal/config"
	"github.com/olekid/signer-agent/internal/infra/keystore"
	"github.com/olekid/signer-agent/internal/infra/remotesigner"
	"github.com/olekid/signer-agent/pkg/identity"
	"github.com/olekid/signer-agent/pkg/principal"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("AGENT_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	router, cleanup, err := configureRouter(cfg, logger)
	if err != nil {
		logger.Error("failed to configure router", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// HTTP server wiring
	mux := http.NewServeMux()
	agentapi.NewHTTPHandler(router).Register(mux)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server closed unexpectedly", "error", err)
			stop()
		}
	}()

	// Metrics server wiring
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		logger.Info("metrics server listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server closed unexpectedly", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down servers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown error", "error", err)
	}
}

func configureRouter(cfg config.Config, logger *slog.Logger) (*agent.Router, func(), error) {
	cleanup := func() {}

	store, storeCloser, err := configureStore(cfg.Store, logger)
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = storeCloser

	signer, err := remotesigner.NewGuard(remotesigner.NewStub(), remotesigner.GuardConfig{
		RateLimit:        cfg.Signer.RateLimit,
		RateBurst:        cfg.Signer.RateBurst,
		BreakerThreshold: cfg.Signer.FailureThreshold,
		BreakerCooldown:  cfg.Signer.Cooldown,
		Metrics:          remotesigner.NewMetrics(prometheus.DefaultRegisterer),
		Logger:           logger,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	account := principal.Anonymous()
	if cfg.Account != "" {
		account, err = principal.FromText(cfg.Account)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("parse account: %w", err)
		}
	} else {
		logger.Warn("no account configured, using the anonymous principal")
	}

	var provider agent.DelegationProvider
	if cfg.Delegation.Enabled {
		provisioner, err := configureProvisioner(cfg.Delegation, store, signer, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		provider = provisioner
	}

	var rootKey []byte
	if cfg.RootKeyHex != "" {
		rootKey, err = hex.DecodeString(cfg.RootKeyHex)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("parse root key: %w", err)
		}
	}

	router, err := agent.NewRouter(stub.New(), signer, agent.Config{
		Account:          account,
		RootKey:          rootKey,
		ParseCertificate: stub.ParseCertificate,
		Delegation:       provider,
		Metrics:          agent.NewMetrics(prometheus.DefaultRegisterer),
		Logger:           logger,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return router, cleanup, nil
}

func configureStore(cfg config.StoreConfig, logger *slog.Logger) (keystore.Store, func(), error) {
	switch cfg.Backend {
	case "badger":
		db, err := keystore.OpenBadger(keystore.BadgerConfig{
			Path:   cfg.Path,
			Logger: logger,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return keystore.NewMemory(), func() {}, nil
	}
}

func configureProvisioner(cfg config.ChainConfig, store keystore.Store, issuer delegation.ChainIssuer, logger *slog.Logger) (*delegation.Provisioner, error) {
	targets := make([]principal.Principal, 0, len(cfg.Targets))
	for _, raw := range cfg.Targets {
		target, err := principal.FromText(raw)
		if err != nil {
			return nil, fmt.Errorf("parse delegation target %q: %w", raw, err)
		}
		targets = append(targets, target)
	}
	kind := identity.KindECDSA
	if cfg.KeyKind == "ed25519" {
		kind = identity.KindEd25519
	}
	chainStore, err := delegation.NewStore(store)
	if err != nil {
		return nil, err
	}
	return delegation.NewProvisioner(chainStore, issuer, delegation.Config{
		Targets: targets,
		KeyKind: kind,
		Metrics: delegation.NewMetrics(prometheus.DefaultRegisterer),
		Logger:  logger,
	})
}
