package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angelmondragon/localdrop/api"
	"github.com/angelmondragon/localdrop/api/routes"
	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/identity"
	"github.com/angelmondragon/localdrop/internal/otp"
	"github.com/angelmondragon/localdrop/pkg/config"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/angelmondragon/localdrop/pkg/mailer"
	"github.com/angelmondragon/localdrop/pkg/metrics"
	"github.com/angelmondragon/localdrop/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(runCtx, cfg.Redis, logg)
		if err != nil {
			logg.Error(runCtx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	otpStore, err := buildOTPStore(cfg, redisClient)
	if err != nil {
		logg.Error(runCtx, "failed to select otp store", err)
		os.Exit(1)
	}

	relay, err := buildMailer(cfg, logg)
	if err != nil {
		logg.Error(runCtx, "failed to create mailer", err)
		os.Exit(1)
	}

	otpService, err := otp.NewService(otp.ServiceParams{
		Store:   otpStore,
		Mailer:  relay,
		Config:  cfg.OTP,
		JWT:     cfg.JWT,
		Metrics: metrics.NewOTPMetrics(registry),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(runCtx, "failed to create otp service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		OTP:      otpService,
		Redis:    redisClient,
		Gatherer: registry,
	}

	if cfg.OAuth.Enabled() {
		customers, err := gateway.NewCustomer(cfg.API.BaseURL,
			gateway.WithTimeout(cfg.API.Timeout),
			gateway.WithLogger(logg),
			gateway.WithMetrics(metrics.NewGatewayMetrics(registry)),
		)
		if err != nil {
			logg.Error(runCtx, "failed to create customer gateway", err)
			os.Exit(1)
		}
		provider, err := identity.New(identity.Params{
			Config:     cfg.OAuth,
			Gateway:    customers,
			HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
			Logger:     logg,
		})
		if err != nil {
			logg.Error(runCtx, "failed to create identity provider", err)
			os.Exit(1)
		}
		deps.Identity = provider
	} else {
		logg.Warn(runCtx, "google sign-in disabled, client credentials missing")
	}

	port := os.Getenv("PORT")
	server := api.NewServer(cfg, port, routes.NewRouter(cfg, logg, deps))

	ctx := logg.WithFields(runCtx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      server.Addr,
		"otp_store": cfg.OTP.Store,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}

func buildOTPStore(cfg *config.Config, redisClient *redis.Client) (otp.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.OTP.Store)) {
	case "", "memory":
		return otp.NewMemoryStore(time.Now), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis otp store requires " + config.EnvRedisURL + " or " + config.EnvRedisAddr)
		}
		return otp.NewRedisStore(redisClient)
	}
	return nil, errors.New("unknown otp store " + cfg.OTP.Store)
}

// buildMailer falls back to logging codes only outside production.
func buildMailer(cfg *config.Config, logg *logger.Logger) (otp.Mailer, error) {
	if cfg.Mail.APIKey == "" && !cfg.App.IsProd() {
		return &logMailer{logg: logg}, nil
	}
	return mailer.NewClient(cfg.Mail.APIKey, cfg.Mail.DefaultFrom, mailer.WithBaseURL(cfg.Mail.BaseURL))
}

type logMailer struct {
	logg *logger.Logger
}

func (m *logMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{"to": msg.To, "body": msg.Body}), "mail.dev.outbox")
	return nil
}
